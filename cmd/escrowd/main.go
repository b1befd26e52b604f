package main

import (
	"flag"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"jobescrow/config"
	"jobescrow/core"
	"jobescrow/core/events"
	"jobescrow/observability"
	"jobescrow/observability/logging"
	"jobescrow/rpc"
	custodylog "jobescrow/services/custody-log"
	"jobescrow/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	var logWriter io.Writer = os.Stdout
	if cfg.LogFile != "" {
		logWriter = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	logger := logging.SetupWithWriter("escrowd", cfg.Environment, logWriter)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "dir", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	emitters := events.Fanout{observability.NewSettlementCounter()}
	var forwarder *custodylog.Forwarder
	if cfg.LogAPI.Enabled {
		forwarder = custodylog.NewForwarder(custodylog.NewClient(cfg.LogAPI.URL), cfg.ChainID, logger)
		defer forwarder.Close()
		emitters = append(emitters, forwarder)
		logger.Info("custody event forwarding enabled", "url", cfg.LogAPI.URL)
	}

	node := core.NewNode(db, emitters)
	server := rpc.NewServer(node)

	logger.Info("escrowd starting",
		"network", cfg.NetworkName,
		"chainId", cfg.ChainID,
		"rpc", cfg.RPCAddress,
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
}
