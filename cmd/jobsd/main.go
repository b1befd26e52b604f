package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"jobescrow/observability/logging"
	"jobescrow/services/jobsd"
)

func main() {
	listenAddr := flag.String("listen", ":8680", "listen address for the jobs API")
	dbPath := flag.String("db", "./jobs.sqlite", "path to the sqlite database")
	env := flag.String("env", "dev", "deployment environment label")
	flag.Parse()

	logger := logging.Setup("jobsd", *env)

	store, err := jobsd.OpenStore(*dbPath)
	if err != nil {
		logger.Error("failed to open job store", "path", *dbPath, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	server := jobsd.NewServer(store, logger)
	httpServer := &http.Server{
		Addr:              *listenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("jobsd starting", "listen", *listenAddr, "db", *dbPath)
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Error("http server stopped", "err", err)
		os.Exit(1)
	}
}
