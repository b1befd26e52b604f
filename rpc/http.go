package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobescrow/core"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	rateLimitWindow = time.Minute
	maxMutationsPer = 60
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Custody-specific error codes, one per rejection class.
const (
	codeCustodyNotFound  = -32031
	codeCustodyForbidden = -32032
	codeCustodyConflict  = -32033
	codeCustodyValue     = -32034
	codeCustodyTimeout   = -32035
)

type rateLimiter struct {
	count       int
	windowStart time.Time
}

// Server exposes the custody operation set over JSON-RPC 2.0.
type Server struct {
	node *core.Node

	mu           sync.Mutex
	rateLimiters map[string]*rateLimiter
	authToken    string
	nowFn        func() time.Time
}

// NewServer wraps the node. The mutation auth token is read from
// JOBESCROW_RPC_TOKEN; when empty, mutating calls are open (local dev).
func NewServer(node *core.Node) *Server {
	token := strings.TrimSpace(os.Getenv("JOBESCROW_RPC_TOKEN"))
	return &Server{
		node:         node,
		rateLimiters: make(map[string]*rateLimiter),
		authToken:    token,
		nowFn:        time.Now,
	}
}

// SetAuthToken overrides the mutation token, primarily for tests.
func (s *Server) SetAuthToken(token string) {
	s.authToken = strings.TrimSpace(token)
}

// Handler returns the HTTP mux serving the RPC endpoint, health and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start serves the RPC endpoint until the listener fails.
func (s *Server) Start(addr string) error {
	slog.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

// RPCRequest is a single JSON-RPC 2.0 call envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      any               `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "invalid_request", "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "invalid_request", "request body too large")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "unsupported jsonrpc version")
		return
	}
	s.dispatch(w, r, &req)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "custody_create":
		s.handleCustodyCreate(w, r, req)
	case "custody_createOpenJob":
		s.handleCustodyCreateOpenJob(w, r, req)
	case "custody_accept":
		s.handleCustodyActor(w, r, req, "accept", s.node.Accept)
	case "custody_fund":
		s.handleCustodyFund(w, r, req)
	case "custody_approve":
		s.handleCustodyActor(w, r, req, "approve", s.node.Approve)
	case "custody_withdraw":
		s.handleCustodyActor(w, r, req, "withdraw", s.node.Withdraw)
	case "custody_refund":
		s.handleCustodyActor(w, r, req, "refund", s.node.Refund)
	case "custody_openDispute":
		s.handleCustodyActor(w, r, req, "openDispute", s.node.OpenDispute)
	case "custody_agreePayContractor":
		s.handleCustodyActor(w, r, req, "agreePayContractor", s.node.AgreePayContractor)
	case "custody_agreeRefundRealtor":
		s.handleCustodyActor(w, r, req, "agreeRefundRealtor", s.node.AgreeRefundRealtor)
	case "custody_refundAfterTimeout":
		s.handleCustodyActor(w, r, req, "refundAfterTimeout", s.node.RefundAfterDisputeTimeout)
	case "custody_get":
		s.handleCustodyGet(w, req)
	case "custody_list":
		s.handleCustodyList(w, req)
	case "custody_balance":
		s.handleCustodyBalance(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
	}
}

type authError struct {
	Code    int
	Message string
	Data    any
}

func (s *Server) requireAuth(r *http.Request) *authError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &authError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &authError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid token"}
	}
	return nil
}

// allowMutation applies a fixed-window limit per source address, enough to
// stop a runaway client without punishing an interactive one.
func (s *Server) allowMutation(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.rateLimiters[host]
	if !ok || now.Sub(limiter.windowStart) >= rateLimitWindow {
		s.rateLimiters[host] = &rateLimiter{count: 1, windowStart: now}
		return true
	}
	if limiter.count >= maxMutationsPer {
		return false
	}
	limiter.count++
	return true
}

func (s *Server) admitMutation(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return false
	}
	if !s.allowMutation(r) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate_limited", "too many mutations from source")
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, id any, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id any, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	})
}

func unmarshalSingleParam(req *RPCRequest, dst any) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], dst)
}
