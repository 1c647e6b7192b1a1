package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ledgercommand "github.com/goliatone/go-ledgerbridge/command"
	"github.com/goliatone/go-ledgerbridge/core"
	ledgerquery "github.com/goliatone/go-ledgerbridge/query"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	Banner             = "Financial MCP Server - RPC endpoint at /rpc"
	maxRequestBodySize = 1 << 20
	requestIDHeader    = "X-Request-ID"
)

// Server exposes the dispatcher over HTTP together with the OAuth
// connect and callback pages.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	dispatcher *Dispatcher
	commands   ledgercommand.Handlers
	queries    ledgerquery.Handlers
	observer   *core.Observer
	timeout    time.Duration
	metrics    http.Handler
	limiter    *rate.Limiter
}

type ServerOption func(*Server)

// WithRequestTimeout bounds each RPC call. Zero keeps the default.
func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithObserver(observer *core.Observer) ServerOption {
	return func(s *Server) {
		if observer != nil {
			s.observer = observer
		}
	}
}

func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(s *Server) {
		if handler != nil {
			s.metrics = handler
		}
	}
}

// WithRateLimit throttles inbound requests. Non-positive values disable it.
func WithRateLimit(requestsPerSecond float64, burst int) ServerOption {
	return func(s *Server) {
		if requestsPerSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

func NewServer(addr string, backend Backend, opts ...ServerOption) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("gateway: backend is required")
	}
	s := &Server{
		router:   mux.NewRouter(),
		commands: backend.Commands(),
		queries:  backend.Queries(),
		timeout:  core.DefaultRequestTimeout,
		metrics:  promhttp.Handler(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	if s.observer == nil {
		s.observer = core.NewObserver(nil, nil)
	}
	dispatcher, err := NewDispatcher(backend, s.observer)
	if err != nil {
		return nil, err
	}
	s.dispatcher = dispatcher
	s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	s.router.Use(s.recovery, s.requestID, s.rateLimit)
	s.router.HandleFunc("/rpc", s.handleRPC).Methods(http.MethodPost)
	s.router.HandleFunc("/", s.handleBanner).Methods(http.MethodGet)
	s.router.HandleFunc("/connect/{platform}", s.handleConnect).Methods(http.MethodGet)
	s.router.HandleFunc("/oauth/callback/{platform}", s.handleCallback).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

func (s *Server) Start() error {
	s.observer.Log(context.Background(), "info", "gateway listening", map[string]any{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway: serve: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			JSONRPC: jsonRPCVersion,
			ID:      json.RawMessage("null"),
			Error:   &RPCError{Code: CodeParseError, Message: "Parse error", Data: err.Error()},
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	resp := s.dispatcher.Dispatch(ctx, req)
	writeJSON(w, httpStatus(resp.Error), resp)
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, Banner)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeText(w, http.StatusBadRequest, "Error: 'user_id' query parameter is required to initiate connection.")
		return
	}
	platform, err := core.ParsePlatform(mux.Vars(r)["platform"])
	if err != nil {
		writeText(w, http.StatusBadRequest, "Error: Invalid platform")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	authURL, err := ledgerquery.Ask[ledgerquery.AuthorizationURLMessage, string](ctx, s.queries.AuthorizationURL,
		ledgerquery.AuthorizationURLMessage{UserID: userID, Platform: platform})
	if err != nil {
		writeText(w, http.StatusInternalServerError, "Error generating auth URL: "+errorMessage(err))
		return
	}
	s.observer.Log(ctx, "info", "authorization url generated", map[string]any{
		"platform": string(platform),
		"user_id":  userID,
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderConnect(w, connectView{Platform: string(platform), UserID: userID, AuthURL: safeURL(authURL)}); err != nil {
		s.observer.Log(ctx, "error", "render connect page failed", map[string]any{"error": err.Error()})
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := strings.TrimSpace(query.Get("code"))
	userID := strings.TrimSpace(query.Get("state"))
	if code == "" || userID == "" {
		writeText(w, http.StatusBadRequest, "Error: Missing authorization code or user state.")
		return
	}
	platform, err := core.ParsePlatform(mux.Vars(r)["platform"])
	if err != nil {
		writeText(w, http.StatusBadRequest, "Error: Invalid platform")
		return
	}
	hint := ""
	if platform == core.PlatformZoho {
		hint = strings.TrimSpace(query.Get("accounts-server"))
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	result, err := ledgercommand.Run[ledgercommand.ExchangeCodeMessage, core.ExchangeResult](ctx, s.commands.ExchangeCode,
		ledgercommand.ExchangeCodeMessage{Platform: platform, Code: code, UserID: userID, AccountsServer: hint})

	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if renderErr := renderCallback(w, newCallbackView(platform, userID, result, err)); renderErr != nil {
		s.observer.Log(ctx, "error", "render callback page failed", map[string]any{"error": renderErr.Error()})
	}
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.observer.Log(r.Context(), "error", "panic recovered", map[string]any{
					"error":      fmt.Sprint(recovered),
					"path":       r.URL.Path,
					"request_id": r.Header.Get(requestIDHeader),
				})
				writeText(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeText(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message)
}
