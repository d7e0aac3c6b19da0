package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/fiftplay/internal/observability"
	"github.com/harun/fiftplay/internal/tracing"
	"github.com/harun/fiftplay/pkg/playground"
	"github.com/harun/fiftplay/pkg/snippets"
	"github.com/rs/zerolog"
)

// Server serves playground sessions over websocket
type Server struct {
	host              string
	port              int
	allowedOrigins    []string
	requestsPerMinute int
	showOutput        bool
	disableMetrics    bool
	server            *http.Server
	listener          net.Listener
	upgrader          websocket.Upgrader
	sessions          *SessionRegistry
	router            *RPCRouter
	broadcaster       *EventBroadcaster
	snippets          *snippets.Store
	logger            zerolog.Logger
	isShuttingDown    bool
	shutdownMu        sync.RWMutex
	handlers          sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host              string
	Port              int // zero picks a free port
	AllowedOrigins    []string
	RequestsPerMinute int
	ShowOutput        bool
	DisableMetrics    bool            // drops the /metrics route
	Snippets          *snippets.Store // optional, nil disables sharing
	Logger            zerolog.Logger
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}

	observability.EnsureRegistered()

	sessions := NewSessionRegistry()
	logger := cfg.Logger.With().Str("component", "gateway").Logger()

	s := &Server{
		host:              cfg.Host,
		port:              cfg.Port,
		allowedOrigins:    cfg.AllowedOrigins,
		requestsPerMinute: cfg.RequestsPerMinute,
		showOutput:        cfg.ShowOutput,
		disableMetrics:    cfg.DisableMetrics,
		sessions:          sessions,
		router:            NewRPCRouter(),
		broadcaster:       NewEventBroadcaster(sessions, logger),
		snippets:          cfg.Snippets,
		logger:            logger,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	s.registerBuiltinMethods()

	return s, nil
}

// Handler returns the HTTP routes of the gateway
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	if !s.disableMetrics {
		mux.Handle("/metrics", observability.MetricsHandler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"sessions": s.sessions.Count(),
		})
	})
	return mux
}

// Start listens and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting gateway server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop notifies sessions, waits for in-flight requests and shuts down
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	s.broadcaster.Broadcast(EventServerShutdown, map[string]interface{}{
		"message": "Server is shutting down",
	})

	for _, sess := range s.sessions.GetAll() {
		sess.Close()
	}

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All sessions closed")
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// handleWebSocket opens a session. The initial workspace comes from the
// "state" query parameter (link state) or the "snippet" parameter (a
// shared snippet ID); without either the welcome workspace is used.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.handlers.Add(1)
	s.shutdownMu.RUnlock()

	store, status, err := s.initialStore(r)
	if err != nil {
		s.handlers.Done()
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.handlers.Done()
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	sess, err := newSession(conn, store, r.RemoteAddr, NewSessionRateLimiter(s.requestsPerMinute), s.logger)
	if err != nil {
		s.handlers.Done()
		s.logger.Error().Err(err).Msg("Failed to create session")
		conn.Close()
		return
	}
	s.sessions.Add(sess)

	s.logger.Info().
		Str("sessionId", sess.ID).
		Str("clientId", sess.ClientID).
		Str("ip", r.RemoteAddr).
		Msg("Session opened")

	sess.Push(EventSessionReady, map[string]interface{}{
		"sessionId": sess.ID,
		"clientId":  sess.ClientID,
		"state":     stateView(sess.Store()),
	})

	go func() {
		defer s.handlers.Done()
		s.handleSession(sess)
	}()
}

func (s *Server) initialStore(r *http.Request) (*playground.Store, int, error) {
	query := r.URL.Query()
	state := query.Get("state")

	if id := query.Get("snippet"); id != "" {
		if s.snippets == nil {
			return nil, http.StatusNotFound, fmt.Errorf("snippet sharing is disabled")
		}
		snippet, err := s.snippets.Load(r.Context(), id)
		if err != nil {
			return nil, http.StatusNotFound, err
		}
		state = snippet.Link()
	}

	store, err := playground.NewStore(playground.StoreOptions{
		SerializedState: state,
		ShowOutput:      s.showOutput,
	})
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	return store, http.StatusOK, nil
}

// handleSession reads requests until the connection closes. Requests of
// one session are handled in order.
func (s *Server) handleSession(sess *Session) {
	defer func() {
		s.sessions.Remove(sess.ID)
		sess.Close()
		s.logger.Info().Str("sessionId", sess.ID).Msg("Session closed")
	}()

	ctx := tracing.WithSessionID(context.Background(), sess.ID)
	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("sessionId", sess.ID).Msg("WebSocket error")
			}
			return
		}

		sess.Touch()
		s.handleMessage(ctx, sess, message)
	}
}

func (s *Server) handleMessage(ctx context.Context, sess *Session, message []byte) {
	req, err := s.router.ParseRequest(message)
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			s.sendError(sess, "", rpcErr.Code, rpcErr.Message)
		} else {
			s.sendError(sess, "", ParseError, err.Error())
		}
		return
	}

	if !sess.RateLimiter.Allow() {
		s.sendError(sess, req.ID, RateLimitExceeded, "rate limit exceeded")
		return
	}

	response := s.router.RouteRequest(ctx, sess, req)
	if response.Error != nil && response.Error.Code == InternalError {
		logger := tracing.LoggerFromContext(tracing.WithRequestID(ctx, req.ID), s.logger)
		logger.Error().Str("method", req.Method).Str("error", response.Error.Message).Msg("Request failed")
	}
	if err := sess.Send(response); err != nil {
		s.logger.Error().
			Err(err).
			Str("sessionId", sess.ID).
			Str("requestId", req.ID).
			Msg("Failed to send response")
	}
}

func (s *Server) sendError(sess *Session, requestID string, code int, message string) {
	response := RPCResponse{
		ID:      requestID,
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}

	if err := sess.Send(response); err != nil {
		s.logger.Error().
			Err(err).
			Str("sessionId", sess.ID).
			Msg("Failed to send error response")
	}
}

// Broadcast sends an event to every session
func (s *Server) Broadcast(event string, data interface{}) int {
	return s.broadcaster.Broadcast(event, data)
}

// RegisterMethod registers an RPC method handler
func (s *Server) RegisterMethod(name string, handler MethodHandler) error {
	return s.router.RegisterMethod(name, handler)
}

// Methods returns the registered RPC method names
func (s *Server) Methods() []string {
	return s.router.GetMethods()
}

// Sessions returns information about all connected sessions
func (s *Server) Sessions() []SessionInfo {
	return s.sessions.Infos()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
