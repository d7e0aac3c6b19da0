package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harun/fiftplay/internal/observability"
	"github.com/harun/fiftplay/internal/tracing"
	"github.com/harun/fiftplay/pkg/linkcodec"
	"github.com/harun/fiftplay/pkg/playground"
	"github.com/harun/fiftplay/pkg/snippets"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "github.com/harun/fiftplay/pkg/gateway"

const (
	idempotencyTTL  = 5 * time.Minute
	idempotencySize = 4096
)

// RPCRouter handles RPC method registration and request routing
type RPCRouter struct {
	mu      sync.RWMutex
	methods map[string]MethodHandler

	// replies holds responses by session, method and idempotency key
	replies *expirable.LRU[string, RPCResponse]
}

// NewRPCRouter creates a new RPC router
func NewRPCRouter() *RPCRouter {
	return &RPCRouter{
		methods: make(map[string]MethodHandler),
		replies: expirable.NewLRU[string, RPCResponse](idempotencySize, nil, idempotencyTTL),
	}
}

// RegisterMethod registers an RPC method handler
func (r *RPCRouter) RegisterMethod(name string, handler MethodHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.methods[name] = handler
	return nil
}

// UnregisterMethod removes an RPC method handler
func (r *RPCRouter) UnregisterMethod(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.methods, name)
}

// ParseRequest parses and validates a JSON-RPC request
func (r *RPCRouter) ParseRequest(data []byte) (*RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{
			Code:    ParseError,
			Message: "Parse error",
			Data:    err.Error(),
		}
	}

	if req.ID == "" {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "Invalid request: missing id field",
		}
	}

	if req.Method == "" {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "Invalid request: missing method field",
		}
	}

	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}

	return &req, nil
}

// RouteRequest runs the handler of req.Method for sess. Idempotency keys
// are scoped to the session.
func (r *RPCRouter) RouteRequest(ctx context.Context, sess *Session, req *RPCRequest) *RPCResponse {
	if req == nil {
		return &RPCResponse{
			JSONRPC: "2.0",
			Error: &RPCError{
				Code:    InvalidRequest,
				Message: "invalid request",
			},
		}
	}

	cacheKey := idempotencyCacheKey(sess, req.Method, req.IdempotencyKey)
	if cacheKey != "" {
		if cached, ok := r.replies.Get(cacheKey); ok {
			replay := cloneRPCResponse(cached)
			replay.ID = req.ID
			return &replay
		}
	}

	r.mu.RLock()
	handler, exists := r.methods[req.Method]
	r.mu.RUnlock()

	if !exists {
		return &RPCResponse{
			ID:      req.ID,
			JSONRPC: "2.0",
			Error: &RPCError{
				Code:    MethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}

	ctx = tracing.WithRequestID(ctx, req.ID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "rpc "+req.Method,
		attribute.String("rpc.method", req.Method),
		attribute.String("session.id", tracing.GetSessionID(ctx)),
	)

	start := time.Now()
	result, err := handler(ctx, sess, req.Params)
	observability.RecordGatewayRequest(req.Method, time.Since(start), err == nil)
	tracing.EndSpan(span, err)

	var response *RPCResponse
	if err != nil {
		response = &RPCResponse{
			ID:      req.ID,
			JSONRPC: "2.0",
			Error:   toRPCError(err),
		}
	} else {
		response = &RPCResponse{
			ID:      req.ID,
			JSONRPC: "2.0",
			Result:  result,
		}
	}

	if cacheKey != "" {
		r.replies.Add(cacheKey, cloneRPCResponse(*response))
	}

	return response
}

// toRPCError maps domain errors onto RPC error codes
func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	code := InternalError
	switch {
	case errors.Is(err, playground.ErrFileNotFound):
		code = FileNotFound
	case errors.Is(err, playground.ErrRenameTargetMissing),
		errors.Is(err, playground.ErrRenameTargetInvalid):
		code = RenameRejected
	case errors.Is(err, playground.ErrUnknownPendingDelete):
		code = UnknownDelete
	case errors.Is(err, playground.ErrEmptyFilename):
		code = InvalidParams
	case errors.Is(err, linkcodec.ErrInvalidState),
		errors.Is(err, linkcodec.ErrMalformedToken),
		errors.Is(err, linkcodec.ErrEmptyLink):
		code = InvalidState
	case errors.Is(err, snippets.ErrSnippetNotFound):
		code = SnippetNotFound
	}
	return &RPCError{Code: code, Message: err.Error()}
}

// HasMethod checks if a method is registered
func (r *RPCRouter) HasMethod(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.methods[name]
	return exists
}

// GetMethods returns all registered method names, sorted
func (r *RPCRouter) GetMethods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

func idempotencyCacheKey(sess *Session, method, idempotencyKey string) string {
	if idempotencyKey == "" {
		return ""
	}
	scope := ""
	if sess != nil {
		scope = sess.ID
	}
	return scope + ":" + method + ":" + idempotencyKey
}

func cloneRPCResponse(src RPCResponse) RPCResponse {
	cloned := RPCResponse{
		ID:      src.ID,
		Result:  src.Result,
		JSONRPC: src.JSONRPC,
	}
	if src.Error != nil {
		errCopy := *src.Error
		cloned.Error = &errCopy
	}
	return cloned
}

// decodeParams unmarshals params into v. Empty params leave v untouched.
func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return &RPCError{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}
	}
	return nil
}

func requireParam(name, value string) error {
	if value == "" {
		return &RPCError{Code: InvalidParams, Message: fmt.Sprintf("%s is required", name)}
	}
	return nil
}
