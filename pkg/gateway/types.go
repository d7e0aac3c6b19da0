package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harun/fiftplay/pkg/playground"
)

// RPCRequest represents a JSON-RPC 2.0 request
type RPCRequest struct {
	ID             string          `json:"id"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	JSONRPC        string          `json:"jsonrpc"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// RPCResponse represents a JSON-RPC 2.0 response
type RPCResponse struct {
	ID      string      `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	JSONRPC string      `json:"jsonrpc"`
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	return e.Message
}

// EventMessage represents a server-initiated push
type EventMessage struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
	Session   string      `json:"session,omitempty"`
}

// SessionInfo represents information about a connected session
type SessionInfo struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"clientId"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	IPAddress    string    `json:"ipAddress"`
	Files        int       `json:"files"`
	Idle         bool      `json:"idle"`
}

// MethodHandler handles one RPC method for a session. Params is the raw
// params object and may be empty.
type MethodHandler func(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error)

// RPC error codes
const (
	ParseError        = -32700
	InvalidRequest    = -32600
	MethodNotFound    = -32601
	InvalidParams     = -32602
	InternalError     = -32603
	RateLimitExceeded = -32005
	FileNotFound      = -32010
	InvalidState      = -32011
	SnippetNotFound   = -32012
	RenameRejected    = -32013
	UnknownDelete     = -32014
	FeatureDisabled   = -32015
)

// Push event names
const (
	EventModelCreated     = "model.created"
	EventModelDisposed    = "model.disposed"
	EventWorkspaceChanged = "workspace.changed"
	EventSessionReady     = "session.ready"
	EventServerShutdown   = "server.shutdown"
)

// FileView is the wire form of a workspace file
type FileView struct {
	Filename string              `json:"filename"`
	Code     string              `json:"code"`
	Hidden   bool                `json:"hidden,omitempty"`
	Language playground.Language `json:"language"`
}

// StateView is the wire form of a whole workspace
type StateView struct {
	Files      []FileView `json:"files"`
	MainFile   string     `json:"mainFile"`
	ActiveFile string     `json:"activeFile,omitempty"`
	Errors     []string   `json:"errors"`
	ShowOutput bool       `json:"showOutput"`
}

// WorkspaceChanged is pushed after every workspace change except code edits
type WorkspaceChanged struct {
	Cause playground.WorkspaceEvent `json:"cause"`
	State StateView                 `json:"state"`
}

// PendingDeleteView is the wire form of a pending delete
type PendingDeleteView struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Prompt   string `json:"prompt"`
}

// ShareResult is returned by snippets.share
type ShareResult struct {
	ID        string     `json:"id"`
	Link      string     `json:"link"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
