package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harun/fiftplay/pkg/editorsync"
	"github.com/harun/fiftplay/pkg/playground"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// writeTimeout bounds a single websocket write
const writeTimeout = 10 * time.Second

// CauseReplaced is the workspace.changed cause after snippets.open
const CauseReplaced playground.WorkspaceEvent = "workspace.replaced"

// Session is one connected editor: a workspace, the document models the
// client mirrors and the loop keeping them in step
type Session struct {
	ID          string
	ClientID    string
	ConnectedAt time.Time
	IPAddress   string
	RateLimiter *SessionRateLimiter

	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  zerolog.Logger

	mu           sync.RWMutex
	lastActivity time.Time
	store        *playground.Store
	surface      *editorsync.MemorySurface
	loop         *editorsync.Loop
	offs         []func()
}

// newSession wires a store to a fresh surface and starts the sync loop.
// Surface and store events are pushed to conn.
func newSession(conn *websocket.Conn, store *playground.Store, ip string, limiter *SessionRateLimiter, logger zerolog.Logger) (*Session, error) {
	clientID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate client id: %w", err)
	}

	now := time.Now()
	sess := &Session{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		ConnectedAt:  now,
		IPAddress:    ip,
		RateLimiter:  limiter,
		conn:         conn,
		lastActivity: now,
		surface:      editorsync.NewMemorySurface(),
	}
	sess.logger = logger.With().Str("sessionId", sess.ID).Logger()

	sess.surface.Subscribe(sess.pushModelEvent)
	if err := sess.attach(store); err != nil {
		return nil, err
	}
	return sess, nil
}

// attach makes store the session's workspace and reconciles the surface
// against it. Callers must not hold s.mu.
func (s *Session) attach(store *playground.Store) error {
	loop := editorsync.NewLoop(store, s.surface, s.logger)

	offs := []func(){}
	for _, event := range []playground.WorkspaceEvent{
		playground.EventFileAdded,
		playground.EventFileDeleted,
		playground.EventFileRenamed,
		playground.EventActiveChanged,
		playground.EventErrorsChanged,
	} {
		event := event
		offs = append(offs, store.On(event, func(payload interface{}) {
			s.pushWorkspaceChanged(event)
		}))
	}

	s.mu.Lock()
	s.store = store
	s.loop = loop
	s.offs = offs
	s.mu.Unlock()

	return loop.Start()
}

// detach stops the current loop and drops store subscriptions
func (s *Session) detach() {
	s.mu.Lock()
	loop := s.loop
	store := s.store
	offs := s.offs
	s.loop = nil
	s.offs = nil
	s.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}
	for _, off := range offs {
		off()
	}
	if store != nil {
		store.Close()
	}
}

// Replace swaps the session's workspace. Every workspace model of the old
// store is disposed first, so each model is created from the new store's
// code even when a filename exists in both. Models outside the workspace
// scheme stay.
func (s *Session) Replace(store *playground.Store) error {
	s.detach()
	editorsync.NewReconciler(s.surface, s.logger).Run(nil)
	if err := s.attach(store); err != nil {
		return err
	}
	s.pushWorkspaceChanged(CauseReplaced)
	return nil
}

// Store returns the session's workspace
func (s *Session) Store() *playground.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Surface returns the session's document models
func (s *Session) Surface() *editorsync.MemorySurface {
	return s.surface
}

// Touch records client activity
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Info returns a snapshot of the session for status listings
func (s *Session) Info(now time.Time) SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := 0
	if s.store != nil {
		files = s.store.Len()
	}
	return SessionInfo{
		ID:           s.ID,
		ClientID:     s.ClientID,
		ConnectedAt:  s.ConnectedAt,
		LastActivity: s.lastActivity,
		IPAddress:    s.IPAddress,
		Files:        files,
		Idle:         now.Sub(s.lastActivity) > idleAfter,
	}
}

// Send writes one JSON message. Writes are serialized per connection.
func (s *Session) Send(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

// Push sends a server event to the client
func (s *Session) Push(event string, data interface{}) {
	msg := EventMessage{
		Event:     event,
		Data:      data,
		Timestamp: nowMillis(),
		Session:   s.ID,
	}
	if err := s.Send(msg); err != nil {
		s.logger.Debug().Err(err).Str("event", event).Msg("Failed to push event")
	}
}

func (s *Session) pushModelEvent(event editorsync.ModelEvent) {
	switch event.Kind {
	case editorsync.ModelCreated:
		s.Push(EventModelCreated, event)
	case editorsync.ModelDisposed:
		s.Push(EventModelDisposed, event)
	}
}

func (s *Session) pushWorkspaceChanged(cause playground.WorkspaceEvent) {
	store := s.Store()
	if store == nil {
		return
	}
	s.Push(EventWorkspaceChanged, WorkspaceChanged{
		Cause: cause,
		State: stateView(store),
	})
}

// Close stops the sync loop and closes the connection
func (s *Session) Close() {
	s.detach()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func stateView(store *playground.Store) StateView {
	files := store.Files()
	view := StateView{
		Files:      make([]FileView, 0, len(files)),
		MainFile:   store.MainFile(),
		Errors:     []string{},
		ShowOutput: store.ShowOutput(),
	}
	for _, file := range files {
		code, _ := store.Code(file.Filename)
		view.Files = append(view.Files, FileView{
			Filename: file.Filename,
			Code:     code,
			Hidden:   file.Hidden,
			Language: file.Language(),
		})
	}
	if active := store.ActiveFile(); active != nil {
		view.ActiveFile = active.Filename
	}
	for _, err := range store.Errors() {
		view.Errors = append(view.Errors, err.Error())
	}
	return view
}
