package editorsync

import (
	"fmt"
	"slices"
	"sync"

	"github.com/harun/fiftplay/pkg/playground"
)

// ModelEventKind names a change to a surface model
type ModelEventKind string

const (
	ModelCreated  ModelEventKind = "model.created"
	ModelDisposed ModelEventKind = "model.disposed"
	ModelEdited   ModelEventKind = "model.edited"
)

// ModelEvent describes one change to a MemorySurface
type ModelEvent struct {
	Kind     ModelEventKind      `json:"kind"`
	URI      string              `json:"uri"`
	Language playground.Language `json:"language"`
	Content  string              `json:"content,omitempty"`
}

// MemoryModel is a document held by a MemorySurface
type MemoryModel struct {
	uri      string
	language playground.Language

	mu       sync.RWMutex
	content  string
	disposed bool
}

func (m *MemoryModel) URI() string                   { return m.uri }
func (m *MemoryModel) Language() playground.Language { return m.language }

func (m *MemoryModel) Content() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.content
}

// Disposed reports whether the model was removed from its surface
func (m *MemoryModel) Disposed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disposed
}

// MemorySurface is a thread-safe in-memory editor surface. It backs headless
// sessions and tests.
type MemorySurface struct {
	mu        sync.RWMutex
	models    map[string]*MemoryModel
	order     []string
	languages []playground.LanguageSpec

	listenerMu sync.RWMutex
	nextID     uint64
	listeners  map[uint64]func(ModelEvent)
}

// NewMemorySurface creates an empty surface
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		models:    make(map[string]*MemoryModel),
		listeners: make(map[uint64]func(ModelEvent)),
	}
}

// GetModel looks a model up by URI
func (s *MemorySurface) GetModel(uri string) (Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	model, ok := s.models[uri]
	if !ok {
		return nil, false
	}
	return model, true
}

// Models returns every live model in creation order
func (s *MemorySurface) Models() []Model {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Model, 0, len(s.order))
	for _, uri := range s.order {
		out = append(out, s.models[uri])
	}
	return out
}

// CreateOrReuseModel returns the live model at uri, creating it with
// language and content when absent. An existing model keeps its content.
func (s *MemorySurface) CreateOrReuseModel(uri string, language playground.Language, content string) Model {
	s.mu.Lock()
	if model, ok := s.models[uri]; ok {
		s.mu.Unlock()
		return model
	}
	model := &MemoryModel{uri: uri, language: language, content: content}
	s.models[uri] = model
	s.order = append(s.order, uri)
	s.mu.Unlock()

	s.notify(ModelEvent{Kind: ModelCreated, URI: uri, Language: language, Content: content})
	return model
}

// Dispose removes a model. Disposing a model that is no longer live is a
// no-op.
func (s *MemorySurface) Dispose(model Model) {
	if model == nil {
		return
	}
	uri := model.URI()

	s.mu.Lock()
	current, ok := s.models[uri]
	if !ok || Model(current) != model {
		s.mu.Unlock()
		return
	}
	delete(s.models, uri)
	for i, u := range s.order {
		if u == uri {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	current.mu.Lock()
	current.disposed = true
	current.mu.Unlock()

	s.notify(ModelEvent{Kind: ModelDisposed, URI: uri, Language: current.language})
}

// RegisterLanguage records a language. Registering the same ID twice is a
// no-op.
func (s *MemorySurface) RegisterLanguage(spec playground.LanguageSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.languages {
		if existing.ID == spec.ID {
			return
		}
	}
	s.languages = append(s.languages, spec)
}

// Languages returns the registered languages
func (s *MemorySurface) Languages() []playground.LanguageSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]playground.LanguageSpec(nil), s.languages...)
}

// Edit replaces the content of a live model, as a user typing would
func (s *MemorySurface) Edit(uri, content string) error {
	s.mu.RLock()
	model, ok := s.models[uri]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("model %s not found", uri)
	}

	model.mu.Lock()
	model.content = content
	model.mu.Unlock()

	s.notify(ModelEvent{Kind: ModelEdited, URI: uri, Language: model.language, Content: content})
	return nil
}

// Subscribe registers handler for every model event and returns a function
// removing it
func (s *MemorySurface) Subscribe(handler func(ModelEvent)) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners[id] = handler

	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

// OnEdit implements EditSource
func (s *MemorySurface) OnEdit(handler func(uri, content string)) func() {
	return s.Subscribe(func(event ModelEvent) {
		if event.Kind == ModelEdited {
			handler(event.URI, event.Content)
		}
	})
}

func (s *MemorySurface) notify(event ModelEvent) {
	s.listenerMu.RLock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	handlers := make([]func(ModelEvent), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, s.listeners[id])
	}
	s.listenerMu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
