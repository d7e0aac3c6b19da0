package playground

import (
	"sync"
	"time"
)

// EventHandler is a function that handles workspace events
type EventHandler func(payload interface{})

type listener struct {
	id      uint64
	handler EventHandler
}

// WorkspaceEventEmitter broadcasts workspace events to subscribers.
// Handlers run synchronously on the emitting goroutine, in registration
// order, so an observer always sees state no older than the event.
type WorkspaceEventEmitter struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[WorkspaceEvent][]listener
}

// NewWorkspaceEventEmitter creates a new event emitter
func NewWorkspaceEventEmitter() *WorkspaceEventEmitter {
	return &WorkspaceEventEmitter{
		listeners: make(map[WorkspaceEvent][]listener),
	}
}

// On registers an event handler for a specific event type and returns a
// function removing it
func (e *WorkspaceEventEmitter) On(event WorkspaceEvent, handler EventHandler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], listener{id: id, handler: handler})

	return func() {
		e.off(event, id)
	}
}

func (e *WorkspaceEventEmitter) off(event WorkspaceEvent, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.listeners[event]
	for i, l := range current {
		if l.id == id {
			next := make([]listener, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			e.listeners[event] = next
			return
		}
	}
}

// Emit delivers a payload to every handler registered for event
func (e *WorkspaceEventEmitter) Emit(event WorkspaceEvent, payload interface{}) {
	e.mu.RLock()
	handlers := e.listeners[event]
	e.mu.RUnlock()

	for _, l := range handlers {
		l.handler(payload)
	}
}

func newPayload(event WorkspaceEvent) EventPayload {
	return EventPayload{
		Event:     event,
		Timestamp: time.Now(),
	}
}

// EmitFileAdded emits a file added event
func (e *WorkspaceEventEmitter) EmitFileAdded(file *File, replaced bool) {
	e.Emit(EventFileAdded, FileEventPayload{
		EventPayload: newPayload(EventFileAdded),
		Filename:     file.Filename,
		Language:     file.Language(),
		Hidden:       file.Hidden,
		Replaced:     replaced,
	})
}

// EmitFileDeleted emits a file deleted event
func (e *WorkspaceEventEmitter) EmitFileDeleted(file *File) {
	e.Emit(EventFileDeleted, FileEventPayload{
		EventPayload: newPayload(EventFileDeleted),
		Filename:     file.Filename,
		Language:     file.Language(),
		Hidden:       file.Hidden,
	})
}

// EmitFileEdited emits a file edited event
func (e *WorkspaceEventEmitter) EmitFileEdited(file *File) {
	e.Emit(EventFileEdited, FileEventPayload{
		EventPayload: newPayload(EventFileEdited),
		Filename:     file.Filename,
		Language:     file.Language(),
		Hidden:       file.Hidden,
	})
}

// EmitFileRenamed emits a file renamed event
func (e *WorkspaceEventEmitter) EmitFileRenamed(oldFilename, newFilename, mainFile string) {
	e.Emit(EventFileRenamed, RenamePayload{
		EventPayload: newPayload(EventFileRenamed),
		OldFilename:  oldFilename,
		NewFilename:  newFilename,
		MainFile:     mainFile,
	})
}

// EmitActiveChanged emits an active file changed event
func (e *WorkspaceEventEmitter) EmitActiveChanged(filename string) {
	e.Emit(EventActiveChanged, ActiveChangedPayload{
		EventPayload: newPayload(EventActiveChanged),
		Filename:     filename,
	})
}

// EmitErrorsChanged emits an errors changed event
func (e *WorkspaceEventEmitter) EmitErrorsChanged(errs []error) {
	e.Emit(EventErrorsChanged, ErrorsChangedPayload{
		EventPayload: newPayload(EventErrorsChanged),
		Errors:       errs,
	})
}

// RemoveAllListeners removes all event listeners
func (e *WorkspaceEventEmitter) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = make(map[WorkspaceEvent][]listener)
}
