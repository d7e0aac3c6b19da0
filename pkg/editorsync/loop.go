package editorsync

import (
	"errors"
	"sync"
	"time"

	"github.com/harun/fiftplay/internal/observability"
	"github.com/harun/fiftplay/pkg/playground"
	"github.com/rs/zerolog"
)

// ErrLoopStarted is returned by Start on a running loop
var ErrLoopStarted = errors.New("sync loop already started")

// Loop keeps a surface reconciled with a store. It runs once on Start and
// again after every membership change. Runs never overlap: a Run that
// arrives while a pass is in progress, including one made by an observer
// of that pass, is folded into another pass by the running caller.
type Loop struct {
	store      *playground.Store
	surface    Surface
	reconciler *Reconciler
	logger     zerolog.Logger

	runMu   sync.Mutex
	running bool
	rerun   bool

	mu        sync.Mutex
	started   bool
	langsOnce sync.Once
	offs      []func()
}

// NewLoop creates a sync loop between store and surface
func NewLoop(store *playground.Store, surface Surface, logger zerolog.Logger) *Loop {
	return &Loop{
		store:      store,
		surface:    surface,
		reconciler: NewReconciler(surface, logger),
		logger:     logger.With().Str("component", "editorsync").Logger(),
	}
}

// Start registers the known languages with the surface, reconciles once and
// subscribes to the store
func (l *Loop) Start() error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return ErrLoopStarted
	}
	l.started = true
	l.mu.Unlock()

	l.langsOnce.Do(func() {
		for _, spec := range playground.Languages() {
			l.surface.RegisterLanguage(spec)
		}
	})

	l.Run()

	offs := []func(){
		l.store.OnMembershipChange(func(payload interface{}) {
			l.Run()
		}),
	}
	if source, ok := l.surface.(EditSource); ok {
		offs = append(offs, source.OnEdit(l.applyEdit))
	}

	l.mu.Lock()
	l.offs = offs
	l.mu.Unlock()

	l.logger.Debug().Msg("Sync loop started")
	return nil
}

// Stop unsubscribes from the store and the surface. The surface's models
// are left as they are.
func (l *Loop) Stop() {
	l.mu.Lock()
	offs := l.offs
	l.offs = nil
	l.started = false
	l.mu.Unlock()

	for _, off := range offs {
		off()
	}
}

// Run reconciles the surface with the store. If a pass is already running
// Run marks it for another pass and returns an empty Result at once.
// Otherwise it passes until the store stops changing under it and returns
// everything those passes did.
func (l *Loop) Run() Result {
	l.runMu.Lock()
	if l.running {
		l.rerun = true
		l.runMu.Unlock()
		return Result{}
	}
	l.running = true
	l.runMu.Unlock()

	var total Result
	for {
		start := time.Now()
		result := l.reconciler.Run(l.store.Files())
		observability.RecordSyncRun(time.Since(start), len(l.surface.Models()))
		total.Created = append(total.Created, result.Created...)
		total.Disposed = append(total.Disposed, result.Disposed...)

		l.runMu.Lock()
		if !l.rerun {
			l.running = false
			l.runMu.Unlock()
			return total
		}
		l.rerun = false
		l.runMu.Unlock()
	}
}

// applyEdit writes a model edit back into the backing file
func (l *Loop) applyEdit(uri, content string) {
	filename, ok := FilenameFromURI(uri)
	if !ok || IsReserved(uri) {
		return
	}
	if err := l.store.UpdateCode(filename, content); err != nil {
		l.logger.Warn().Err(err).Str("uri", uri).Msg("Dropping edit for unknown file")
	}
}
