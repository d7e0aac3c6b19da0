package editorsync

import (
	"github.com/harun/fiftplay/internal/observability"
	"github.com/harun/fiftplay/pkg/playground"
	"github.com/rs/zerolog"
)

// Result counts what one reconciliation pass changed
type Result struct {
	Created  []string
	Disposed []string
}

// Changed reports whether the pass touched the surface
func (r Result) Changed() bool {
	return len(r.Created) > 0 || len(r.Disposed) > 0
}

// Reconciler brings a surface in line with a set of workspace files
type Reconciler struct {
	surface Surface
	logger  zerolog.Logger
}

// NewReconciler creates a reconciler for surface
func NewReconciler(surface Surface, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		surface: surface,
		logger:  logger.With().Str("component", "editorsync").Logger(),
	}
}

// Run recomputes the desired model set from files. Missing models are
// created from the file's language and code; existing models are left
// untouched. Workspace models with no backing file are disposed. Models
// outside the workspace scheme are never disposed.
func (r *Reconciler) Run(files []*playground.File) Result {
	var result Result
	desired := make(map[string]struct{}, len(files))

	for _, file := range files {
		uri := URIFor(file.Filename)
		desired[uri] = struct{}{}

		if _, ok := r.surface.GetModel(uri); ok {
			continue
		}
		language := file.Language()
		r.surface.CreateOrReuseModel(uri, language, file.Code)
		observability.RecordModelCreated(string(language))
		result.Created = append(result.Created, uri)
	}

	for _, model := range r.surface.Models() {
		uri := model.URI()
		if _, ok := desired[uri]; ok {
			continue
		}
		if !IsWorkspaceURI(uri) {
			continue
		}
		r.surface.Dispose(model)
		observability.RecordModelDisposed(string(model.Language()))
		result.Disposed = append(result.Disposed, uri)
	}

	if result.Changed() {
		r.logger.Debug().
			Int("created", len(result.Created)).
			Int("disposed", len(result.Disposed)).
			Msg("Editor models reconciled")
	}
	return result
}
