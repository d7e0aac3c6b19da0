package editorsync

import (
	"net/url"
	"strings"

	"github.com/harun/fiftplay/pkg/playground"
)

const (
	// WorkspaceScheme prefixes the URI of every workspace-backed model
	WorkspaceScheme = "file"

	// ReservedNamespace holds scratch models owned by the editor itself.
	// The sync loop never disposes them.
	ReservedNamespace = "inmemory://"
)

// Model is one live document in the editor surface
type Model interface {
	URI() string
	Language() playground.Language
	Content() string
}

// Surface is the document-model registry of an editor
type Surface interface {
	GetModel(uri string) (Model, bool)
	Models() []Model
	CreateOrReuseModel(uri string, language playground.Language, content string) Model
	Dispose(model Model)
	RegisterLanguage(spec playground.LanguageSpec)
}

// EditSource is implemented by surfaces that report user edits, so they can
// flow back into the workspace
type EditSource interface {
	OnEdit(handler func(uri, content string)) func()
}

// URIFor returns the model URI of a workspace filename
func URIFor(filename string) string {
	u := url.URL{Scheme: WorkspaceScheme, Path: "/" + filename}
	return u.String()
}

// FilenameFromURI reverses URIFor. It reports false for URIs outside the
// workspace scheme.
func FilenameFromURI(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != WorkspaceScheme || u.Host != "" {
		return "", false
	}
	if !strings.HasPrefix(u.Path, "/") {
		return "", false
	}
	return strings.TrimPrefix(u.Path, "/"), true
}

// IsReserved reports whether uri belongs to the editor's own namespace
func IsReserved(uri string) bool {
	return strings.HasPrefix(uri, ReservedNamespace)
}

// IsWorkspaceURI reports whether uri may be backed by a workspace file
func IsWorkspaceURI(uri string) bool {
	if IsReserved(uri) {
		return false
	}
	_, ok := FilenameFromURI(uri)
	return ok
}
