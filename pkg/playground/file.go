package playground

import "strings"

// Language identifies the editor language of a file
type Language string

const (
	LanguageFift      Language = "fift" // .fif
	LanguagePlainText Language = "text" // anything else
)

// LanguageSpec describes a language the editor surface must register
type LanguageSpec struct {
	ID         Language
	Extensions []string
}

// languageTable is the closed set of known languages. The first matching
// extension wins; unmatched filenames fall back to plain text.
var languageTable = []LanguageSpec{
	{ID: LanguageFift, Extensions: []string{".fif"}},
}

// Languages returns the languages keyed by file extension, in registration order
func Languages() []LanguageSpec {
	out := make([]LanguageSpec, len(languageTable))
	for i, spec := range languageTable {
		out[i] = LanguageSpec{ID: spec.ID, Extensions: append([]string(nil), spec.Extensions...)}
	}
	return out
}

// LanguageFor resolves the language of a filename from its suffix
func LanguageFor(filename string) Language {
	for _, spec := range languageTable {
		for _, ext := range spec.Extensions {
			if strings.HasSuffix(filename, ext) {
				return spec.ID
			}
		}
	}
	return LanguagePlainText
}

// File is one workspace file. The pointer is its identity: renames change
// Filename in place and never copy the value.
type File struct {
	Filename string
	Code     string
	Hidden   bool

	// EditorViewState is owned by the editor surface and never interpreted here
	EditorViewState interface{}
}

// NewFile creates a file. Filename validity is checked by the Store, not here.
func NewFile(filename, code string, hidden bool) *File {
	return &File{
		Filename: filename,
		Code:     code,
		Hidden:   hidden,
	}
}

// Language returns the file's editor language
func (f *File) Language() Language {
	return LanguageFor(f.Filename)
}
