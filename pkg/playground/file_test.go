package playground

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageFor(t *testing.T) {
	tests := []struct {
		filename string
		want     Language
	}{
		{"main.fif", LanguageFift},
		{"dir/lib.fif", LanguageFift},
		{"notes.txt", LanguagePlainText},
		{"fif", LanguagePlainText},
		{"main.fift", LanguagePlainText},
		{"", LanguagePlainText},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, LanguageFor(tt.filename))
			assert.Equal(t, tt.want, NewFile(tt.filename, "", false).Language())
		})
	}
}

func TestLanguages_ReturnsCopy(t *testing.T) {
	langs := Languages()
	assert.Equal(t, []LanguageSpec{{ID: LanguageFift, Extensions: []string{".fif"}}}, langs)

	langs[0].Extensions[0] = ".changed"
	assert.Equal(t, ".fif", Languages()[0].Extensions[0])
}

func TestRenameError_Messages(t *testing.T) {
	missing := &RenameError{Kind: ErrRenameTargetMissing, OldFilename: "a.fif", NewFilename: "b.fif"}
	invalid := &RenameError{Kind: ErrRenameTargetInvalid, OldFilename: "a.fif", NewFilename: ""}

	assert.Equal(t, `Could not rename "a.fif", file not found`, missing.Error())
	assert.Equal(t, `Cannot rename "a.fif" to ""`, invalid.Error())
	assert.ErrorIs(t, missing, ErrRenameTargetMissing)
	assert.NotErrorIs(t, missing, ErrRenameTargetInvalid)
}
