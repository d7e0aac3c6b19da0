package playground

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSet_SetKeepsPosition(t *testing.T) {
	set := newFileSet()
	a := NewFile("a.fif", "", false)
	b := NewFile("b.fif", "", false)
	set.Set("a.fif", a)
	set.Set("b.fif", b)

	a2 := NewFile("a.fif", "again", false)
	prev, replaced := set.Set("a.fif", a2)

	assert.True(t, replaced)
	assert.Same(t, a, prev)
	assert.Equal(t, []string{"a.fif", "b.fif"}, set.Names())
	got, _ := set.Get("a.fif")
	assert.Same(t, a2, got)
}

func TestFileSet_Delete(t *testing.T) {
	set := newFileSet()
	set.Set("a.fif", NewFile("a.fif", "", false))
	set.Set("b.fif", NewFile("b.fif", "", false))
	set.Set("c.fif", NewFile("c.fif", "", false))

	removed, ok := set.Delete("b.fif")
	require.True(t, ok)
	assert.Equal(t, "b.fif", removed.Filename)
	assert.Equal(t, []string{"a.fif", "c.fif"}, set.Names())

	_, ok = set.Delete("b.fif")
	assert.False(t, ok)
	assert.Equal(t, 2, set.Len())
}

func TestFileSet_Rekey(t *testing.T) {
	t.Run("same position", func(t *testing.T) {
		set := newFileSet()
		a := NewFile("a.fif", "", false)
		set.Set("a.fif", a)
		set.Set("b.fif", NewFile("b.fif", "", false))

		displaced, had := set.Rekey("a.fif", "z.fif")

		assert.False(t, had)
		assert.Nil(t, displaced)
		assert.Equal(t, []string{"z.fif", "b.fif"}, set.Names())
		got, _ := set.Get("z.fif")
		assert.Same(t, a, got)
		assert.False(t, set.Has("a.fif"))
	})

	t.Run("onto existing key", func(t *testing.T) {
		set := newFileSet()
		a := NewFile("a.fif", "", false)
		b := NewFile("b.fif", "", false)
		set.Set("a.fif", a)
		set.Set("b.fif", b)

		displaced, had := set.Rekey("b.fif", "a.fif")

		assert.True(t, had)
		assert.Same(t, a, displaced)
		assert.Equal(t, []string{"a.fif"}, set.Names())
		got, _ := set.Get("a.fif")
		assert.Same(t, b, got)
	})

	t.Run("missing or unchanged", func(t *testing.T) {
		set := newFileSet()
		set.Set("a.fif", NewFile("a.fif", "", false))

		_, had := set.Rekey("nope.fif", "x.fif")
		assert.False(t, had)
		_, had = set.Rekey("a.fif", "a.fif")
		assert.False(t, had)
		assert.Equal(t, []string{"a.fif"}, set.Names())
	})
}

func TestFileSet_FirstAndContains(t *testing.T) {
	set := newFileSet()
	_, ok := set.First()
	assert.False(t, ok)

	a := NewFile("a.fif", "", false)
	set.Set("a.fif", a)
	set.Set("b.fif", NewFile("b.fif", "", false))

	first, ok := set.First()
	require.True(t, ok)
	assert.Same(t, a, first)

	assert.True(t, set.Contains(a))
	assert.False(t, set.Contains(NewFile("a.fif", "", false)))
	assert.False(t, set.Contains(nil))
}

func TestFileSet_FirstVisible(t *testing.T) {
	set := newFileSet()
	_, ok := set.FirstVisible()
	assert.False(t, ok)

	lib := NewFile("lib.fif", "", true)
	set.Set("lib.fif", lib)
	first, ok := set.FirstVisible()
	require.True(t, ok)
	assert.Same(t, lib, first)

	b := NewFile("b.fif", "", false)
	set.Set("b.fif", b)
	first, ok = set.FirstVisible()
	require.True(t, ok)
	assert.Same(t, b, first)
}
