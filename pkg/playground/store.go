package playground

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harun/fiftplay/internal/observability"
	"github.com/harun/fiftplay/pkg/linkcodec"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// Store owns the workspace: its files, the main and active designations and
// the user-facing error list. Every mutation goes through a method so that
// observers are notified after each change.
type Store struct {
	mu         sync.RWMutex
	files      *fileSet
	mainFile   string
	activeFile *File
	errors     []error
	pending    map[string]*PendingDelete
	showOutput bool
	now        func() time.Time

	emitter *WorkspaceEventEmitter
}

// NewStore creates a workspace from serialized link state, or the welcome
// workspace when no state is given
func NewStore(opts StoreOptions) (*Store, error) {
	s := &Store{
		files:      newFileSet(),
		pending:    make(map[string]*PendingDelete),
		showOutput: opts.ShowOutput,
		now:        time.Now,
		emitter:    NewWorkspaceEventEmitter(),
	}

	if state := strings.TrimSpace(opts.SerializedState); linkcodec.TokenFromLink(state) != "" {
		entries, err := linkcodec.Unmarshal(state)
		if err != nil {
			return nil, fmt.Errorf("failed to decode workspace state: %w", err)
		}
		for _, entry := range entries {
			if entry.Filename == "" {
				log.Warn().Msg("Skipping unnamed file in workspace state")
				continue
			}
			s.insertLocked(NewFile(entry.Filename, entry.Code, false))
		}
	}

	if s.files.Len() == 0 {
		s.insertLocked(NewFile(DefaultMainFile, WelcomeCode, false))
	}

	s.mainFile = DefaultMainFile
	if !s.files.Has(s.mainFile) {
		first, _ := s.files.First()
		s.mainFile = first.Filename
	}
	s.activeFile, _ = s.files.Get(s.mainFile)

	log.Debug().
		Int("fileCount", s.files.Len()).
		Str("mainFile", s.mainFile).
		Msg("Workspace created")

	return s, nil
}

// Init clears the error list
func (s *Store) Init() {
	s.mu.Lock()
	hadErrors := len(s.errors) > 0
	s.errors = nil
	s.mu.Unlock()

	if hadErrors {
		s.emitter.EmitErrorsChanged(nil)
	}
}

// SetActive makes the named file the active one
func (s *Store) SetActive(filename string) error {
	s.mu.Lock()
	file, ok := s.files.Get(filename)
	if !ok {
		s.mu.Unlock()
		observability.RecordWorkspaceOp("set_active", false)
		return &FileNotFoundError{Filename: filename}
	}
	changed := s.activeFile != file
	s.activeFile = file
	s.mu.Unlock()

	observability.RecordWorkspaceOp("set_active", true)
	if changed {
		s.emitter.EmitActiveChanged(filename)
	}
	return nil
}

// AddFileNamed adds an empty, visible file
func (s *Store) AddFileNamed(filename string) error {
	return s.AddFile(NewFile(filename, "", false))
}

// AddFile inserts a file keyed by its filename. A file with the same name is
// replaced in place. Visible files become active.
func (s *Store) AddFile(file *File) error {
	if file == nil {
		return fmt.Errorf("file is required")
	}
	if file.Filename == "" {
		observability.RecordWorkspaceOp("add", false)
		return ErrEmptyFilename
	}

	s.mu.Lock()
	prevActive := s.activeFile
	replaced := s.insertLocked(file)
	snapshot := *file
	activeChanged := s.activeFile != prevActive
	s.mu.Unlock()

	observability.RecordWorkspaceOp("add", true)
	log.Debug().
		Str("filename", snapshot.Filename).
		Bool("replaced", replaced).
		Msg("File added")

	s.emitter.EmitFileAdded(&snapshot, replaced)
	if activeChanged {
		s.emitter.EmitActiveChanged(snapshot.Filename)
	}
	return nil
}

// insertLocked is the single insertion path for files. Callers hold s.mu or
// own the store exclusively.
func (s *Store) insertLocked(file *File) bool {
	prev, replaced := s.files.Set(file.Filename, file)

	switch {
	case !file.Hidden:
		s.activeFile = file
	case replaced && s.activeFile == prev:
		s.activeFile = file
	case s.activeFile == nil:
		s.activeFile = file
	}

	if !s.files.Has(s.mainFile) {
		s.mainFile = file.Filename
	}
	return replaced
}

// RequestDelete starts a delete. The returned handle carries the prompt to
// show; nothing changes until ConfirmDelete. Handles expire after
// PendingDeleteTTL and at most MaxPendingDeletes are kept.
func (s *Store) RequestDelete(filename string) (*PendingDelete, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create delete handle: %w", err)
	}

	s.mu.Lock()
	now := s.now()
	s.prunePendingLocked(now)
	for len(s.pending) >= MaxPendingDeletes {
		s.dropOldestPendingLocked()
	}
	pending := &PendingDelete{
		ID:        id,
		Filename:  filename,
		Prompt:    deletePrompt(filename),
		CreatedAt: now,
	}
	s.pending[id] = pending
	s.mu.Unlock()

	copied := *pending
	return &copied, nil
}

// ConfirmDelete applies a pending delete. Deleting a name that no longer
// exists is a no-op.
func (s *Store) ConfirmDelete(id string) error {
	s.mu.Lock()
	s.prunePendingLocked(s.now())
	pending, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPendingDelete, id)
	}
	delete(s.pending, id)

	prevActive := s.activeFile
	removed, ok := s.deleteLocked(pending.Filename)
	var activeName string
	if s.activeFile != nil {
		activeName = s.activeFile.Filename
	}
	activeChanged := s.activeFile != prevActive
	s.mu.Unlock()

	observability.RecordWorkspaceOp("delete", true)
	if !ok {
		log.Debug().Str("filename", pending.Filename).Msg("Delete confirmed for missing file")
		return nil
	}

	log.Info().Str("filename", removed.Filename).Msg("File deleted")
	s.emitter.EmitFileDeleted(&removed)
	if activeChanged {
		s.emitter.EmitActiveChanged(activeName)
	}
	return nil
}

// CancelDelete drops a pending delete without changing the workspace
func (s *Store) CancelDelete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prunePendingLocked(s.now())
	if _, ok := s.pending[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPendingDelete, id)
	}
	delete(s.pending, id)
	return nil
}

// PendingDeletes returns the unresolved delete handles that have not expired
func (s *Store) PendingDeletes() []PendingDelete {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := make([]PendingDelete, 0, len(s.pending))
	for _, p := range s.pending {
		if now.Sub(p.CreatedAt) < PendingDeleteTTL {
			out = append(out, *p)
		}
	}
	return out
}

func (s *Store) prunePendingLocked(now time.Time) {
	for id, p := range s.pending {
		if now.Sub(p.CreatedAt) >= PendingDeleteTTL {
			delete(s.pending, id)
		}
	}
}

func (s *Store) dropOldestPendingLocked() {
	var oldest *PendingDelete
	for _, p := range s.pending {
		if oldest == nil || p.CreatedAt.Before(oldest.CreatedAt) {
			oldest = p
		}
	}
	if oldest != nil {
		delete(s.pending, oldest.ID)
	}
}

// DeleteFile asks confirmer and deletes the file on a yes. It reports
// whether the delete was applied. A cancelled context or confirmer error
// leaves the workspace untouched.
func (s *Store) DeleteFile(ctx context.Context, filename string, confirmer Confirmer) (bool, error) {
	pending, err := s.RequestDelete(filename)
	if err != nil {
		return false, err
	}

	ok, err := confirmer.Confirm(ctx, pending.Prompt)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil || !ok {
		_ = s.CancelDelete(pending.ID)
		observability.RecordWorkspaceOp("delete_cancel", err == nil)
		return false, err
	}

	if err := s.ConfirmDelete(pending.ID); err != nil {
		return false, err
	}
	return true, nil
}

// deleteLocked removes filename and repairs the main and active pointers.
// It returns a copy of the removed file.
func (s *Store) deleteLocked(filename string) (File, bool) {
	file, ok := s.files.Get(filename)
	if !ok {
		return File{}, false
	}
	wasActive := s.activeFile == file
	s.files.Delete(filename)

	if s.mainFile == filename {
		s.mainFile = ""
		if next, ok := s.files.FirstVisible(); ok {
			s.mainFile = next.Filename
		}
	}

	if wasActive {
		s.activeFile = nil
		if main, ok := s.files.Get(s.mainFile); ok {
			s.activeFile = main
		}
	}
	return *file, true
}

// RenameFile renames a file in place, keeping its position and identity.
// Rejected renames are appended to the error list and returned.
func (s *Store) RenameFile(oldFilename, newFilename string) error {
	s.mu.Lock()
	file, ok := s.files.Get(oldFilename)
	if !ok {
		err := &RenameError{Kind: ErrRenameTargetMissing, OldFilename: oldFilename, NewFilename: newFilename}
		errs := s.appendErrorLocked(err)
		s.mu.Unlock()
		observability.RecordWorkspaceOp("rename", false)
		s.emitter.EmitErrorsChanged(errs)
		return err
	}

	if newFilename == "" || oldFilename == newFilename {
		err := &RenameError{Kind: ErrRenameTargetInvalid, OldFilename: oldFilename, NewFilename: newFilename}
		errs := s.appendErrorLocked(err)
		s.mu.Unlock()
		observability.RecordWorkspaceOp("rename", false)
		s.emitter.EmitErrorsChanged(errs)
		return err
	}

	file.Filename = newFilename
	displaced, hadDisplaced := s.files.Rekey(oldFilename, newFilename)

	activeChanged := false
	if hadDisplaced && s.activeFile == displaced {
		s.activeFile = file
		activeChanged = true
	}
	if s.mainFile == oldFilename {
		s.mainFile = newFilename
	}
	mainFile := s.mainFile
	s.mu.Unlock()

	observability.RecordWorkspaceOp("rename", true)
	log.Info().
		Str("from", oldFilename).
		Str("to", newFilename).
		Msg("File renamed")

	s.emitter.EmitFileRenamed(oldFilename, newFilename, mainFile)
	if activeChanged {
		s.emitter.EmitActiveChanged(newFilename)
	}
	return nil
}

func (s *Store) appendErrorLocked(err error) []error {
	s.errors = append(s.errors, err)
	return append([]error(nil), s.errors...)
}

// UpdateCode stores an edit coming back from the editor surface
func (s *Store) UpdateCode(filename, code string) error {
	s.mu.Lock()
	file, ok := s.files.Get(filename)
	if !ok {
		s.mu.Unlock()
		return &FileNotFoundError{Filename: filename}
	}
	file.Code = code
	snapshot := *file
	s.mu.Unlock()

	s.emitter.EmitFileEdited(&snapshot)
	return nil
}

// SetEditorViewState stores the editor's opaque view state for a file
func (s *Store) SetEditorViewState(filename string, state interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.files.Get(filename)
	if !ok {
		return &FileNotFoundError{Filename: filename}
	}
	file.EditorViewState = state
	return nil
}

// Serialize returns the share-link fragment for the workspace, '#' included
func (s *Store) Serialize() (string, error) {
	return linkcodec.Marshal(s.GetFiles())
}

// GetFiles exports filename and code of every file, in workspace order
func (s *Store) GetFiles() []linkcodec.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]linkcodec.Entry, 0, s.files.Len())
	for _, file := range s.files.Values() {
		out = append(out, linkcodec.Entry{Filename: file.Filename, Code: file.Code})
	}
	return out
}

// GetFileMap exports the workspace as a plain filename to code map
func (s *Store) GetFileMap() map[string]string {
	return linkcodec.ToMap(s.GetFiles())
}

// Files returns the workspace files in order. The pointers are live.
func (s *Store) Files() []*File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files.Values()
}

// FileNames returns the workspace filenames in order
func (s *Store) FileNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files.Names()
}

// File looks a file up by name
func (s *Store) File(filename string) (*File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files.Get(filename)
}

// Code returns the content of a file under the store lock
func (s *Store) Code(filename string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.files.Get(filename)
	if !ok {
		return "", false
	}
	return file.Code, true
}

// MainFile returns the main filename
func (s *Store) MainFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mainFile
}

// ActiveFile returns the active file, nil only for an empty workspace
func (s *Store) ActiveFile() *File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeFile
}

// Errors returns a copy of the error list
func (s *Store) Errors() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]error(nil), s.errors...)
}

// ShowOutput returns the initial output pane visibility
func (s *Store) ShowOutput() bool {
	return s.showOutput
}

// Len returns the number of files
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files.Len()
}

// On registers an event handler and returns a function removing it
func (s *Store) On(event WorkspaceEvent, handler EventHandler) func() {
	return s.emitter.On(event, handler)
}

// OnMembershipChange registers handler for every event that changes the
// set of filenames
func (s *Store) OnMembershipChange(handler EventHandler) func() {
	offs := make([]func(), 0, len(MembershipEvents))
	for _, event := range MembershipEvents {
		offs = append(offs, s.emitter.On(event, handler))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// Close removes all listeners
func (s *Store) Close() {
	s.emitter.RemoveAllListeners()
}
