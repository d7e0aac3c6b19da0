package playground

import "time"

const (
	// DefaultMainFile is the entry file of a fresh workspace
	DefaultMainFile = "main.fif"

	// WelcomeCode is the content of DefaultMainFile in a fresh workspace
	WelcomeCode = `"Hello world!" type cr`
)

// StoreOptions configures a new Store
type StoreOptions struct {
	// SerializedState is link state as produced by Store.Serialize, with or
	// without the leading '#'. Empty means the welcome workspace.
	SerializedState string

	// ShowOutput is the initial visibility of the output pane, carried for
	// the editor surface
	ShowOutput bool
}

// WorkspaceEvent represents event types emitted by the store
type WorkspaceEvent string

const (
	EventFileAdded     WorkspaceEvent = "workspace.file.added"
	EventFileDeleted   WorkspaceEvent = "workspace.file.deleted"
	EventFileRenamed   WorkspaceEvent = "workspace.file.renamed"
	EventFileEdited    WorkspaceEvent = "workspace.file.edited"
	EventActiveChanged WorkspaceEvent = "workspace.active.changed"
	EventErrorsChanged WorkspaceEvent = "workspace.errors.changed"
)

// MembershipEvents are the events that change the set of filenames
var MembershipEvents = []WorkspaceEvent{
	EventFileAdded,
	EventFileDeleted,
	EventFileRenamed,
}

// IsMembershipEvent reports whether event changes the set of filenames
func IsMembershipEvent(event WorkspaceEvent) bool {
	for _, e := range MembershipEvents {
		if e == event {
			return true
		}
	}
	return false
}

// EventPayload represents the base event payload
type EventPayload struct {
	Event     WorkspaceEvent
	Timestamp time.Time
}

// FileEventPayload is emitted for add, delete and edit
type FileEventPayload struct {
	EventPayload
	Filename string
	Language Language
	Hidden   bool
	Replaced bool // add overwrote an existing entry
}

// RenamePayload is emitted after a successful rename
type RenamePayload struct {
	EventPayload
	OldFilename string
	NewFilename string
	MainFile    string
}

// ActiveChangedPayload is emitted when the active file changes
type ActiveChangedPayload struct {
	EventPayload
	Filename string // empty when the workspace became empty
}

// ErrorsChangedPayload is emitted when the error list is appended or cleared
type ErrorsChangedPayload struct {
	EventPayload
	Errors []error
}
