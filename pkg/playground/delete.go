package playground

import (
	"context"
	"fmt"
	"time"
)

const (
	// MaxPendingDeletes bounds the unresolved handles a workspace keeps.
	// The oldest handle is dropped when a new request would exceed it.
	MaxPendingDeletes = 64

	// PendingDeleteTTL is how long a handle stays confirmable
	PendingDeleteTTL = 10 * time.Minute
)

// PendingDelete is the first phase of a two-phase delete. Nothing is
// removed until the handle is confirmed.
type PendingDelete struct {
	ID        string
	Filename  string
	Prompt    string
	CreatedAt time.Time
}

// Confirmer asks the user a yes/no question before a destructive action
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm implements Confirmer
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm answers yes without asking. Used by non-interactive flows
// such as directory mirroring.
var AlwaysConfirm = ConfirmFunc(func(ctx context.Context, _ string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
})

func deletePrompt(filename string) string {
	return fmt.Sprintf("Are you sure to delete %s?", filename)
}
