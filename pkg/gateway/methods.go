package gateway

import (
	"context"
	"encoding/json"

	"github.com/harun/fiftplay/internal/observability"
	"github.com/harun/fiftplay/internal/tracing"
	"github.com/harun/fiftplay/pkg/editorsync"
	"github.com/harun/fiftplay/pkg/linkcodec"
	"github.com/harun/fiftplay/pkg/playground"
)

// registerBuiltinMethods registers all built-in RPC methods
func (s *Server) registerBuiltinMethods() {
	_ = s.RegisterMethod("workspace.state", s.handleState)
	_ = s.RegisterMethod("workspace.addFile", s.handleAddFile)
	_ = s.RegisterMethod("workspace.setActive", s.handleSetActive)
	_ = s.RegisterMethod("workspace.renameFile", s.handleRenameFile)
	_ = s.RegisterMethod("workspace.requestDelete", s.handleRequestDelete)
	_ = s.RegisterMethod("workspace.confirmDelete", s.handleConfirmDelete)
	_ = s.RegisterMethod("workspace.cancelDelete", s.handleCancelDelete)
	_ = s.RegisterMethod("workspace.edit", s.handleEdit)
	_ = s.RegisterMethod("workspace.serialize", s.handleSerialize)
	_ = s.RegisterMethod("workspace.clearErrors", s.handleClearErrors)
	_ = s.RegisterMethod("snippets.share", s.handleShare)
	_ = s.RegisterMethod("snippets.open", s.handleOpen)
}

type filenameParams struct {
	Filename string `json:"filename"`
}

type addFileParams struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
	Hidden   bool   `json:"hidden"`
}

type renameParams struct {
	OldFilename string `json:"oldFilename"`
	NewFilename string `json:"newFilename"`
}

type handleParams struct {
	ID string `json:"id"`
}

type editParams struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
}

func auditWorkspace(ctx context.Context, action string, err error, fields map[string]interface{}) {
	observability.RecordWorkspaceAudit(tracing.GetSessionID(ctx), action, err, fields)
}

func (s *Server) handleState(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	return stateView(sess.Store()), nil
}

func (s *Server) handleAddFile(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	var p addFileParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireParam("filename", p.Filename); err != nil {
		return nil, err
	}

	err := sess.Store().AddFile(playground.NewFile(p.Filename, p.Code, p.Hidden))
	auditWorkspace(ctx, "add_file", err, map[string]interface{}{"filename": p.Filename, "hidden": p.Hidden})
	if err != nil {
		return nil, err
	}
	return stateView(sess.Store()), nil
}

func (s *Server) handleSetActive(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	var p filenameParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := sess.Store().SetActive(p.Filename); err != nil {
		return nil, err
	}
	return stateView(sess.Store()), nil
}

func (s *Server) handleRenameFile(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	var p renameParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	err := sess.Store().RenameFile(p.OldFilename, p.NewFilename)
	auditWorkspace(ctx, "rename_file", err, map[string]interface{}{"from": p.OldFilename, "to": p.NewFilename})
	if err != nil {
		return nil, err
	}
	return stateView(sess.Store()), nil
}

func (s *Server) handleRequestDelete(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	var p filenameParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireParam("filename", p.Filename); err != nil {
		return nil, err
	}

	pending, err := sess.Store().RequestDelete(p.Filename)
	if err != nil {
		return nil, err
	}
	return PendingDeleteView{ID: pending.ID, Filename: pending.Filename, Prompt: pending.Prompt}, nil
}

func (s *Server) handleConfirmDelete(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	var p handleParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	err := sess.Store().ConfirmDelete(p.ID)
	auditWorkspace(ctx, "delete_file", err, map[string]interface{}{"pendingId": p.ID})
	if err != nil {
		return nil, err
	}
	return stateView(sess.Store()), nil
}

func (s *Server) handleCancelDelete(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	var p handleParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := sess.Store().CancelDelete(p.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"cancelled": true}, nil
}

// handleEdit applies a client edit to its document model. The sync loop
// carries it into the workspace file.
func (s *Server) handleEdit(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	var p editParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if _, ok := sess.Store().File(p.Filename); !ok {
		return nil, &playground.FileNotFoundError{Filename: p.Filename}
	}
	if err := sess.Surface().Edit(editorsync.URIFor(p.Filename), p.Code); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleSerialize(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	link, err := sess.Store().Serialize()
	if err != nil {
		return nil, err
	}
	return map[string]string{"link": link}, nil
}

func (s *Server) handleClearErrors(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	sess.Store().Init()
	return stateView(sess.Store()), nil
}

func (s *Server) handleShare(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	if s.snippets == nil {
		return nil, &RPCError{Code: FeatureDisabled, Message: "snippet sharing is disabled"}
	}

	link, err := sess.Store().Serialize()
	if err != nil {
		return nil, err
	}
	snippet, err := s.snippets.Save(ctx, link)
	observability.RecordShareAudit(tracing.GetSessionID(ctx), "share", err, map[string]interface{}{
		"files": sess.Store().Len(),
	})
	if err != nil {
		return nil, err
	}

	result := ShareResult{ID: snippet.ID, Link: snippet.Link()}
	if !snippet.ExpiresAt.IsZero() {
		expiresAt := snippet.ExpiresAt
		result.ExpiresAt = &expiresAt
	}
	return result, nil
}

// handleOpen replaces the session workspace with a shared snippet
func (s *Server) handleOpen(ctx context.Context, sess *Session, params json.RawMessage) (interface{}, error) {
	if s.snippets == nil {
		return nil, &RPCError{Code: FeatureDisabled, Message: "snippet sharing is disabled"}
	}

	var p handleParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireParam("id", p.ID); err != nil {
		return nil, err
	}

	snippet, err := s.snippets.Load(ctx, p.ID)
	if err != nil {
		observability.RecordShareAudit(tracing.GetSessionID(ctx), "open", err, map[string]interface{}{"id": p.ID})
		return nil, err
	}

	store, err := playground.NewStore(playground.StoreOptions{
		SerializedState: linkcodec.FragmentMarker + snippet.Token,
		ShowOutput:      sess.Store().ShowOutput(),
	})
	if err != nil {
		return nil, err
	}
	if err := sess.Replace(store); err != nil {
		return nil, err
	}

	observability.RecordShareAudit(tracing.GetSessionID(ctx), "open", nil, map[string]interface{}{"id": p.ID})
	return stateView(store), nil
}
