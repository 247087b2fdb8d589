// Package backend describes the data backend the board client talks to:
// live element/presence subscriptions plus point mutations.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Blackmamoth/collably-sub000/internal/model"
)

// ElementDraft is an element before the backend assigns it an id.
type ElementDraft struct {
	ElementType model.ElementType  `json:"elementType"`
	X           float64            `json:"x"`
	Y           float64            `json:"y"`
	Fields      model.ElementPatch `json:"fields"`
}

// Element renders the draft as an element with the given id.
func (d ElementDraft) Element(id, projectID, createdBy string) model.Element {
	e := model.Element{
		ID:          id,
		ProjectID:   projectID,
		ElementType: d.ElementType,
		X:           d.X,
		Y:           d.Y,
		CreatedBy:   createdBy,
	}
	d.Fields.Apply(&e)
	// geometry lives in X/Y, not in the patch
	e.X, e.Y = d.X, d.Y
	return e
}

// Subscription is a live stream of full snapshots. Updates is closed when the
// subscription ends; Err then reports why (nil after Close).
type Subscription[T any] interface {
	Updates() <-chan T
	Err() error
	Close() error
}

// ElementStore 요소 컬렉션 (구독 + 단건 변경)
type ElementStore interface {
	SubscribeElements(ctx context.Context, projectID string) (Subscription[[]model.Element], error)
	InsertElement(ctx context.Context, projectID string, draft ElementDraft) (string, error)
	PatchElement(ctx context.Context, projectID, id string, patch model.ElementPatch) error
	DeleteElement(ctx context.Context, projectID, id string) error
	ToggleVote(ctx context.Context, projectID, id string) error
	AddComment(ctx context.Context, projectID, id, text string) error
}

// PresenceStore 접속 상태 (구독 + upsert/delete)
type PresenceStore interface {
	SubscribePresence(ctx context.Context, projectID string) (Subscription[[]model.PresenceRecord], error)
	UpsertPresence(ctx context.Context, projectID string, cursor *model.Cursor) error
	DeletePresence(ctx context.Context, projectID string) error
}

// MemberSource resolves the workspace member directory.
type MemberSource interface {
	GetWorkspaceMembers(ctx context.Context) (model.MemberDirectory, error)
}

// Backend is the full data backend.
type Backend interface {
	ElementStore
	PresenceStore
	MemberSource
}

// RejectionError is an explicit authorization/validation refusal carrying a
// reason meant for the user.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected: %s", e.Reason)
}

// Reject builds a RejectionError.
func Reject(format string, args ...any) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// AsRejection extracts a rejection from err.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Websocket event types pushed by the board server.
const (
	EventElements = "elements"
	EventPresence = "presence"
	EventError    = "error"
)

// Event is the websocket envelope; Payload is a full snapshot for the topic.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
