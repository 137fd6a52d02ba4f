// Package lifecycle holds the chapter state machine: which transitions are
// legal, who may trigger them, and what each one writes. Apply is pure
// decision logic; the store enforces the returned guard atomically.
package lifecycle

import (
	"errors"
	"strings"
	"time"

	"galley/api/internal/rbac"
	"galley/api/internal/store"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusEditing   Status = "editing"
	StatusReviewed  Status = "reviewed"
	StatusConfirmed Status = "confirmed"
)

// AllStatuses is the guard set for transitions that do not constrain status.
var AllStatuses = []Status{StatusDraft, StatusSubmitted, StatusEditing, StatusReviewed, StatusConfirmed}

type Kind string

const (
	KindSaveDraft  Kind = "save_draft"
	KindSubmit     Kind = "submit"
	KindEdit       Kind = "edit"
	KindReview     Kind = "review"
	KindConfirm    Kind = "confirm"
	KindUnconfirm  Kind = "unconfirm"
	KindUpdateMeta Kind = "update_meta"
	KindDelete     Kind = "delete"
)

// Actor is the identity+role combination initiating a transition. Role comes
// from the session token each request; the engine never stores it.
type Actor struct {
	ID   string
	Name string
	Role rbac.Role
}

// MetaPatch carries the admin/editor metadata fields of KindUpdateMeta.
type MetaPatch struct {
	OrderNumber *int
	Code        *string
	Title       *string
	WriterID    *string
	UnsetWriter bool
}

// Request is one transition attempt against a chapter.
type Request struct {
	Kind  Kind
	Actor Actor
	// Body is the original text for save/submit and the edited text for
	// edit/review; ignored by the other kinds.
	Body string
	Meta MetaPatch
}

// Decision is the outcome of a legal transition: the pre-state set the
// conditional write must verify, and the fields it writes. Delete marks the
// transition as a guarded delete rather than an update.
type Decision struct {
	Expect []Status
	Patch  store.ChapterPatch
	Delete bool
}

var (
	// ErrUnauthorized: the actor's role or identity does not permit the
	// transition. Never retried.
	ErrUnauthorized = errors.New("transition not permitted for actor")
	// ErrStaleState: the chapter's current status is outside the
	// transition's pre-state set. The caller should reload and report a
	// conflict, not retry blindly.
	ErrStaleState = errors.New("chapter status changed since last read")
	// ErrValidation: the payload is unacceptable (e.g. empty body on
	// submit). Reported field-level, never retried automatically.
	ErrValidation = errors.New("transition payload invalid")
)

// permitted is the declarative (role, kind) table. Writer-kind transitions
// additionally require ownership, checked in Apply.
var permitted = map[Kind][]rbac.Role{
	KindSaveDraft:  {rbac.RoleWriter},
	KindSubmit:     {rbac.RoleWriter},
	KindEdit:       {rbac.RoleEditor, rbac.RoleAdmin},
	KindReview:     {rbac.RoleEditor, rbac.RoleAdmin},
	KindConfirm:    {rbac.RoleAdmin},
	KindUnconfirm:  {rbac.RoleAdmin},
	KindUpdateMeta: {rbac.RoleEditor, rbac.RoleAdmin},
	KindDelete:     {rbac.RoleEditor, rbac.RoleAdmin},
}

// preStates is the transition table's allowed pre-state sets.
var preStates = map[Kind][]Status{
	KindSaveDraft: {StatusDraft, StatusSubmitted},
	KindSubmit:    {StatusDraft, StatusSubmitted},
	KindEdit:      {StatusSubmitted, StatusEditing},
	KindReview:    {StatusSubmitted, StatusEditing},
	KindConfirm:   {StatusReviewed},
	KindUnconfirm: {StatusConfirmed},
	KindDelete:    {StatusDraft},
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func rolePermitted(role rbac.Role, kind Kind) bool {
	for _, candidate := range permitted[kind] {
		if role == candidate {
			return true
		}
	}
	return false
}

// ownerOnly reports whether the kind requires the acting writer to own the
// chapter.
func ownerOnly(kind Kind) bool {
	return kind == KindSaveDraft || kind == KindSubmit
}

func strPtr(s string) *string { return &s }

// Apply validates a transition request against the chapter as last read and
// produces the guarded write. Checks run in a fixed order: role permission,
// ownership, status guard, payload validation. A nil error means the caller
// may issue the conditional store write; the write itself may still no-op if
// another actor advanced the chapter in the meantime.
func Apply(ch store.Chapter, req Request, now time.Time) (Decision, error) {
	if !rolePermitted(req.Actor.Role, req.Kind) {
		return Decision{}, ErrUnauthorized
	}
	if ownerOnly(req.Kind) {
		if ch.WriterID == nil || *ch.WriterID != req.Actor.ID {
			return Decision{}, ErrUnauthorized
		}
	}

	expect, guarded := preStates[req.Kind]
	if !guarded {
		expect = AllStatuses
	}
	if !statusIn(Status(ch.Status), expect) {
		return Decision{}, ErrStaleState
	}

	switch req.Kind {
	case KindSaveDraft:
		// Re-saving a submitted chapter pulls it back to draft.
		return Decision{
			Expect: expect,
			Patch: store.ChapterPatch{
				Status:       strPtr(string(StatusDraft)),
				OriginalBody: strPtr(req.Body),
			},
		}, nil

	case KindSubmit:
		if strings.TrimSpace(req.Body) == "" {
			return Decision{}, ErrValidation
		}
		submittedAt := now
		return Decision{
			Expect: expect,
			Patch: store.ChapterPatch{
				Status:       strPtr(string(StatusSubmitted)),
				OriginalBody: strPtr(req.Body),
				SubmittedAt:  &submittedAt,
			},
		}, nil

	case KindEdit:
		// Idempotent: re-entering editing from editing is legal and
		// last-write-wins between concurrent editors.
		editedAt := now
		return Decision{
			Expect: expect,
			Patch: store.ChapterPatch{
				Status:     strPtr(string(StatusEditing)),
				EditedBody: strPtr(req.Body),
				EditedBy:   strPtr(req.Actor.Name),
				EditedAt:   &editedAt,
			},
		}, nil

	case KindReview:
		if strings.TrimSpace(req.Body) == "" {
			return Decision{}, ErrValidation
		}
		at := now
		return Decision{
			Expect: expect,
			Patch: store.ChapterPatch{
				Status:     strPtr(string(StatusReviewed)),
				EditedBody: strPtr(req.Body),
				EditedBy:   strPtr(req.Actor.Name),
				EditedAt:   &at,
				ReviewedBy: strPtr(req.Actor.Name),
				ReviewedAt: &at,
			},
		}, nil

	case KindConfirm:
		confirmedAt := now
		return Decision{
			Expect: expect,
			Patch: store.ChapterPatch{
				Status:      strPtr(string(StatusConfirmed)),
				ConfirmedBy: strPtr(req.Actor.Name),
				ConfirmedAt: &confirmedAt,
			},
		}, nil

	case KindUnconfirm:
		return Decision{
			Expect: expect,
			Patch: store.ChapterPatch{
				Status:         strPtr(string(StatusReviewed)),
				ClearConfirmed: true,
			},
		}, nil

	case KindUpdateMeta:
		if req.Meta.Title != nil && strings.TrimSpace(*req.Meta.Title) == "" {
			return Decision{}, ErrValidation
		}
		return Decision{
			Expect: expect,
			Patch: store.ChapterPatch{
				OrderNumber: req.Meta.OrderNumber,
				Code:        req.Meta.Code,
				Title:       req.Meta.Title,
				WriterID:    req.Meta.WriterID,
				ClearWriter: req.Meta.UnsetWriter,
			},
		}, nil

	case KindDelete:
		return Decision{Expect: expect, Delete: true}, nil
	}

	return Decision{}, ErrValidation
}

// FilesMutable reports whether attachments may still be added or removed.
// Once confirmed, the chapter and its files are immutable until an admin
// unconfirms it.
func FilesMutable(status string) bool {
	return Status(status) != StatusConfirmed
}

// ExpectStrings converts a guard set to the store's string form.
func ExpectStrings(expect []Status) []string {
	out := make([]string, len(expect))
	for i, s := range expect {
		out[i] = string(s)
	}
	return out
}
