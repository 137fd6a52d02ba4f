package lifecycle

import (
	"errors"
	"testing"
	"time"

	"galley/api/internal/rbac"
	"galley/api/internal/store"
)

var now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func chapter(status Status, writerID string) store.Chapter {
	ch := store.Chapter{
		ID:     "ch_1",
		Code:   "CH-01",
		Title:  "The Long Night",
		Status: string(status),
	}
	if writerID != "" {
		ch.WriterID = &writerID
	}
	return ch
}

// applyPatch folds a decision's patch back into a chapter the way the store
// write would, so tests can walk the machine without a database.
func applyPatch(ch store.Chapter, patch store.ChapterPatch) store.Chapter {
	if patch.Status != nil {
		ch.Status = *patch.Status
	}
	if patch.OriginalBody != nil {
		ch.OriginalBody = patch.OriginalBody
	}
	if patch.EditedBody != nil {
		ch.EditedBody = patch.EditedBody
	}
	if patch.SubmittedAt != nil {
		ch.SubmittedAt = patch.SubmittedAt
	}
	if patch.EditedBy != nil {
		ch.EditedBy = patch.EditedBy
		ch.EditedAt = patch.EditedAt
	}
	if patch.ReviewedBy != nil {
		ch.ReviewedBy = patch.ReviewedBy
		ch.ReviewedAt = patch.ReviewedAt
	}
	if patch.ConfirmedBy != nil {
		ch.ConfirmedBy = patch.ConfirmedBy
		ch.ConfirmedAt = patch.ConfirmedAt
	}
	if patch.ClearConfirmed {
		ch.ConfirmedBy = nil
		ch.ConfirmedAt = nil
	}
	if patch.Title != nil {
		ch.Title = *patch.Title
	}
	if patch.Code != nil {
		ch.Code = *patch.Code
	}
	if patch.OrderNumber != nil {
		ch.OrderNumber = *patch.OrderNumber
	}
	if patch.WriterID != nil {
		ch.WriterID = patch.WriterID
	}
	if patch.ClearWriter {
		ch.WriterID = nil
	}
	return ch
}

// checkProvenance asserts the invariants tying provenance fields to status.
func checkProvenance(t *testing.T, ch store.Chapter) {
	t.Helper()
	status := Status(ch.Status)
	if (ch.ConfirmedAt != nil) != (status == StatusConfirmed) {
		t.Fatalf("confirmed_at presence inconsistent with status %s", ch.Status)
	}
	if ch.ReviewedAt != nil && status != StatusReviewed && status != StatusConfirmed {
		t.Fatalf("reviewed_at set while status is %s", ch.Status)
	}
	if ch.EditedAt != nil && status != StatusEditing && status != StatusReviewed && status != StatusConfirmed {
		t.Fatalf("edited_at set while status is %s", ch.Status)
	}
}

func TestApplyTransitionTable(t *testing.T) {
	owner := Actor{ID: "w1", Name: "Ada", Role: rbac.RoleWriter}
	stranger := Actor{ID: "w2", Name: "Blake", Role: rbac.RoleWriter}
	editor := Actor{ID: "e1", Name: "Casey", Role: rbac.RoleEditor}
	admin := Actor{ID: "a1", Name: "Drew", Role: rbac.RoleAdmin}

	cases := []struct {
		name    string
		chapter store.Chapter
		req     Request
		wantErr error
		// post is checked only when wantErr is nil
		post Status
	}{
		{name: "writer saves own draft", chapter: chapter(StatusDraft, "w1"), req: Request{Kind: KindSaveDraft, Actor: owner, Body: "hello"}, post: StatusDraft},
		{name: "save resets submitted to draft", chapter: chapter(StatusSubmitted, "w1"), req: Request{Kind: KindSaveDraft, Actor: owner, Body: "more"}, post: StatusDraft},
		{name: "non-owner writer cannot save", chapter: chapter(StatusDraft, "w1"), req: Request{Kind: KindSaveDraft, Actor: stranger, Body: "x"}, wantErr: ErrUnauthorized},
		{name: "unassigned chapter has no owner", chapter: chapter(StatusDraft, ""), req: Request{Kind: KindSaveDraft, Actor: owner, Body: "x"}, wantErr: ErrUnauthorized},
		{name: "editor cannot save draft", chapter: chapter(StatusDraft, "w1"), req: Request{Kind: KindSaveDraft, Actor: editor, Body: "x"}, wantErr: ErrUnauthorized},
		{name: "submit requires content", chapter: chapter(StatusDraft, "w1"), req: Request{Kind: KindSubmit, Actor: owner, Body: "  "}, wantErr: ErrValidation},
		{name: "submit from draft", chapter: chapter(StatusDraft, "w1"), req: Request{Kind: KindSubmit, Actor: owner, Body: "hello"}, post: StatusSubmitted},
		{name: "resubmit is legal", chapter: chapter(StatusSubmitted, "w1"), req: Request{Kind: KindSubmit, Actor: owner, Body: "hello again"}, post: StatusSubmitted},
		{name: "submit after editing began is stale", chapter: chapter(StatusEditing, "w1"), req: Request{Kind: KindSubmit, Actor: owner, Body: "late"}, wantErr: ErrStaleState},
		{name: "editor begins editing", chapter: chapter(StatusSubmitted, "w1"), req: Request{Kind: KindEdit, Actor: editor, Body: "Hello."}, post: StatusEditing},
		{name: "editor re-saves while editing", chapter: chapter(StatusEditing, "w1"), req: Request{Kind: KindEdit, Actor: editor, Body: "Hello!"}, post: StatusEditing},
		{name: "writer cannot edit", chapter: chapter(StatusSubmitted, "w1"), req: Request{Kind: KindEdit, Actor: owner, Body: "x"}, wantErr: ErrUnauthorized},
		{name: "editing a draft is stale", chapter: chapter(StatusDraft, "w1"), req: Request{Kind: KindEdit, Actor: editor, Body: "x"}, wantErr: ErrStaleState},
		{name: "status check precedes validation on confirmed", chapter: chapter(StatusConfirmed, "w1"), req: Request{Kind: KindEdit, Actor: editor, Body: ""}, wantErr: ErrStaleState},
		{name: "review requires edited content", chapter: chapter(StatusEditing, "w1"), req: Request{Kind: KindReview, Actor: editor, Body: ""}, wantErr: ErrValidation},
		{name: "review from editing", chapter: chapter(StatusEditing, "w1"), req: Request{Kind: KindReview, Actor: editor, Body: "Hello."}, post: StatusReviewed},
		{name: "review straight from submitted", chapter: chapter(StatusSubmitted, "w1"), req: Request{Kind: KindReview, Actor: editor, Body: "Hello."}, post: StatusReviewed},
		{name: "editor cannot confirm", chapter: chapter(StatusReviewed, "w1"), req: Request{Kind: KindConfirm, Actor: editor}, wantErr: ErrUnauthorized},
		{name: "admin confirms reviewed", chapter: chapter(StatusReviewed, "w1"), req: Request{Kind: KindConfirm, Actor: admin}, post: StatusConfirmed},
		{name: "confirm demands reviewed", chapter: chapter(StatusEditing, "w1"), req: Request{Kind: KindConfirm, Actor: admin}, wantErr: ErrStaleState},
		{name: "admin unconfirms", chapter: chapter(StatusConfirmed, "w1"), req: Request{Kind: KindUnconfirm, Actor: admin}, post: StatusReviewed},
		{name: "unconfirm demands confirmed", chapter: chapter(StatusReviewed, "w1"), req: Request{Kind: KindUnconfirm, Actor: admin}, wantErr: ErrStaleState},
		{name: "metadata ignores status", chapter: chapter(StatusConfirmed, "w1"), req: Request{Kind: KindUpdateMeta, Actor: editor, Meta: MetaPatch{Title: strp("Renamed")}}, post: StatusConfirmed},
		{name: "metadata title must not blank", chapter: chapter(StatusDraft, "w1"), req: Request{Kind: KindUpdateMeta, Actor: editor, Meta: MetaPatch{Title: strp(" ")}}, wantErr: ErrValidation},
		{name: "writer cannot touch metadata", chapter: chapter(StatusDraft, "w1"), req: Request{Kind: KindUpdateMeta, Actor: owner, Meta: MetaPatch{Title: strp("X")}}, wantErr: ErrUnauthorized},
		{name: "delete draft", chapter: chapter(StatusDraft, "w1"), req: Request{Kind: KindDelete, Actor: admin}, post: StatusDraft},
		{name: "delete submitted forbidden", chapter: chapter(StatusSubmitted, "w1"), req: Request{Kind: KindDelete, Actor: admin}, wantErr: ErrStaleState},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := Apply(tc.chapter, tc.req, now)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Apply() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !statusIn(Status(tc.chapter.Status), decision.Expect) {
				t.Fatalf("guard %v excludes the chapter's own pre-state %s", decision.Expect, tc.chapter.Status)
			}
			if decision.Delete {
				return
			}
			after := applyPatch(tc.chapter, decision.Patch)
			if Status(after.Status) != tc.post {
				t.Fatalf("post-state = %s, want %s", after.Status, tc.post)
			}
			checkProvenance(t, after)
		})
	}
}

func TestEditIsIdempotent(t *testing.T) {
	editor := Actor{ID: "e1", Name: "Casey", Role: rbac.RoleEditor}
	ch := chapter(StatusSubmitted, "w1")

	req := Request{Kind: KindEdit, Actor: editor, Body: "Hello."}
	first, err := Apply(ch, req, now)
	if err != nil {
		t.Fatalf("first edit: %v", err)
	}
	ch = applyPatch(ch, first.Patch)

	second, err := Apply(ch, req, now)
	if err != nil {
		t.Fatalf("second edit: %v", err)
	}
	again := applyPatch(ch, second.Patch)

	if again.Status != ch.Status || *again.EditedBody != *ch.EditedBody || *again.EditedBy != *ch.EditedBy {
		t.Fatalf("re-applying the same edit changed state: %+v vs %+v", again, ch)
	}
}

func TestFullRoundTrip(t *testing.T) {
	owner := Actor{ID: "w1", Name: "Ada", Role: rbac.RoleWriter}
	editor := Actor{ID: "e1", Name: "Casey", Role: rbac.RoleEditor}
	admin := Actor{ID: "a1", Name: "Drew", Role: rbac.RoleAdmin}

	ch := chapter(StatusDraft, "w1")

	steps := []struct {
		req  Request
		post Status
	}{
		{Request{Kind: KindSaveDraft, Actor: owner, Body: "hello"}, StatusDraft},
		{Request{Kind: KindSubmit, Actor: owner, Body: "hello"}, StatusSubmitted},
		{Request{Kind: KindEdit, Actor: editor, Body: "Hello."}, StatusEditing},
		{Request{Kind: KindReview, Actor: editor, Body: "Hello."}, StatusReviewed},
		{Request{Kind: KindConfirm, Actor: admin}, StatusConfirmed},
		{Request{Kind: KindUnconfirm, Actor: admin}, StatusReviewed},
	}

	for i, step := range steps {
		decision, err := Apply(ch, step.req, now.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, step.req.Kind, err)
		}
		ch = applyPatch(ch, decision.Patch)
		if Status(ch.Status) != step.post {
			t.Fatalf("step %d (%s): status = %s, want %s", i, step.req.Kind, ch.Status, step.post)
		}
		checkProvenance(t, ch)
	}

	if ch.ConfirmedBy != nil || ch.ConfirmedAt != nil {
		t.Fatalf("unconfirm left confirmation provenance: %+v", ch)
	}
	if ch.ReviewedBy == nil || *ch.ReviewedBy != "Casey" {
		t.Fatal("review provenance lost across confirm/unconfirm")
	}
	if ch.OriginalBody == nil || *ch.OriginalBody != "hello" {
		t.Fatal("original body lost across transitions")
	}
	if ch.SubmittedAt == nil {
		t.Fatal("submitted_at never recorded")
	}
}

func TestGuardTightensForLateWrites(t *testing.T) {
	// A write prepared against submitted must carry a guard that a
	// confirmed chapter cannot satisfy — the store-side conditional update
	// would match zero rows rather than downgrade the status.
	editor := Actor{ID: "e1", Name: "Casey", Role: rbac.RoleEditor}
	decision, err := Apply(chapter(StatusSubmitted, "w1"), Request{Kind: KindEdit, Actor: editor, Body: "x"}, now)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if statusIn(StatusConfirmed, decision.Expect) || statusIn(StatusReviewed, decision.Expect) {
		t.Fatalf("edit guard %v must not accept reviewed or confirmed", decision.Expect)
	}
}

func TestFilesMutable(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusSubmitted, StatusEditing, StatusReviewed} {
		if !FilesMutable(string(status)) {
			t.Fatalf("files should be mutable while %s", status)
		}
	}
	if FilesMutable(string(StatusConfirmed)) {
		t.Fatal("files must be locked once confirmed")
	}
}
