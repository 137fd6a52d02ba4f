package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chapter is one assignable unit of written content tracked through the
// editorial workflow. Status is one of the lifecycle package constants;
// every status change goes through a guarded conditional update.
type Chapter struct {
	ID          string
	OrderNumber int
	Code        string
	Title       string
	WriterID    *string
	Status      string

	OriginalBody *string
	EditedBody   *string

	SubmittedAt *time.Time
	EditedBy    *string
	EditedAt    *time.Time
	ReviewedBy  *string
	ReviewedAt  *time.Time
	ConfirmedBy *string
	ConfirmedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChapterPatch enumerates the fields a single transition may write. Nil
// pointers are left untouched; the Clear flags null out provenance columns.
type ChapterPatch struct {
	Status       *string
	OrderNumber  *int
	Code         *string
	Title        *string
	WriterID     *string
	ClearWriter  bool
	OriginalBody *string
	EditedBody   *string

	SubmittedAt *time.Time
	EditedBy    *string
	EditedAt    *time.Time
	ReviewedBy  *string
	ReviewedAt  *time.Time
	ConfirmedBy *string
	ConfirmedAt *time.Time
	// ClearConfirmed nulls confirmed_by/confirmed_at (admin unconfirm).
	ClearConfirmed bool
}

// ChapterFilter narrows ListChapters; zero values mean "no filter".
type ChapterFilter struct {
	Status   string
	WriterID string
}

type ChapterFile struct {
	ID          string
	ChapterID   string
	Name        string
	ObjectKey   string
	URL         string
	Size        int64
	ContentType string
	UploadedBy  string
	CreatedAt   time.Time
}

// Milestone is one of the three fixed production dates.
type Milestone struct {
	Key       string
	Label     string
	DueOn     time.Time
	UpdatedBy string
	UpdatedAt time.Time
}
