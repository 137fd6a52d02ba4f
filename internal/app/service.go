package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"galley/api/internal/auth"
	"galley/api/internal/authpw"
	"galley/api/internal/config"
	"galley/api/internal/email"
	"galley/api/internal/export"
	"galley/api/internal/files"
	"galley/api/internal/lifecycle"
	"galley/api/internal/rbac"
	"galley/api/internal/revision"
	"galley/api/internal/search"
	"galley/api/internal/store"
	"galley/api/internal/util"

	"golang.org/x/crypto/bcrypt"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// TransitionInput is one workflow action against a chapter. Body carries the
// chapter text for content transitions; Meta only applies to metadata updates.
type TransitionInput struct {
	Kind lifecycle.Kind
	Body string
	Meta lifecycle.MetaPatch
}

type CreateChapterInput struct {
	OrderNumber int
	Code        string
	Title       string
	WriterID    *string
}

type dataStore interface {
	InsertChapter(context.Context, store.Chapter) error
	GetChapter(context.Context, string) (store.Chapter, error)
	ListChapters(context.Context, store.ChapterFilter) ([]store.Chapter, error)
	UpdateChapter(context.Context, string, []string, store.ChapterPatch) (bool, error)
	DeleteChapter(context.Context, string, string) (bool, error)
	InsertChapterFile(context.Context, store.ChapterFile) error
	GetChapterFile(context.Context, string, string) (store.ChapterFile, error)
	ListChapterFiles(context.Context, string) ([]store.ChapterFile, error)
	DeleteChapterFile(context.Context, string, string) (bool, error)
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	ListUsers(context.Context) ([]store.User, error)
	UpdateUserRole(context.Context, string, string) (bool, error)
	ListMilestones(context.Context) ([]store.Milestone, error)
	UpdateMilestone(context.Context, string, time.Time, string) (bool, error)
	Ping(ctx context.Context) error
}

// SessionStore holds refresh tokens; Redis in production, Postgres as the
// fallback. Lookup returns only the user ID so roles are always re-read.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type blobStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

type revisionStore interface {
	Commit(chapterID string, snap revision.Snapshot, author, message string) (revision.CommitInfo, error)
	History(chapterID string, limit int) ([]revision.CommitInfo, error)
	SnapshotAt(chapterID, hash string) (revision.Snapshot, error)
	Remove(chapterID string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  SessionStore
	blobs     blobStore
	revisions revisionStore
	search    *search.Service
	passwords *authpw.Service
	mailer    *email.Service
	exporter  *export.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions SessionStore, blobs *files.BlobStore, revisions *revision.Service, searchSvc *search.Service, mailer *email.Service) *Service {
	s := &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		revisions: revisions,
		search:    searchSvc,
		passwords: authpw.NewService(dataStore),
		mailer:    mailer,
	}
	if blobs != nil {
		s.blobs = blobs
	}
	s.exporter = export.NewService(&exportStore{service: s})
	return s
}

// Bootstrap seeds the first admin account on an empty database so the
// instance is usable before anyone signs up.
func (s *Service) Bootstrap(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("galley-admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	admin := store.User{
		ID:           util.NewID("usr"),
		DisplayName:  "Admin",
		Email:        "admin@galley.local",
		PasswordHash: string(hash),
		Role:         string(rbac.RoleAdmin),
	}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	log.Printf("bootstrap: created admin@galley.local with the default password, change it immediately")
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

// ── Sessions ──

func (s *Service) SignUp(ctx context.Context, emailAddr, password, displayName string) (Session, error) {
	user, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{
		Email:       emailAddr,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		if err.Error() == "email already registered" {
			return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: emailAddr, Password: password})
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) ChangePassword(ctx context.Context, session Session, currentPassword, newPassword string) error {
	err := s.passwords.ChangePassword(ctx, authpw.ChangePasswordRequest{
		UserID:          session.UserID,
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	})
	if err != nil {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	return nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken validates the access token and re-reads the user row, so
// a role change applies on the next request rather than at token expiry.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// ── Chapters ──

func (s *Service) CreateChapter(ctx context.Context, session Session, input CreateChapterInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if input.WriterID != nil {
		if _, err := s.store.GetUserByID(ctx, *input.WriterID); err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "assigned writer does not exist", nil)
		}
	}

	chapter := store.Chapter{
		ID:          util.NewID("ch"),
		OrderNumber: input.OrderNumber,
		Code:        strings.TrimSpace(input.Code),
		Title:       title,
		WriterID:    input.WriterID,
		Status:      string(lifecycle.StatusDraft),
	}
	if err := s.store.InsertChapter(ctx, chapter); err != nil {
		return nil, err
	}

	created, err := s.store.GetChapter(ctx, chapter.ID)
	if err != nil {
		return nil, err
	}
	if s.revisions != nil {
		if _, err := s.revisions.Commit(created.ID, snapshotOf(created), session.UserName, "create chapter"); err != nil {
			log.Printf("revision: initial commit for %s: %v", created.ID, err)
		}
	}
	s.indexChapter(created)
	return chapterPayload(created), nil
}

func (s *Service) ListChapters(ctx context.Context, filter store.ChapterFilter) (map[string]any, error) {
	chapters, err := s.store.ListChapters(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(chapters))
	for _, ch := range chapters {
		items = append(items, chapterPayload(ch))
	}
	return map[string]any{"chapters": items}, nil
}

func (s *Service) GetChapter(ctx context.Context, chapterID string) (map[string]any, error) {
	ch, err := s.store.GetChapter(ctx, chapterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Chapter not found", nil)
	}
	if err != nil {
		return nil, err
	}

	fileRows, err := s.store.ListChapterFiles(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	fileItems := make([]map[string]any, 0, len(fileRows))
	for _, f := range fileRows {
		fileItems = append(fileItems, filePayload(f))
	}

	payload := chapterPayload(ch)
	payload["files"] = fileItems
	payload["filesMutable"] = lifecycle.FilesMutable(ch.Status)
	return payload, nil
}

// Transition runs one workflow action: the lifecycle decision is computed
// against the chapter as last read, then enforced by a conditional write.
// A write that matches zero rows means another actor moved the chapter
// first; the caller gets a conflict, never a silent overwrite.
func (s *Service) Transition(ctx context.Context, session Session, chapterID string, input TransitionInput) (map[string]any, error) {
	ch, err := s.store.GetChapter(ctx, chapterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Chapter not found", nil)
	}
	if err != nil {
		return nil, err
	}

	actor := lifecycle.Actor{ID: session.UserID, Name: session.UserName, Role: rbac.Normalize(session.Role)}
	decision, err := lifecycle.Apply(ch, lifecycle.Request{
		Kind:  input.Kind,
		Actor: actor,
		Body:  input.Body,
		Meta:  input.Meta,
	}, time.Now())
	if err != nil {
		return nil, mapLifecycleError(err, ch)
	}

	if decision.Delete {
		attachments, err := s.store.ListChapterFiles(ctx, chapterID)
		if err != nil {
			return nil, err
		}
		ok, err := s.store.DeleteChapter(ctx, chapterID, string(lifecycle.StatusDraft))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, s.conflictOrMissing(ctx, chapterID)
		}
		for _, f := range attachments {
			if s.blobs != nil {
				if err := s.blobs.Remove(ctx, f.ObjectKey); err != nil {
					log.Printf("files: remove blob %s: %v", f.ObjectKey, err)
				}
			}
		}
		if s.revisions != nil {
			if err := s.revisions.Remove(chapterID); err != nil {
				log.Printf("revision: remove repo for %s: %v", chapterID, err)
			}
		}
		if s.search != nil {
			s.search.DeleteChapter(chapterID)
		}
		return map[string]any{"ok": true}, nil
	}

	ok, err := s.store.UpdateChapter(ctx, chapterID, lifecycle.ExpectStrings(decision.Expect), decision.Patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflictOrMissing(ctx, chapterID)
	}

	updated, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, input.Kind, updated, session)
	return chapterPayload(updated), nil
}

// conflictOrMissing distinguishes "gone" from "moved on" after a guarded
// write matched zero rows.
func (s *Service) conflictOrMissing(ctx context.Context, chapterID string) error {
	current, err := s.store.GetChapter(ctx, chapterID)
	if errors.Is(err, sql.ErrNoRows) {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Chapter not found", nil)
	}
	if err != nil {
		return err
	}
	return domainError(http.StatusConflict, "STALE_STATE", "Chapter status changed since last read", map[string]any{
		"status": current.Status,
	})
}

func mapLifecycleError(err error, ch store.Chapter) error {
	switch {
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	case errors.Is(err, lifecycle.ErrStaleState):
		return domainError(http.StatusConflict, "STALE_STATE", "Chapter status changed since last read", map[string]any{
			"status": ch.Status,
		})
	case errors.Is(err, lifecycle.ErrValidation):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Transition payload invalid", nil)
	default:
		return err
	}
}

var commitMessages = map[lifecycle.Kind]string{
	lifecycle.KindSaveDraft: "save draft",
	lifecycle.KindSubmit:    "submit for editing",
	lifecycle.KindEdit:      "edit pass",
	lifecycle.KindReview:    "mark reviewed",
}

func (s *Service) afterTransition(ctx context.Context, kind lifecycle.Kind, ch store.Chapter, session Session) {
	if message, ok := commitMessages[kind]; ok && s.revisions != nil {
		if _, err := s.revisions.Commit(ch.ID, snapshotOf(ch), session.UserName, message); err != nil {
			log.Printf("revision: commit for %s: %v", ch.ID, err)
		}
	}

	s.indexChapter(ch)

	if kind == lifecycle.KindReview || kind == lifecycle.KindConfirm {
		s.notifyWriter(ctx, ch, session.UserName)
	}
}

// notifyWriter emails the assigned writer about a status change; failures
// are logged, never surfaced to the actor.
func (s *Service) notifyWriter(ctx context.Context, ch store.Chapter, actorName string) {
	if !s.SMTPConfigured() || ch.WriterID == nil {
		return
	}
	writer, err := s.store.GetUserByID(ctx, *ch.WriterID)
	if err != nil || writer.Email == "" {
		return
	}
	go func() {
		if err := s.mailer.SendStatusChangeEmail(writer.Email, writer.DisplayName, ch.Title, ch.Code, ch.Status, actorName); err != nil {
			log.Printf("email: notify %s about %s: %v", writer.Email, ch.ID, err)
		}
	}()
}

func (s *Service) indexChapter(ch store.Chapter) {
	if s.search == nil {
		return
	}
	s.search.IndexChapter(search.ChapterRecord{
		ID:       ch.ID,
		Code:     ch.Code,
		Title:    ch.Title,
		Status:   ch.Status,
		Original: deref(ch.OriginalBody),
		Edited:   deref(ch.EditedBody),
	})
}

// ── Files ──

func (s *Service) UploadChapterFile(ctx context.Context, session Session, chapterID, fileName, contentType string, size int64, reader io.Reader) (map[string]any, error) {
	ch, err := s.store.GetChapter(ctx, chapterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Chapter not found", nil)
	}
	if err != nil {
		return nil, err
	}
	if err := s.fileAccess(session, ch); err != nil {
		return nil, err
	}
	if !lifecycle.FilesMutable(ch.Status) {
		return nil, domainError(http.StatusConflict, "CHAPTER_LOCKED", "Files are immutable while the chapter is confirmed", nil)
	}
	if s.blobs == nil {
		return nil, domainError(http.StatusServiceUnavailable, "FILES_UNAVAILABLE", "File storage not configured", nil)
	}

	safeName := files.SafeName(fileName)
	fileID := util.NewID("file")
	key := files.ObjectKey(chapterID, fileID, safeName)
	url, err := s.blobs.Upload(ctx, key, reader, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	record := store.ChapterFile{
		ID:          fileID,
		ChapterID:   chapterID,
		Name:        safeName,
		ObjectKey:   key,
		URL:         url,
		Size:        size,
		ContentType: contentType,
		UploadedBy:  session.UserName,
	}
	if err := s.store.InsertChapterFile(ctx, record); err != nil {
		// Best effort cleanup of the orphaned object.
		_ = s.blobs.Remove(ctx, key)
		return nil, err
	}
	return filePayload(record), nil
}

func (s *Service) DeleteChapterFile(ctx context.Context, session Session, chapterID, fileID string) error {
	ch, err := s.store.GetChapter(ctx, chapterID)
	if errors.Is(err, sql.ErrNoRows) {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Chapter not found", nil)
	}
	if err != nil {
		return err
	}
	if err := s.fileAccess(session, ch); err != nil {
		return err
	}
	if !lifecycle.FilesMutable(ch.Status) {
		return domainError(http.StatusConflict, "CHAPTER_LOCKED", "Files are immutable while the chapter is confirmed", nil)
	}

	file, err := s.store.GetChapterFile(ctx, chapterID, fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return domainError(http.StatusNotFound, "NOT_FOUND", "File not found", nil)
	}
	if err != nil {
		return err
	}

	ok, err := s.store.DeleteChapterFile(ctx, chapterID, fileID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(http.StatusNotFound, "NOT_FOUND", "File not found", nil)
	}
	if s.blobs != nil {
		if err := s.blobs.Remove(ctx, file.ObjectKey); err != nil {
			log.Printf("files: remove blob %s: %v", file.ObjectKey, err)
		}
	}
	return nil
}

func (s *Service) ListChapterFiles(ctx context.Context, chapterID string) (map[string]any, error) {
	if _, err := s.store.GetChapter(ctx, chapterID); errors.Is(err, sql.ErrNoRows) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Chapter not found", nil)
	} else if err != nil {
		return nil, err
	}
	rows, err := s.store.ListChapterFiles(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(rows))
	for _, f := range rows {
		items = append(items, filePayload(f))
	}
	return map[string]any{"files": items}, nil
}

// fileAccess lets editors and admins manage any chapter's files; writers
// only their own.
func (s *Service) fileAccess(session Session, ch store.Chapter) error {
	role := rbac.Normalize(session.Role)
	if role == rbac.RoleEditor || role == rbac.RoleAdmin {
		return nil
	}
	if ch.WriterID != nil && *ch.WriterID == session.UserID {
		return nil
	}
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

// ── Revision history ──

func (s *Service) ChapterHistory(ctx context.Context, chapterID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetChapter(ctx, chapterID); errors.Is(err, sql.ErrNoRows) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Chapter not found", nil)
	} else if err != nil {
		return nil, err
	}
	if s.revisions == nil {
		return map[string]any{"commits": []map[string]any{}}, nil
	}
	commits, err := s.revisions.History(chapterID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(commits))
	for _, c := range commits {
		items = append(items, map[string]any{
			"hash":      c.Hash,
			"message":   c.Message,
			"author":    c.Author,
			"createdAt": c.CreatedAt,
		})
	}
	return map[string]any{"commits": items}, nil
}

func (s *Service) ChapterRevision(ctx context.Context, chapterID, hash string) (map[string]any, error) {
	if _, err := s.store.GetChapter(ctx, chapterID); errors.Is(err, sql.ErrNoRows) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Chapter not found", nil)
	} else if err != nil {
		return nil, err
	}
	if s.revisions == nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	snap, err := s.revisions.SnapshotAt(chapterID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return map[string]any{
		"hash":         hash,
		"code":         snap.Code,
		"title":        snap.Title,
		"originalBody": snap.OriginalBody,
		"editedBody":   snap.EditedBody,
	}, nil
}

// ── Search ──

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Total: 0, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// ── Export ──

func (s *Service) ExportChapter(ctx context.Context, chapterID, revisionHash string) (*export.Result, error) {
	return s.exporter.Export(ctx, export.Request{ChapterID: chapterID, Revision: revisionHash})
}

// exportStore adapts the service to the exporter's data interface.
type exportStore struct {
	service *Service
}

func (e *exportStore) GetChapterInfo(ctx context.Context, id string, revisionHash string) (export.ChapterInfo, error) {
	s := e.service
	ch, err := s.store.GetChapter(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return export.ChapterInfo{}, domainError(http.StatusNotFound, "NOT_FOUND", "Chapter not found", nil)
	}
	if err != nil {
		return export.ChapterInfo{}, err
	}

	info := export.ChapterInfo{
		ID:          ch.ID,
		OrderNumber: ch.OrderNumber,
		Code:        ch.Code,
		Title:       ch.Title,
		Status:      ch.Status,
		Body:        firstNonBlank(deref(ch.EditedBody), deref(ch.OriginalBody)),
		UpdatedAt:   ch.UpdatedAt,
	}
	if ch.WriterID != nil {
		if writer, err := s.store.GetUserByID(ctx, *ch.WriterID); err == nil {
			info.WriterName = writer.DisplayName
		}
	}

	if revisionHash != "" && revisionHash != "latest" {
		if s.revisions == nil {
			return export.ChapterInfo{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
		}
		snap, err := s.revisions.SnapshotAt(id, revisionHash)
		if err != nil {
			return export.ChapterInfo{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
		}
		info.Code = snap.Code
		info.Title = snap.Title
		info.Body = firstNonBlank(snap.EditedBody, snap.OriginalBody)
	}
	return info, nil
}

// ── Schedule ──

func (s *Service) Schedule(ctx context.Context) (map[string]any, error) {
	milestones, err := s.store.ListMilestones(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(milestones))
	for _, m := range milestones {
		items = append(items, map[string]any{
			"key":       m.Key,
			"label":     m.Label,
			"dueOn":     m.DueOn.Format("2006-01-02"),
			"updatedBy": m.UpdatedBy,
			"updatedAt": m.UpdatedAt,
		})
	}
	return map[string]any{"milestones": items}, nil
}

func (s *Service) UpdateMilestone(ctx context.Context, session Session, key, dueOn string) (map[string]any, error) {
	due, err := time.Parse("2006-01-02", strings.TrimSpace(dueOn))
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "dueOn must be a YYYY-MM-DD date", nil)
	}
	ok, err := s.store.UpdateMilestone(ctx, key, due, session.UserName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown milestone", nil)
	}
	return s.Schedule(ctx)
}

// ── Users ──

func (s *Service) ListUsers(ctx context.Context) (map[string]any, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, u := range users {
		items = append(items, map[string]any{
			"id":          u.ID,
			"displayName": u.DisplayName,
			"email":       u.Email,
			"role":        u.Role,
			"createdAt":   u.CreatedAt,
		})
	}
	return map[string]any{"users": items}, nil
}

func (s *Service) UpdateUserRole(ctx context.Context, session Session, userID, role string) (map[string]any, error) {
	switch rbac.Role(role) {
	case rbac.RoleWriter, rbac.RoleEditor, rbac.RoleAdmin:
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role must be writer, editor or admin", nil)
	}
	if userID == session.UserID {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot change your own role", nil)
	}
	ok, err := s.store.UpdateUserRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "User not found", nil)
	}
	return map[string]any{"id": userID, "role": role}, nil
}

// ── Payload helpers ──

func chapterPayload(ch store.Chapter) map[string]any {
	return map[string]any{
		"id":           ch.ID,
		"orderNumber":  ch.OrderNumber,
		"code":         ch.Code,
		"title":        ch.Title,
		"writerId":     ch.WriterID,
		"status":       ch.Status,
		"originalBody": ch.OriginalBody,
		"editedBody":   ch.EditedBody,
		"submittedAt":  ch.SubmittedAt,
		"editedBy":     ch.EditedBy,
		"editedAt":     ch.EditedAt,
		"reviewedBy":   ch.ReviewedBy,
		"reviewedAt":   ch.ReviewedAt,
		"confirmedBy":  ch.ConfirmedBy,
		"confirmedAt":  ch.ConfirmedAt,
		"createdAt":    ch.CreatedAt,
		"updatedAt":    ch.UpdatedAt,
	}
}

func filePayload(f store.ChapterFile) map[string]any {
	return map[string]any{
		"id":          f.ID,
		"chapterId":   f.ChapterID,
		"name":        f.Name,
		"url":         f.URL,
		"size":        f.Size,
		"contentType": f.ContentType,
		"uploadedBy":  f.UploadedBy,
		"createdAt":   f.CreatedAt,
	}
}

func snapshotOf(ch store.Chapter) revision.Snapshot {
	return revision.Snapshot{
		Code:         ch.Code,
		Title:        ch.Title,
		OriginalBody: deref(ch.OriginalBody),
		EditedBody:   deref(ch.EditedBody),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
