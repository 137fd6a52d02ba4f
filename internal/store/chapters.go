package store

import (
	"context"
	"fmt"
	"strings"
)

const chapterColumns = `
	id, order_number, chapter_code, title, writer_id, status,
	original_body, edited_body,
	submitted_at, edited_by_name, edited_at,
	reviewed_by_name, reviewed_at, confirmed_by_name, confirmed_at,
	created_at, updated_at
`

func scanChapter(row interface{ Scan(...any) error }) (Chapter, error) {
	var item Chapter
	err := row.Scan(
		&item.ID,
		&item.OrderNumber,
		&item.Code,
		&item.Title,
		&item.WriterID,
		&item.Status,
		&item.OriginalBody,
		&item.EditedBody,
		&item.SubmittedAt,
		&item.EditedBy,
		&item.EditedAt,
		&item.ReviewedBy,
		&item.ReviewedAt,
		&item.ConfirmedBy,
		&item.ConfirmedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertChapter(ctx context.Context, chapter Chapter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (id, order_number, chapter_code, title, writer_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, chapter.ID, chapter.OrderNumber, chapter.Code, chapter.Title, chapter.WriterID, chapter.Status)
	if err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChapter(ctx context.Context, chapterID string) (Chapter, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+chapterColumns+`
		FROM chapters
		WHERE id=$1
	`, chapterID)
	return scanChapter(row)
}

func (s *PostgresStore) ListChapters(ctx context.Context, filter ChapterFilter) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chapterColumns+`
		FROM chapters
		WHERE ($1='' OR status=$1)
		  AND ($2='' OR writer_id=$2)
		ORDER BY order_number ASC, chapter_code ASC
	`, filter.Status, filter.WriterID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	items := make([]Chapter, 0)
	for rows.Next() {
		item, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}
	return items, nil
}

// UpdateChapter applies a patch only while the stored status is still in the
// expected set. Returning false means the guard failed: another actor moved
// the chapter (or it no longer exists) and the caller must re-read before
// reporting a conflict.
func (s *PostgresStore) UpdateChapter(ctx context.Context, chapterID string, expectedStatuses []string, patch ChapterPatch) (bool, error) {
	sets := []string{"updated_at=NOW()"}
	args := []any{chapterID, expectedStatuses}
	next := len(args) + 1

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s=$%d", column, next))
		args = append(args, value)
		next++
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.OrderNumber != nil {
		add("order_number", *patch.OrderNumber)
	}
	if patch.Code != nil {
		add("chapter_code", *patch.Code)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.WriterID != nil {
		add("writer_id", *patch.WriterID)
	}
	if patch.OriginalBody != nil {
		add("original_body", *patch.OriginalBody)
	}
	if patch.EditedBody != nil {
		add("edited_body", *patch.EditedBody)
	}
	if patch.SubmittedAt != nil {
		add("submitted_at", *patch.SubmittedAt)
	}
	if patch.EditedBy != nil {
		add("edited_by_name", *patch.EditedBy)
	}
	if patch.EditedAt != nil {
		add("edited_at", *patch.EditedAt)
	}
	if patch.ReviewedBy != nil {
		add("reviewed_by_name", *patch.ReviewedBy)
	}
	if patch.ReviewedAt != nil {
		add("reviewed_at", *patch.ReviewedAt)
	}
	if patch.ConfirmedBy != nil {
		add("confirmed_by_name", *patch.ConfirmedBy)
	}
	if patch.ConfirmedAt != nil {
		add("confirmed_at", *patch.ConfirmedAt)
	}
	if patch.ClearConfirmed {
		sets = append(sets, "confirmed_by_name=NULL", "confirmed_at=NULL")
	}
	if patch.ClearWriter {
		sets = append(sets, "writer_id=NULL")
	}

	query := fmt.Sprintf(`
		UPDATE chapters
		SET %s
		WHERE id=$1 AND status = ANY($2)
	`, strings.Join(sets, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update chapter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update chapter rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteChapter removes a chapter only while its status still matches. File
// rows go with it via the chapter_files foreign key cascade.
func (s *PostgresStore) DeleteChapter(ctx context.Context, chapterID, expectedStatus string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM chapters WHERE id=$1 AND status=$2
	`, chapterID, expectedStatus)
	if err != nil {
		return false, fmt.Errorf("delete chapter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete chapter rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertChapterFile(ctx context.Context, file ChapterFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapter_files (id, chapter_id, file_name, object_key, url, size_bytes, content_type, uploaded_by_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, file.ID, file.ChapterID, file.Name, file.ObjectKey, file.URL, file.Size, file.ContentType, file.UploadedBy)
	if err != nil {
		return fmt.Errorf("insert chapter file: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChapterFile(ctx context.Context, chapterID, fileID string) (ChapterFile, error) {
	var item ChapterFile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chapter_id, file_name, object_key, url, size_bytes, content_type, uploaded_by_name, created_at
		FROM chapter_files
		WHERE chapter_id=$1 AND id=$2
	`, chapterID, fileID).Scan(
		&item.ID,
		&item.ChapterID,
		&item.Name,
		&item.ObjectKey,
		&item.URL,
		&item.Size,
		&item.ContentType,
		&item.UploadedBy,
		&item.CreatedAt,
	)
	if err != nil {
		return ChapterFile{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListChapterFiles(ctx context.Context, chapterID string) ([]ChapterFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chapter_id, file_name, object_key, url, size_bytes, content_type, uploaded_by_name, created_at
		FROM chapter_files
		WHERE chapter_id=$1
		ORDER BY created_at ASC
	`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list chapter files: %w", err)
	}
	defer rows.Close()

	items := make([]ChapterFile, 0)
	for rows.Next() {
		var item ChapterFile
		if err := rows.Scan(
			&item.ID,
			&item.ChapterID,
			&item.Name,
			&item.ObjectKey,
			&item.URL,
			&item.Size,
			&item.ContentType,
			&item.UploadedBy,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chapter file: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapter files: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteChapterFile(ctx context.Context, chapterID, fileID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM chapter_files WHERE chapter_id=$1 AND id=$2
	`, chapterID, fileID)
	if err != nil {
		return false, fmt.Errorf("delete chapter file: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete chapter file rows: %w", err)
	}
	return affected > 0, nil
}
