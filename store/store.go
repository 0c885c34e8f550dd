// Package store holds the SQL persistence layer. Every function runs
// against a DBTX, so callers decide whether a *sql.DB or an open
// transaction is behind it; the core keeps all multi-statement writes
// inside a single transaction.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mberti/formdesk/model"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

func InsertForm(ctx context.Context, db DBTX, slug, title, description string) (form model.Form, err error) {
	now := time.Now().UTC()
	err = db.QueryRowContext(ctx, `
		INSERT INTO form (slug, title, description, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		RETURNING id`,
		slug, title, description, now, now,
	).Scan(&form.ID)
	if err != nil {
		return
	}

	form.Slug = slug
	form.Title = title
	form.Description = description
	form.Version = 1
	form.CreatedAt = now
	form.UpdatedAt = now
	return
}

func GetFormBySlug(ctx context.Context, db DBTX, slug string) (form model.Form, err error) {
	var archivedAt sql.NullTime
	err = db.QueryRowContext(ctx, `
		SELECT id, slug, title, description, version, created_at, updated_at, is_archived, archived_at
		FROM form
		WHERE slug = ?`,
		slug,
	).Scan(
		&form.ID, &form.Slug, &form.Title, &form.Description, &form.Version,
		&form.CreatedAt, &form.UpdatedAt, &form.Archived, &archivedAt,
	)
	if archivedAt.Valid {
		form.ArchivedAt = &archivedAt.Time
	}
	return
}

func ListForms(ctx context.Context, db DBTX, includeArchived bool) ([]model.Form, error) {
	query := `
		SELECT id, slug, title, description, version, created_at, updated_at, is_archived, archived_at
		FROM form`
	if !includeArchived {
		query += `
		WHERE is_archived = FALSE`
	}
	query += `
		ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	forms := []model.Form{}
	for rows.Next() {
		f := model.Form{}
		var archivedAt sql.NullTime
		err = rows.Scan(
			&f.ID, &f.Slug, &f.Title, &f.Description, &f.Version,
			&f.CreatedAt, &f.UpdatedAt, &f.Archived, &archivedAt,
		)
		if err != nil {
			return nil, err
		}
		if archivedAt.Valid {
			f.ArchivedAt = &archivedAt.Time
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// BumpFormVersion advances the form's current-version pointer with an
// optimistic lock: the UPDATE only matches while the version column
// still holds the value the caller read.
func BumpFormVersion(ctx context.Context, db DBTX, formID int, title, description string, fromVersion int) (updated bool, err error) {
	res, err := db.ExecContext(ctx, `
		UPDATE form
		SET
			title = ?,
			description = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ?
			AND version = ?`,
		title, description, time.Now().UTC(), formID, fromVersion,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func SetFormArchived(ctx context.Context, db DBTX, formID int, archived bool) error {
	now := time.Now().UTC()
	var archivedAt any
	if archived {
		archivedAt = now
	}
	_, err := db.ExecContext(ctx, `
		UPDATE form
		SET is_archived = ?, archived_at = ?, updated_at = ?
		WHERE id = ?`,
		archived, archivedAt, now, formID,
	)
	return err
}

func InsertVersion(ctx context.Context, db DBTX, formID, version int, title, description string) (v model.Version, err error) {
	now := time.Now().UTC()
	err = db.QueryRowContext(ctx, `
		INSERT INTO form_version (form_id, version, title, description, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		formID, version, title, description, now,
	).Scan(&v.ID)
	if err != nil {
		return
	}

	v.Version = version
	v.Title = title
	v.Description = description
	v.CreatedAt = now
	return
}

func InsertQuestions(ctx context.Context, db DBTX, versionID int, questions []model.Question) ([]model.Question, error) {
	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO question (version_id, prompt, type, position, required, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	inserted := make([]model.Question, len(questions))
	for i, q := range questions {
		var metadataJson []byte
		if q.Metadata != nil {
			metadataJson, err = json.Marshal(q.Metadata)
			if err != nil {
				return nil, err
			}
		}

		err = stmt.QueryRowContext(ctx, versionID, q.Prompt, q.Type, q.Position, q.Required, string(metadataJson)).
			Scan(&q.ID)
		if err != nil {
			return nil, err
		}
		inserted[i] = q
	}
	return inserted, nil
}

func GetVersion(ctx context.Context, db DBTX, formID, version int) (v model.Version, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT id, version, title, description, created_at
		FROM form_version
		WHERE form_id = ?
			AND version = ?`,
		formID, version,
	).Scan(&v.ID, &v.Version, &v.Title, &v.Description, &v.CreatedAt)
	if err != nil {
		return
	}

	v.Questions, err = VersionQuestions(ctx, db, v.ID)
	return
}

func ListVersions(ctx context.Context, db DBTX, formID int) ([]model.Version, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, version, title, description, created_at
		FROM form_version
		WHERE form_id = ?
		ORDER BY version DESC`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []model.Version{}
	for rows.Next() {
		v := model.Version{}
		err = rows.Scan(&v.ID, &v.Version, &v.Title, &v.Description, &v.CreatedAt)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range versions {
		versions[i].Questions, err = VersionQuestions(ctx, db, versions[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return versions, nil
}

func VersionQuestions(ctx context.Context, db DBTX, versionID int) ([]model.Question, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, prompt, type, position, required, metadata
		FROM question
		WHERE version_id = ?
		ORDER BY position`,
		versionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		q := model.Question{}
		var metadata string
		err = rows.Scan(&q.ID, &q.Prompt, &q.Type, &q.Position, &q.Required, &metadata)
		if err != nil {
			return nil, err
		}

		if metadata != "" {
			q.Metadata = &model.Metadata{}
			err = json.Unmarshal([]byte(metadata), q.Metadata)
			if err != nil {
				return nil, err
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func InsertResponse(ctx context.Context, db DBTX, formID, versionID int, respondent, notes string) (resp model.Response, err error) {
	now := time.Now().UTC()
	err = db.QueryRowContext(ctx, `
		INSERT INTO response (form_id, version_id, respondent_identifier, notes, submitted_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		formID, versionID, respondent, notes, now,
	).Scan(&resp.ID)
	if err != nil {
		return
	}

	resp.FormID = formID
	resp.Respondent = respondent
	resp.Notes = notes
	resp.SubmittedAt = now
	return
}

func InsertAnswers(ctx context.Context, db DBTX, responseID int, answers []model.Answer) ([]model.Answer, error) {
	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO answer (response_id, question_id, value)
		VALUES (?, ?, ?)
		RETURNING id`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	inserted := make([]model.Answer, len(answers))
	for i, a := range answers {
		err = stmt.QueryRowContext(ctx, responseID, a.QuestionID, a.Value).Scan(&a.ID)
		if err != nil {
			return nil, err
		}
		inserted[i] = a
	}
	return inserted, nil
}

const responseColumns = `
	r.id, r.form_id, v.version,
	r.respondent_identifier, r.notes, r.submitted_at,
	r.is_archived, r.archived_at,
	a.id, a.question_id, a.value`

func GetResponse(ctx context.Context, db DBTX, formID, responseID int) (model.Response, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT`+responseColumns+`
		FROM response r
		INNER JOIN form_version v ON (v.id = r.version_id)
		LEFT OUTER JOIN answer a ON (r.id = a.response_id)
		WHERE r.form_id = ?
			AND r.id = ?
		ORDER BY a.id`,
		formID, responseID,
	)
	if err != nil {
		return model.Response{}, err
	}
	defer rows.Close()

	responses, err := collectResponses(rows)
	if err != nil {
		return model.Response{}, err
	}
	if len(responses) == 0 {
		return model.Response{}, sql.ErrNoRows
	}
	return responses[0], nil
}

func ListResponses(ctx context.Context, db DBTX, formID int, includeArchived bool) ([]model.Response, error) {
	query := `
		SELECT` + responseColumns + `
		FROM response r
		INNER JOIN form_version v ON (v.id = r.version_id)
		LEFT OUTER JOIN answer a ON (r.id = a.response_id)
		WHERE r.form_id = ?`
	if !includeArchived {
		query += `
			AND r.is_archived = FALSE`
	}
	query += `
		ORDER BY r.id, a.id`

	rows, err := db.QueryContext(ctx, query, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectResponses(rows)
}

// collectResponses walks a response+answer join, folding answer rows
// into their parent response.
func collectResponses(rows *sql.Rows) ([]model.Response, error) {
	responses := []model.Response{}
	for rows.Next() {
		r := model.Response{}
		var archivedAt sql.NullTime
		var answerID, questionID sql.NullInt64
		var value sql.NullString

		err := rows.Scan(
			&r.ID, &r.FormID, &r.Version,
			&r.Respondent, &r.Notes, &r.SubmittedAt,
			&r.Archived, &archivedAt,
			&answerID, &questionID, &value,
		)
		if err != nil {
			return nil, err
		}
		if archivedAt.Valid {
			r.ArchivedAt = &archivedAt.Time
		}

		lastIdx := len(responses) - 1
		if lastIdx < 0 || responses[lastIdx].ID != r.ID {
			r.Answers = []model.Answer{}
			responses = append(responses, r)
			lastIdx++
		}
		if answerID.Valid {
			responses[lastIdx].Answers = append(responses[lastIdx].Answers, model.Answer{
				ID:         int(answerID.Int64),
				QuestionID: int(questionID.Int64),
				Value:      value.String,
			})
		}
	}
	return responses, rows.Err()
}

func SetResponseArchived(ctx context.Context, db DBTX, formID, responseID int, archived bool) (found bool, err error) {
	var archivedAt any
	if archived {
		archivedAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx, `
		UPDATE response
		SET is_archived = ?, archived_at = ?
		WHERE id = ?
			AND form_id = ?`,
		archived, archivedAt, responseID, formID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
