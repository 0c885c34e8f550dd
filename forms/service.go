// Package forms implements the versioning and response-validation
// engine: publishing immutable question-set snapshots, gating writes on
// archival state, and validating submissions against the version that
// was current when they arrived.
package forms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mattn/go-sqlite3"

	"github.com/mberti/formdesk/model"
	"github.com/mberti/formdesk/store"
)

// how many times a publish may lose the (form, version) race before
// giving up with ErrConflict
const publishRetries = 3

var errPublishRaced = errors.New("publish raced")

var reSlug = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return reSlug.MatchString(fl.Field().String())
	})
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db}
}

type CreateInput struct {
	Slug        string           `json:"slug" validate:"required,min=3,max=100,slug"`
	Title       string           `json:"title" validate:"required"`
	Description string           `json:"description"`
	Questions   []model.Question `json:"questions" validate:"dive"`
}

// PublishInput publishes a new version over an existing form. An empty
// title and a nil description carry the current values over.
type PublishInput struct {
	Title       string           `json:"title"`
	Description *string          `json:"description"`
	Questions   []model.Question `json:"questions" validate:"dive"`
}

type SubmitInput struct {
	Respondent string         `json:"respondent_identifier" validate:"max=255"`
	Notes      string         `json:"notes"`
	Answers    []model.Answer `json:"answers"`
}

// CreateForm creates a form and its version 1 snapshot in one
// transaction. The slug is taken forever: recreating it fails with
// ErrConflict even after the form is archived.
func (s *Service) CreateForm(ctx context.Context, in CreateInput) (model.Form, error) {
	if err := checkInput(in); err != nil {
		return model.Form{}, err
	}
	if err := validateQuestions(in.Questions); err != nil {
		return model.Form{}, err
	}
	questions := sortedByPosition(in.Questions)

	var form model.Form
	err := s.withTx(ctx, "db.create_form", func(tx *sql.Tx) error {
		var err error
		form, err = store.InsertForm(ctx, tx, in.Slug, in.Title, in.Description)
		if isUniqueViolation(err) {
			return fmt.Errorf("form %q already exists: %w", in.Slug, ErrConflict)
		}
		if err != nil {
			return storage("db.create_form.insert", err)
		}

		version, err := store.InsertVersion(ctx, tx, form.ID, 1, in.Title, in.Description)
		if err != nil {
			return storage("db.create_form.insert_version", err)
		}

		form.Questions, err = store.InsertQuestions(ctx, tx, version.ID, questions)
		if err != nil {
			return storage("db.create_form.insert_questions", err)
		}
		return nil
	})
	if err != nil {
		return model.Form{}, err
	}
	return form, nil
}

// PublishVersion snapshots a fresh question set as version N+1 and
// advances the form's current-version pointer. The prior snapshot is
// left untouched. Two racing publishes serialize on the
// (form, version) uniqueness constraint: the loser rereads and
// retries, and after the retry budget fails with ErrConflict.
func (s *Service) PublishVersion(ctx context.Context, slug string, in PublishInput) (model.Form, error) {
	if err := checkInput(in); err != nil {
		return model.Form{}, err
	}
	if err := validateQuestions(in.Questions); err != nil {
		return model.Form{}, err
	}
	questions := sortedByPosition(in.Questions)

	var form model.Form
	for attempt := 0; ; attempt++ {
		err := s.withTx(ctx, "db.publish_form", func(tx *sql.Tx) error {
			current, err := store.GetFormBySlug(ctx, tx, slug)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("form %q: %w", slug, ErrNotFound)
			}
			if err != nil {
				return storage("db.publish_form.get", err)
			}
			if current.Archived {
				return fmt.Errorf("form %q is archived: %w", slug, ErrPreconditionFailed)
			}

			title := in.Title
			if title == "" {
				title = current.Title
			}
			description := current.Description
			if in.Description != nil {
				description = *in.Description
			}

			version, err := store.InsertVersion(ctx, tx, current.ID, current.Version+1, title, description)
			if isUniqueViolation(err) {
				return errPublishRaced
			}
			if err != nil {
				return storage("db.publish_form.insert_version", err)
			}

			inserted, err := store.InsertQuestions(ctx, tx, version.ID, questions)
			if err != nil {
				return storage("db.publish_form.insert_questions", err)
			}

			updated, err := store.BumpFormVersion(ctx, tx, current.ID, title, description, current.Version)
			if err != nil {
				return storage("db.publish_form.bump_version", err)
			}
			if !updated {
				return errPublishRaced
			}

			form = current
			form.Title = title
			form.Description = description
			form.Version = version.Version
			form.UpdatedAt = time.Now().UTC()
			form.Questions = inserted
			return nil
		})
		switch {
		case err == nil:
			return form, nil
		case !errors.Is(err, errPublishRaced) && !isBusy(err):
			return model.Form{}, err
		case attempt < publishRetries:
			continue
		default:
			return model.Form{}, fmt.Errorf("form %q: publish retries exhausted: %w", slug, ErrConflict)
		}
	}
}

// Submit validates a submission against the form's current version and
// persists it bound to that version, all inside one transaction, so a
// concurrent publish either happens entirely before or entirely after.
func (s *Service) Submit(ctx context.Context, slug string, in SubmitInput) (model.Response, error) {
	if err := checkInput(in); err != nil {
		return model.Response{}, err
	}

	var resp model.Response
	err := s.withTx(ctx, "db.submit_response", func(tx *sql.Tx) error {
		form, err := store.GetFormBySlug(ctx, tx, slug)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("form %q: %w", slug, ErrNotFound)
		}
		if err != nil {
			return storage("db.submit_response.get_form", err)
		}
		if form.Archived {
			return fmt.Errorf("form %q is not accepting responses: %w", slug, ErrPreconditionFailed)
		}

		version, err := store.GetVersion(ctx, tx, form.ID, form.Version)
		if err != nil {
			return storage("db.submit_response.get_version", err)
		}

		if err = validateAnswers(version.Questions, in.Answers); err != nil {
			return err
		}

		resp, err = store.InsertResponse(ctx, tx, form.ID, version.ID, in.Respondent, in.Notes)
		if err != nil {
			return storage("db.submit_response.insert", err)
		}
		resp.Version = version.Version

		resp.Answers, err = store.InsertAnswers(ctx, tx, resp.ID, in.Answers)
		if err != nil {
			return storage("db.submit_response.insert_answers", err)
		}
		return nil
	})
	if err != nil {
		return model.Response{}, err
	}
	return resp, nil
}

// SetFormArchived flips the form's archival gate. Idempotent; never
// touches versions or stored responses.
func (s *Service) SetFormArchived(ctx context.Context, slug string, archived bool) (model.Form, error) {
	var form model.Form
	err := s.withTx(ctx, "db.archive_form", func(tx *sql.Tx) error {
		var err error
		form, err = store.GetFormBySlug(ctx, tx, slug)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("form %q: %w", slug, ErrNotFound)
		}
		if err != nil {
			return storage("db.archive_form.get", err)
		}

		err = store.SetFormArchived(ctx, tx, form.ID, archived)
		if err != nil {
			return storage("db.archive_form.set", err)
		}

		now := time.Now().UTC()
		form.Archived = archived
		form.UpdatedAt = now
		if archived {
			form.ArchivedAt = &now
		} else {
			form.ArchivedAt = nil
		}
		return nil
	})
	if err != nil {
		return model.Form{}, err
	}
	return form, nil
}

// SetResponseArchived flips a single response's archival flag. It does
// not require the parent form to be active.
func (s *Service) SetResponseArchived(ctx context.Context, slug string, responseID int, archived bool) (model.Response, error) {
	var resp model.Response
	err := s.withTx(ctx, "db.archive_response", func(tx *sql.Tx) error {
		form, err := store.GetFormBySlug(ctx, tx, slug)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("form %q: %w", slug, ErrNotFound)
		}
		if err != nil {
			return storage("db.archive_response.get_form", err)
		}

		found, err := store.SetResponseArchived(ctx, tx, form.ID, responseID, archived)
		if err != nil {
			return storage("db.archive_response.set", err)
		}
		if !found {
			return fmt.Errorf("response %d: %w", responseID, ErrNotFound)
		}

		resp, err = store.GetResponse(ctx, tx, form.ID, responseID)
		if err != nil {
			return storage("db.archive_response.reload", err)
		}
		return nil
	})
	if err != nil {
		return model.Response{}, err
	}
	return resp, nil
}

// GetForm returns the form along with its current version's questions.
func (s *Service) GetForm(ctx context.Context, slug string) (model.Form, error) {
	form, err := store.GetFormBySlug(ctx, s.db, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Form{}, fmt.Errorf("form %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return model.Form{}, storage("db.get_form", err)
	}

	version, err := store.GetVersion(ctx, s.db, form.ID, form.Version)
	if err != nil {
		return model.Form{}, storage("db.get_form.version", err)
	}
	form.Questions = version.Questions
	return form, nil
}

func (s *Service) ListForms(ctx context.Context, includeArchived bool) ([]model.Form, error) {
	forms, err := store.ListForms(ctx, s.db, includeArchived)
	if err != nil {
		return nil, storage("db.list_forms", err)
	}
	return forms, nil
}

func (s *Service) ListVersions(ctx context.Context, slug string) ([]model.Version, error) {
	form, err := store.GetFormBySlug(ctx, s.db, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("form %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, storage("db.list_versions.get_form", err)
	}

	versions, err := store.ListVersions(ctx, s.db, form.ID)
	if err != nil {
		return nil, storage("db.list_versions", err)
	}
	return versions, nil
}

func (s *Service) GetVersion(ctx context.Context, slug string, version int) (model.Version, error) {
	form, err := store.GetFormBySlug(ctx, s.db, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Version{}, fmt.Errorf("form %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return model.Version{}, storage("db.get_version.get_form", err)
	}

	v, err := store.GetVersion(ctx, s.db, form.ID, version)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Version{}, fmt.Errorf("form %q version %d: %w", slug, version, ErrNotFound)
	}
	if err != nil {
		return model.Version{}, storage("db.get_version", err)
	}
	return v, nil
}

func (s *Service) ListResponses(ctx context.Context, slug string, includeArchived bool) ([]model.Response, error) {
	form, err := store.GetFormBySlug(ctx, s.db, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("form %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, storage("db.list_responses.get_form", err)
	}

	responses, err := store.ListResponses(ctx, s.db, form.ID, includeArchived)
	if err != nil {
		return nil, storage("db.list_responses", err)
	}
	return responses, nil
}

func (s *Service) GetResponse(ctx context.Context, slug string, responseID int) (model.Response, error) {
	form, err := store.GetFormBySlug(ctx, s.db, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Response{}, fmt.Errorf("form %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return model.Response{}, storage("db.get_response.get_form", err)
	}

	resp, err := store.GetResponse(ctx, s.db, form.ID, responseID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Response{}, fmt.Errorf("response %d: %w", responseID, ErrNotFound)
	}
	if err != nil {
		return model.Response{}, storage("db.get_response", err)
	}
	return resp, nil
}

func (s *Service) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage(op+".begin_tx", err)
	}
	defer tx.Rollback()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return storage(op+".commit", err)
	}
	return nil
}

func checkInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Field:  fe.Field(),
			Reason: fmt.Sprintf("failed %q constraint", fe.Tag()),
		}
	}
	return &ValidationError{Reason: err.Error()}
}

func sortedByPosition(questions []model.Question) []model.Question {
	sorted := make([]model.Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})
	return sorted
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isBusy(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && (serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked)
}
