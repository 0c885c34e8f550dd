package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mberti/formdesk/app"
	"github.com/mberti/formdesk/config"
	"github.com/mberti/formdesk/database"
	"github.com/mberti/formdesk/forms"
	"github.com/mberti/formdesk/model"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	cfg := config.Config{DBUrl: filepath.Join(t.TempDir(), "formdesk.sqlite")}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return Wire(app.App{
		Service: forms.NewService(db),
		Config:  cfg,
	})
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	buf := &bytes.Buffer{}
	if body != nil {
		require.NoError(t, json.NewEncoder(buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("content-type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func createPayload() map[string]any {
	return map[string]any{
		"slug":        "patient-intake",
		"title":       "Patient intake",
		"description": "Quarterly intake questionnaire",
		"questions": []map[string]any{
			{
				"prompt":   "Preferred contact channel",
				"type":     "single_choice",
				"position": 1,
				"required": true,
				"metadata": map[string]any{
					"options": []map[string]string{
						{"value": "email", "label": "Email"},
						{"value": "phone", "label": "Phone"},
						{"value": "sms", "label": "SMS"},
					},
				},
			},
			{
				"prompt":   "Hours of sleep per night",
				"type":     "integer",
				"position": 2,
				"metadata": map[string]any{"min_value": 0, "max_value": 24},
			},
		},
	}
}

func TestFormLifecycleOverHTTP(t *testing.T) {
	handler := newTestHandler(t)

	rec := doJSON(t, handler, "POST", "/api/forms", createPayload())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	form := model.Form{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
	assert.Equal(t, 1, form.Version)
	require.Len(t, form.Questions, 2)
	contactID := form.Questions[0].ID

	// slugs are unique forever
	rec = doJSON(t, handler, "POST", "/api/forms", createPayload())
	assert.Equal(t, http.StatusConflict, rec.Code)

	// the public read includes the current question set
	rec = doJSON(t, handler, "GET", "/api/forms/patient-intake", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// a valid submission is accepted and bound to version 1
	rec = doJSON(t, handler, "POST", "/api/forms/patient-intake/responses", map[string]any{
		"respondent_identifier": "respondent-1",
		"answers": []map[string]any{
			{"question_id": contactID, "value": "email"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := model.Response{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Version)

	// an invalid choice is rejected with a structured error
	rec = doJSON(t, handler, "POST", "/api/forms/patient-intake/responses", map[string]any{
		"answers": []map[string]any{
			{"question_id": contactID, "value": "fax"},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	errBody := struct {
		Error struct {
			Kind       string `json:"kind"`
			Detail     string `json:"detail"`
			QuestionID int    `json:"question_id"`
		} `json:"error"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "validation", errBody.Error.Kind)
	assert.Equal(t, contactID, errBody.Error.QuestionID)

	// publishing a new version bumps the pointer, history stays
	rec = doJSON(t, handler, "PUT", "/api/forms/patient-intake", map[string]any{
		"questions": []map[string]any{
			{"prompt": "A new question", "type": "short_text", "position": 1},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	form = model.Form{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
	assert.Equal(t, 2, form.Version)

	rec = doJSON(t, handler, "GET", "/api/forms/patient-intake/versions/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v1 := model.Version{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v1))
	require.Len(t, v1.Questions, 2)
	assert.Equal(t, "Preferred contact channel", v1.Questions[0].Prompt)

	// the stored response still reports the version it was bound to
	rec = doJSON(t, handler, "GET", fmt.Sprintf("/api/forms/patient-intake/responses/%d", resp.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reloaded := model.Response{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reloaded))
	assert.Equal(t, 1, reloaded.Version)
}

func TestArchiveGateOverHTTP(t *testing.T) {
	handler := newTestHandler(t)

	rec := doJSON(t, handler, "POST", "/api/forms", createPayload())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	form := model.Form{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
	contactID := form.Questions[0].ID

	submission := map[string]any{
		"answers": []map[string]any{
			{"question_id": contactID, "value": "email"},
		},
	}

	rec = doJSON(t, handler, "POST", "/api/forms/patient-intake/archive", map[string]any{"archived": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, "POST", "/api/forms/patient-intake/responses", submission)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	// archived forms remain readable
	rec = doJSON(t, handler, "GET", "/api/forms/patient-intake/versions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, "POST", "/api/forms/patient-intake/archive", map[string]any{"archived": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, "POST", "/api/forms/patient-intake/responses", submission)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUnknownFormIs404(t *testing.T) {
	handler := newTestHandler(t)

	rec := doJSON(t, handler, "GET", "/api/forms/no-such-form", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, "POST", "/api/forms/no-such-form/responses", map[string]any{"answers": []any{}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
