package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mberti/formdesk/forms"
	"github.com/mberti/formdesk/log"
)

type errorBody struct {
	Kind       string `json:"kind"`
	Detail     string `json:"detail"`
	Field      string `json:"field,omitempty"`
	QuestionID int    `json:"question_id,omitempty"`
	Position   int    `json:"position,omitempty"`
}

// RenderError maps a domain error to an HTTP status and a structured
// JSON body. Storage errors are logged in full but surface as an
// opaque 500, so callers can tell bad input from "try again later".
func RenderError(w http.ResponseWriter, r *http.Request, code string, err error) {
	var verr *forms.ValidationError
	var serr *forms.StorageError

	switch {
	case errors.As(err, &verr):
		log.Debugf("%s: %s", code, verr)
		renderBody(w, r, http.StatusUnprocessableEntity, errorBody{
			Kind:       "validation",
			Detail:     verr.Error(),
			Field:      verr.Field,
			QuestionID: verr.QuestionID,
			Position:   verr.Position,
		})

	case errors.Is(err, forms.ErrNotFound):
		log.Debugf("%s: %s", code, err)
		renderBody(w, r, http.StatusNotFound, errorBody{
			Kind:   "not_found",
			Detail: err.Error(),
		})

	case errors.Is(err, forms.ErrPreconditionFailed):
		log.Debugf("%s: %s", code, err)
		renderBody(w, r, http.StatusPreconditionFailed, errorBody{
			Kind:   "precondition_failed",
			Detail: err.Error(),
		})

	case errors.Is(err, forms.ErrConflict):
		log.Debugf("%s: %s", code, err)
		renderBody(w, r, http.StatusConflict, errorBody{
			Kind:   "conflict",
			Detail: err.Error(),
		})

	case errors.As(err, &serr):
		log.Errorf("%s: %s", code, serr)
		renderBody(w, r, http.StatusInternalServerError, errorBody{
			Kind:   "storage",
			Detail: "internal error",
		})

	default:
		LogInternalError(w, code, err)
	}
}

func renderBody(w http.ResponseWriter, r *http.Request, status int, body errorBody) {
	render.Status(r, status)
	render.JSON(w, r, map[string]any{"error": body})
}

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %s", code, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}
