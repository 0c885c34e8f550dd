package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mberti/formdesk/app"
	"github.com/mberti/formdesk/forms"
	"github.com/mberti/formdesk/httpx"
	"github.com/mberti/formdesk/log"
)

func SubmitResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := forms.SubmitInput{}
		err := render.DecodeJSON(r.Body, &in)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		resp, err := app.Submit(r.Context(), chi.URLParam(r, "slug"), in)
		if err != nil {
			httpx.RenderError(w, r, "submit_response", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp)
	}
}

func ListResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeArchived := r.URL.Query().Get("include_archived") == "true"

		responses, err := app.ListResponses(r.Context(), chi.URLParam(r, "slug"), includeArchived)
		if err != nil {
			httpx.RenderError(w, r, "list_responses", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"responses": responses,
		})
	}
}

func GetResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responseID, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		resp, err := app.GetResponse(r.Context(), chi.URLParam(r, "slug"), responseID)
		if err != nil {
			httpx.RenderError(w, r, "get_response", err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func ArchiveResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responseID, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		action := archiveAction{}
		err = render.DecodeJSON(r.Body, &action)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		resp, err := app.SetResponseArchived(r.Context(), chi.URLParam(r, "slug"), responseID, action.Archived)
		if err != nil {
			httpx.RenderError(w, r, "archive_response", err)
			return
		}

		render.JSON(w, r, resp)
	}
}
