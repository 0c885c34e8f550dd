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

type archiveAction struct {
	Archived bool `json:"archived"`
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := forms.CreateInput{}
		err := render.DecodeJSON(r.Body, &in)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := app.CreateForm(r.Context(), in)
		if err != nil {
			httpx.RenderError(w, r, "create_form", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, form)
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeArchived := r.URL.Query().Get("include_archived") == "true"

		list, err := app.ListForms(r.Context(), includeArchived)
		if err != nil {
			httpx.RenderError(w, r, "list_forms", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"forms": list,
		})
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := app.GetForm(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			httpx.RenderError(w, r, "get_form", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func PublishForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := forms.PublishInput{}
		err := render.DecodeJSON(r.Body, &in)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := app.PublishVersion(r.Context(), chi.URLParam(r, "slug"), in)
		if err != nil {
			httpx.RenderError(w, r, "publish_form", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func ArchiveForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := archiveAction{}
		err := render.DecodeJSON(r.Body, &action)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := app.SetFormArchived(r.Context(), chi.URLParam(r, "slug"), action.Archived)
		if err != nil {
			httpx.RenderError(w, r, "archive_form", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func ListFormVersions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versions, err := app.ListVersions(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			httpx.RenderError(w, r, "list_versions", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"versions": versions,
		})
	}
}

func GetFormVersion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := strconv.Atoi(chi.URLParam(r, "version"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.version")
			return
		}

		v, err := app.GetVersion(r.Context(), chi.URLParam(r, "slug"), version)
		if err != nil {
			httpx.RenderError(w, r, "get_version", err)
			return
		}

		render.JSON(w, r, v)
	}
}
