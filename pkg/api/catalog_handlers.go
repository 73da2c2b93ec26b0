package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/verdict/pkg/catalog"
	"github.com/platinummonkey/verdict/pkg/httputil"
	"github.com/platinummonkey/verdict/pkg/middleware"
)

// CatalogHandlers handles categories, genres and titles
type CatalogHandlers struct {
	catalog *catalog.Service
}

// NewCatalogHandlers creates a new CatalogHandlers
func NewCatalogHandlers(svc *catalog.Service) *CatalogHandlers {
	return &CatalogHandlers{catalog: svc}
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandlers) RegisterRoutes(router *mux.Router) {
	for path, kind := range map[string]catalog.TermKind{
		"/categories": catalog.KindCategory,
		"/genres":     catalog.KindGenre,
	} {
		router.HandleFunc(path, h.listTerms(kind)).Methods("GET")
		router.HandleFunc(path, h.createTerm(kind)).Methods("POST")
		router.HandleFunc(path+"/{slug}", h.deleteTerm(kind)).Methods("DELETE")
	}

	router.HandleFunc("/titles", h.ListTitles).Methods("GET")
	router.HandleFunc("/titles", h.CreateTitle).Methods("POST")
	router.HandleFunc("/titles/{title_id}", h.GetTitle).Methods("GET")
	router.HandleFunc("/titles/{title_id}", h.UpdateTitle).Methods("PUT", "PATCH")
	router.HandleFunc("/titles/{title_id}", h.DeleteTitle).Methods("DELETE")
}

func (h *CatalogHandlers) listTerms(kind catalog.TermKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := httputil.ParsePage(r)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}

		filter := catalog.TermFilter{
			Search: httputil.ParseQueryString(r, "search", ""),
			Limit:  page.Limit,
			Offset: page.Offset,
		}
		terms, count, err := h.catalog.ListTerms(r.Context(), middleware.ActorFromRequest(r), kind, filter)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		httputil.WriteList(w, count, terms)
	}
}

func (h *CatalogHandlers) createTerm(kind catalog.TermKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in catalog.TermInput
		if err := httputil.ParseJSON(r, &in); err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}

		term, err := h.catalog.CreateTerm(r.Context(), middleware.ActorFromRequest(r), kind, in)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		httputil.WriteCreated(w, term)
	}
}

func (h *CatalogHandlers) deleteTerm(kind catalog.TermKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.catalog.DeleteTerm(r.Context(), middleware.ActorFromRequest(r), kind, httputil.PathString(r, "slug"))
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		httputil.WriteNoContent(w)
	}
}

// ListTitles lists titles with optional genre, category, name and year filters
func (h *CatalogHandlers) ListTitles(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	filter := catalog.TitleFilter{
		Genre:    httputil.ParseQueryString(r, "genre", ""),
		Category: httputil.ParseQueryString(r, "category", ""),
		Name:     httputil.ParseQueryString(r, "name", ""),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	if r.URL.Query().Get("year") != "" {
		year, err := httputil.ParseQueryInt(r, "year", 0)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Year = &year
	}

	titles, count, err := h.catalog.ListTitles(r.Context(), middleware.ActorFromRequest(r), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, count, titles)
}

// CreateTitle creates a title
func (h *CatalogHandlers) CreateTitle(w http.ResponseWriter, r *http.Request) {
	var in catalog.TitleInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	title, err := h.catalog.CreateTitle(r.Context(), middleware.ActorFromRequest(r), in)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, title)
}

// GetTitle returns one title
func (h *CatalogHandlers) GetTitle(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "title_id")

	title, err := h.catalog.GetTitle(r.Context(), middleware.ActorFromRequest(r), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, title)
}

// UpdateTitle replaces or patches a title depending on the method
func (h *CatalogHandlers) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "title_id")
	var in catalog.TitleInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	title, err := h.catalog.UpdateTitle(r.Context(), middleware.ActorFromRequest(r), r.Method, id, in)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, title)
}

// DeleteTitle deletes a title
func (h *CatalogHandlers) DeleteTitle(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "title_id")

	if err := h.catalog.DeleteTitle(r.Context(), middleware.ActorFromRequest(r), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
