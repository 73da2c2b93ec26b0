package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/verdict/pkg/httputil"
	"github.com/platinummonkey/verdict/pkg/middleware"
	"github.com/platinummonkey/verdict/pkg/rbac"
	"github.com/platinummonkey/verdict/pkg/users"
)

// UserHandlers handles signup, token exchange and the user directory
type UserHandlers struct {
	users *users.Service
	perms *rbac.PermissionMiddleware
}

// NewUserHandlers creates a new UserHandlers
func NewUserHandlers(svc *users.Service, perms *rbac.PermissionMiddleware) *UserHandlers {
	return &UserHandlers{users: svc, perms: perms}
}

// RegisterAuthRoutes registers the unauthenticated handshake routes
func (h *UserHandlers) RegisterAuthRoutes(router *mux.Router) {
	router.HandleFunc("/signup", h.Signup).Methods("POST")
	router.HandleFunc("/token", h.Token).Methods("POST")
}

// RegisterRoutes registers user routes; /users/me must precede /users/{username}
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	adminOnly := h.perms.RequirePolicy(rbac.AdminOnly{})
	router.Handle("/users", adminOnly(http.HandlerFunc(h.List))).Methods("GET")
	router.Handle("/users", adminOnly(http.HandlerFunc(h.Create))).Methods("POST")

	router.HandleFunc("/users/me", h.GetMe).Methods("GET")
	router.HandleFunc("/users/me", h.UpdateMe).Methods("PATCH")

	router.HandleFunc("/users/{username}", h.Get).Methods("GET")
	router.HandleFunc("/users/{username}", h.Update).Methods("PATCH")
	router.HandleFunc("/users/{username}", h.Replace).Methods("PUT")
	router.HandleFunc("/users/{username}", h.Delete).Methods("DELETE")
}

// Signup registers a user and mails a confirmation code
func (h *UserHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req users.SignupRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	resp, err := h.users.Register(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// Token exchanges a confirmation code for an access token
func (h *UserHandlers) Token(w http.ResponseWriter, r *http.Request) {
	var req users.TokenRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	resp, err := h.users.Authenticate(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// GetMe returns the caller's own record
func (h *UserHandlers) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetSelf(r.Context(), middleware.ActorFromRequest(r))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// UpdateMe patches the caller's own record
func (h *UserHandlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromRequest(r)
	if actor == nil {
		httputil.WriteAppError(w, r, rbac.DenialError(nil))
		return
	}

	var patch users.Patch
	if err := httputil.ParseJSON(r, &patch); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	u, err := h.users.UpdateSelf(r.Context(), actor, &patch)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// List returns a page of the user directory
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	filter := users.ListFilter{
		Search: httputil.ParseQueryString(r, "search", ""),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	list, count, err := h.users.List(r.Context(), middleware.ActorFromRequest(r), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, count, list)
}

// Create adds a user on behalf of an administrator
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req users.CreateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	u, err := h.users.AdminCreate(r.Context(), middleware.ActorFromRequest(r), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, u)
}

// Get returns any user by username
func (h *UserHandlers) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.AdminGet(r.Context(), middleware.ActorFromRequest(r), httputil.PathString(r, "username"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// Update patches any user by username
func (h *UserHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var patch users.Patch
	if err := httputil.ParseJSON(r, &patch); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	u, err := h.users.AdminUpdate(r.Context(), middleware.ActorFromRequest(r), httputil.PathString(r, "username"), &patch)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// Replace is always refused
func (h *UserHandlers) Replace(w http.ResponseWriter, r *http.Request) {
	err := h.users.AdminReplace(r.Context(), middleware.ActorFromRequest(r), httputil.PathString(r, "username"))
	httputil.WriteAppError(w, r, err)
}

// Delete removes any user by username
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.users.AdminDelete(r.Context(), middleware.ActorFromRequest(r), httputil.PathString(r, "username"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
