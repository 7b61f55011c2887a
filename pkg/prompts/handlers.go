package prompts

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/auth"
	"github.com/opschat/opschat/pkg/httputil"
	"github.com/opschat/opschat/pkg/middleware"
)

// Handlers exposes the prompt library over HTTP. All routes expect an
// authenticated user in the request context.
type Handlers struct {
	store *Store
}

func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes mounts the prompt routes. Fixed paths go before the
// {id} routes so "system" and friends are not taken for prompt ids.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/prompts", h.List).Methods(http.MethodGet)
	router.HandleFunc("/api/prompts", h.Create).Methods(http.MethodPost)
	router.HandleFunc("/api/prompts/system", h.ListSystem).Methods(http.MethodGet)
	router.HandleFunc("/api/prompts/user", h.ListOwn).Methods(http.MethodGet)
	router.HandleFunc("/api/prompts/admin/all", h.ListAll).Methods(http.MethodGet)
	router.HandleFunc("/api/prompts/favorites", h.ListFavorites).Methods(http.MethodGet)
	router.HandleFunc("/api/prompts/favorites", h.AddFavorite).Methods(http.MethodPost)
	router.HandleFunc("/api/prompts/favorites/{id}", h.RemoveFavorite).Methods(http.MethodDelete)
	router.HandleFunc("/api/prompts/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/api/prompts/{id}", h.Update).Methods(http.MethodPut)
	router.HandleFunc("/api/prompts/{id}", h.Delete).Methods(http.MethodDelete)
}

func currentUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "authentication required")
		return nil, false
	}
	return user, true
}

func filterFromQuery(r *http.Request) Filter {
	return Filter{
		Category:      r.URL.Query().Get("category"),
		CloudProvider: r.URL.Query().Get("cloud_provider"),
		Limit:         httputil.QueryInt(r, "limit", 0),
		Offset:        httputil.QueryInt(r, "offset", 0),
	}
}

// List returns the prompts visible to the caller: system prompts plus
// their own.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	prompts, err := h.store.ListVisible(r.Context(), user.ID, filterFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if prompts == nil {
		prompts = []*Prompt{}
	}
	httputil.WriteSuccess(w, prompts)
}

func (h *Handlers) ListSystem(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	prompts, err := h.store.ListSystem(r.Context(), filterFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if prompts == nil {
		prompts = []*Prompt{}
	}
	httputil.WriteSuccess(w, prompts)
}

func (h *Handlers) ListOwn(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	prompts, err := h.store.ListByUser(r.Context(), user.ID, filterFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if prompts == nil {
		prompts = []*Prompt{}
	}
	httputil.WriteSuccess(w, prompts)
}

func (h *Handlers) ListAll(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !user.IsAdmin {
		httputil.WriteForbidden(w, "admin privileges required")
		return
	}

	prompts, err := h.store.ListAll(r.Context(), filterFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if prompts == nil {
		prompts = []*Prompt{}
	}
	httputil.WriteSuccess(w, prompts)
}

type promptView struct {
	*Prompt
	IsFavorite bool `json:"is_favorite"`
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	prompt, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	isFavorite, err := h.store.IsFavorite(r.Context(), user.ID, prompt.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, promptView{Prompt: prompt, IsFavorite: isFavorite})
}

type createPromptRequest struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Command       string `json:"command"`
	CloudProvider string `json:"cloud_provider"`
	IsSystem      bool   `json:"is_system"`
}

// Create adds a prompt. System prompts are admin-only and owned by no
// one; everything else belongs to the caller.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createPromptRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.ID == "" || req.Title == "" || req.Command == "" {
		httputil.WriteBadRequest(w, "id, title and command are required")
		return
	}
	if req.IsSystem && !user.IsAdmin {
		httputil.WriteForbidden(w, "not authorized to create system prompts")
		return
	}

	prompt := &Prompt{
		ID:            req.ID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Command:       req.Command,
		CloudProvider: req.CloudProvider,
		IsSystem:      req.IsSystem,
	}
	if !req.IsSystem {
		prompt.UserID = &user.ID
	}

	if err := h.store.Create(r.Context(), prompt); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, prompt)
}

// canModify reports whether a user may edit or delete a prompt.
func canModify(user *auth.User, prompt *Prompt) bool {
	if user.IsAdmin {
		return true
	}
	if prompt.IsSystem {
		return false
	}
	return prompt.UserID != nil && *prompt.UserID == user.ID
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	prompt, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !canModify(user, prompt) {
		httputil.WriteForbidden(w, "not authorized to modify this prompt")
		return
	}

	var req createPromptRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Title == "" || req.Command == "" {
		httputil.WriteBadRequest(w, "title and command are required")
		return
	}

	updated, err := h.store.Update(r.Context(), prompt.ID, req.Title, req.Description, req.Category, req.Command, req.CloudProvider)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	prompt, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !canModify(user, prompt) {
		httputil.WriteForbidden(w, "not authorized to delete this prompt")
		return
	}

	if err := h.store.Delete(r.Context(), prompt.ID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	favorites, err := h.store.ListFavorites(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if favorites == nil {
		favorites = []*Prompt{}
	}
	httputil.WriteSuccess(w, favorites)
}

type favoriteRequest struct {
	PromptID string `json:"prompt_id"`
}

func (h *Handlers) AddFavorite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req favoriteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.PromptID == "" {
		httputil.WriteBadRequest(w, "prompt_id is required")
		return
	}

	// The prompt has to exist before it can be favorited.
	if _, err := h.store.Get(r.Context(), req.PromptID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	favorite, err := h.store.AddFavorite(r.Context(), user.ID, req.PromptID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, favorite)
}

func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.store.RemoveFavorite(r.Context(), user.ID, mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
