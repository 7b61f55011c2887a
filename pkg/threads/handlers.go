package threads

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/auth"
	"github.com/opschat/opschat/pkg/httputil"
	"github.com/opschat/opschat/pkg/middleware"
)

// Handlers exposes chat history over HTTP. All routes expect an
// authenticated user in the request context; threads of other users
// come back as 404, never as 403.
type Handlers struct {
	store *Store
}

func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/chat/threads", h.ListThreads).Methods(http.MethodGet)
	router.HandleFunc("/api/chat/threads", h.CreateThread).Methods(http.MethodPost)
	router.HandleFunc("/api/chat/threads/{id}", h.GetThread).Methods(http.MethodGet)
	router.HandleFunc("/api/chat/threads/{id}", h.UpdateThread).Methods(http.MethodPut)
	router.HandleFunc("/api/chat/threads/{id}", h.DeleteThread).Methods(http.MethodDelete)
	router.HandleFunc("/api/chat/threads/{id}/messages", h.ListMessages).Methods(http.MethodGet)
	router.HandleFunc("/api/chat/threads/{id}/messages", h.AddMessage).Methods(http.MethodPost)
	router.HandleFunc("/api/chat/messages/{id}", h.DeleteMessage).Methods(http.MethodDelete)
}

func currentUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "authentication required")
		return nil, false
	}
	return user, true
}

func (h *Handlers) ListThreads(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	threads, err := h.store.ListThreads(r.Context(), user.ID, r.URL.Query().Get("cloud_provider"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if threads == nil {
		threads = []*Thread{}
	}
	httputil.WriteSuccess(w, threads)
}

type createThreadRequest struct {
	Title         string `json:"title"`
	CloudProvider string `json:"cloud_provider"`
}

func (h *Handlers) CreateThread(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createThreadRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	thread, err := h.store.CreateThread(r.Context(), user.ID, req.Title, req.CloudProvider)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, thread)
}

func (h *Handlers) GetThread(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	threadID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	thread, err := h.store.GetThread(r.Context(), user.ID, threadID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, thread)
}

type updateThreadRequest struct {
	Title string `json:"title"`
}

func (h *Handlers) UpdateThread(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	threadID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req updateThreadRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	thread, err := h.store.UpdateThread(r.Context(), user.ID, threadID, req.Title)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, thread)
}

func (h *Handlers) DeleteThread(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	threadID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.DeleteThread(r.Context(), user.ID, threadID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	threadID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	// Ownership gate: a foreign thread 404s here.
	if _, err := h.store.GetThread(r.Context(), user.ID, threadID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	messages, err := h.store.ListMessages(r.Context(), threadID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if messages == nil {
		messages = []*Message{}
	}
	httputil.WriteSuccess(w, messages)
}

type addMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *Handlers) AddMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	threadID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req addMessageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !ValidRole(req.Role) {
		httputil.WriteBadRequest(w, "role must be \"user\" or \"assistant\"")
		return
	}
	if req.Content == "" {
		httputil.WriteBadRequest(w, "content is required")
		return
	}

	if _, err := h.store.GetThread(r.Context(), user.ID, threadID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	message, err := h.store.AddMessage(r.Context(), threadID, req.Role, req.Content)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, message)
}

func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	messageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.DeleteMessage(r.Context(), user.ID, messageID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
