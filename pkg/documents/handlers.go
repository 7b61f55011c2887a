package documents

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/auth"
	"github.com/opschat/opschat/pkg/httputil"
	"github.com/opschat/opschat/pkg/middleware"
	"github.com/opschat/opschat/pkg/observability"
)

// maxUploadBytes caps a single document upload.
const maxUploadBytes = 32 << 20

// Handlers exposes document upload, listing, download and deletion.
// All routes expect an authenticated user in the request context.
type Handlers struct {
	store  *Store
	blobs  BlobStore
	logger *observability.Logger
}

func NewHandlers(store *Store, blobs BlobStore, logger *observability.Logger) *Handlers {
	return &Handlers{store: store, blobs: blobs, logger: logger}
}

func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/documents", h.Upload).Methods(http.MethodPost)
	router.HandleFunc("/api/documents", h.List).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}/content", h.Download).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}", h.Delete).Methods(http.MethodDelete)
}

func currentUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "authentication required")
		return nil, false
	}
	return user, true
}

// Upload stores the file from the "file" multipart field and records
// its metadata. The blob is removed again if the metadata write fails.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "a \"file\" form field is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		httputil.WriteBadRequest(w, "uploaded file needs a name")
		return
	}

	key := fmt.Sprintf("%d_%s_%s", user.ID, uuid.NewString(), filename)
	url, err := h.blobs.Put(r.Context(), key, file, header.Header.Get("Content-Type"))
	if err != nil {
		h.logger.WithError(err).WithField("filename", filename).Error("failed to store document blob")
		httputil.WriteInternalError(w, err)
		return
	}

	doc := &Document{UserID: user.ID, Filename: filename, URL: url, StorageKey: key}
	if err := h.store.Create(r.Context(), doc); err != nil {
		if delErr := h.blobs.Delete(r.Context(), key); delErr != nil {
			h.logger.WithError(delErr).WithField("key", key).Error("failed to roll back document blob")
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, doc)
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	docs, err := h.store.ListByUser(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if docs == nil {
		docs = []*Document{}
	}
	httputil.WriteSuccess(w, docs)
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	docID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.store.Get(r.Context(), user.ID, docID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, doc)
}

// Download streams the document content back to its owner.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	docID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.store.Get(r.Context(), user.ID, docID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	content, err := h.blobs.Get(r.Context(), doc.StorageKey)
	if err != nil {
		h.logger.WithError(err).WithField("key", doc.StorageKey).Error("failed to read document blob")
		httputil.WriteInternalError(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, content); err != nil {
		h.logger.WithError(err).WithField("key", doc.StorageKey).Warn("document download interrupted")
	}
}

// Delete removes the metadata first, then the blob. A missing blob is
// not an error at that point; the record is already gone.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	docID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.store.Get(r.Context(), user.ID, docID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.store.Delete(r.Context(), user.ID, docID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.blobs.Delete(r.Context(), doc.StorageKey); err != nil {
		h.logger.WithError(err).WithField("key", doc.StorageKey).Warn("failed to delete document blob")
	}
	httputil.WriteNoContent(w)
}
