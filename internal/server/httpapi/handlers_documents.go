package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/propertyhub/docgate/internal/server/authz"
	"github.com/propertyhub/docgate/internal/server/documents"
	"github.com/propertyhub/docgate/internal/server/models"
)

// multipartOverhead leaves room for field boundaries and metadata on top of
// the file ceiling itself.
const multipartOverhead = 1 << 20

type documentResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	RefKind   string `json:"ref_kind"`
	WebURL    string `json:"web_url,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toDocumentResponse(doc *models.Document) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		OwnerID:   doc.OwnerID,
		Title:     doc.Title,
		FileName:  doc.FileName,
		MimeType:  doc.MimeType,
		SizeBytes: doc.SizeBytes,
		RefKind:   string(doc.Ref.Kind),
		WebURL:    doc.Ref.WebURL,
		CreatedAt: doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, authz.ModuleResidents)
}

func (h *Handler) uploadInvoice(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, authz.ModuleBillings)
}

// handleUpload reads one multipart upload (fields: file, title, owner) and
// hands it to the documents service under module's write capability.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, module authz.Module) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes + multipartOverhead); err != nil {
		writeError(w, http.StatusBadRequest, "invalid or oversized multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable file field")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(content)
	}

	doc, err := h.docs.Upload(r.Context(), identity, module, &documents.UploadInput{
		OwnerID:  r.FormValue("owner"),
		Title:    r.FormValue("title"),
		FileName: header.Filename,
		MimeType: mimeType,
		Content:  content,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	docs, err := h.docs.List(r.Context(), identity, authz.ModuleResidents, r.URL.Query().Get("owner"))
	if err != nil {
		writeMappedError(w, err)
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) downloadDocument(w http.ResponseWriter, r *http.Request) {
	h.handleDownload(w, r, authz.ModuleResidents)
}

func (h *Handler) downloadInvoice(w http.ResponseWriter, r *http.Request) {
	h.handleDownload(w, r, authz.ModuleBillings)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request, module authz.Module) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	doc, rc, err := h.docs.Download(r.Context(), identity, module, chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", sanitizeFilename(doc.FileName)))
	if doc.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// headers are gone, nothing to send but a log line
		h.logger.Error(r.Context(), "download stream interrupted",
			"request_id", requestIDFromContext(r.Context()), "id", doc.ID, "error", err.Error())
	}
}

func (h *Handler) downloadByPath(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	relativePath, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, http.StatusForbidden, "invalid path")
		return
	}

	rc, err := h.docs.OpenPath(r.Context(), identity, authz.ModuleResidents, relativePath)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", sanitizeFilename(baseName(relativePath))))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error(r.Context(), "download stream interrupted",
			"request_id", requestIDFromContext(r.Context()), "path", relativePath, "error", err.Error())
	}
}

// sanitizeFilename strips characters that would break out of a quoted
// Content-Disposition filename.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer("\r", "", "\n", "", `"`, "", `\`, "")
	cleaned := replacer.Replace(name)
	if cleaned == "" {
		return "download"
	}
	return cleaned
}

func baseName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
