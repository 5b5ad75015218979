package handler

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docqa/internal/app"
	"docqa/internal/transport/http/response"
)

type DocumentHandler struct {
	ragService *app.RAGService
}

type uploadResponse struct {
	Results []app.IngestResult `json:"results"`
}

func NewDocumentHandler(ragService *app.RAGService) *DocumentHandler {
	return &DocumentHandler{ragService: ragService}
}

// Upload ingests every file in the multipart "files" field. The request
// succeeds as long as the form is readable; per-file failures are reported
// in the results.
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing files")
		return
	}

	files := collectUploads(headers, h.ragService.MaxUploadBytes())
	results := h.ragService.Ingest(c.Request.Context(), files)
	response.OK(c, uploadResponse{Results: results})
}

// collectUploads reads every part. A part that cannot be read carries its
// error into the service so it is reported alongside its siblings.
func collectUploads(headers []*multipart.FileHeader, limit int64) []app.UploadFile {
	files := make([]app.UploadFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh, limit)
		if err != nil {
			log.Printf("read upload %q failed: %v", fh.Filename, err)
			files = append(files, app.UploadFile{Name: fh.Filename, Err: fmt.Errorf("read file failed: %w", err)})
			continue
		}
		files = append(files, app.UploadFile{Name: fh.Filename, Data: data})
	}
	return files
}

// readUpload reads at most limit+1 bytes so oversized files are rejected by
// the service without being buffered whole.
func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

func (h *DocumentHandler) List(c *gin.Context) {
	response.OK(c, h.ragService.ListDocuments())
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "document name is required")
		return
	}

	doc, err := h.ragService.Delete(c.Request.Context(), name)
	if err != nil {
		writeError(c, err, nil, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted": doc.Name, "chunksRemoved": doc.ChunkCount})
}

func (h *DocumentHandler) Reload(c *gin.Context) {
	result, err := h.ragService.Reload(c.Request.Context())
	if err != nil {
		writeError(c, err, nil, "reload index failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) Clear(c *gin.Context) {
	result, err := h.ragService.Clear(c.Request.Context())
	if err != nil {
		writeError(c, err, nil, "clear corpus failed")
		return
	}
	response.OK(c, result)
}
