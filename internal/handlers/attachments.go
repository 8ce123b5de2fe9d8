package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxAttachmentBytes caps a single upload.
const MaxAttachmentBytes = 10 << 20

var allowedAttachmentTypes = []string{"application/pdf", "text/plain"}

// AttachmentHandler stores uploaded files under a root directory served at
// /files.
type AttachmentHandler struct {
	rootDir string
	log     zerolog.Logger
}

// NewAttachmentHandler builds an AttachmentHandler.
func NewAttachmentHandler(rootDir string, logger zerolog.Logger) *AttachmentHandler {
	return &AttachmentHandler{rootDir: rootDir, log: logger.With().Str("component", "attachments").Logger()}
}

// Upload accepts a multipart "file", sniffs its type and stores it.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if header.Size > MaxAttachmentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	src, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxAttachmentBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}

	mtype := mimetype.Detect(data)
	if !attachmentAllowed(mtype) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported file type", "content_type": mtype.String()})
		return
	}

	if err := os.MkdirAll(h.rootDir, 0o755); err != nil {
		h.log.Error().Err(err).Str("root_dir", h.rootDir).Msg("create attachment dir")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
		return
	}
	name := uuid.NewString() + mtype.Extension()
	if err := os.WriteFile(filepath.Join(h.rootDir, name), data, 0o644); err != nil {
		h.log.Error().Err(err).Str("name", name).Msg("write attachment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"attachment": "/files/" + name, "content_type": mtype.String()})
}

func attachmentAllowed(mtype *mimetype.MIME) bool {
	if strings.HasPrefix(mtype.String(), "image/") {
		return true
	}
	for _, allowed := range allowedAttachmentTypes {
		if mtype.Is(allowed) {
			return true
		}
	}
	return false
}
