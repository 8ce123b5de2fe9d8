package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func upload(t *testing.T, root string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/attachments", NewAttachmentHandler(root, zerolog.Nop()).Upload)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "upload.bin")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUploadStoresImage(t *testing.T) {
	root := t.TempDir()

	rec := upload(t, root, pngHeader)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Attachment  string `json:"attachment"`
		ContentType string `json:"content_type"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "image/png", resp.ContentType)
	require.True(t, strings.HasPrefix(resp.Attachment, "/files/"))
	assert.True(t, strings.HasSuffix(resp.Attachment, ".png"))
	stored, err := os.ReadFile(filepath.Join(root, strings.TrimPrefix(resp.Attachment, "/files/")))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored)
}

func TestUploadAcceptsPlainText(t *testing.T) {
	rec := upload(t, t.TempDir(), []byte("just some notes\n"))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUploadRejectsExecutable(t *testing.T) {
	root := t.TempDir()

	rec := upload(t, root, append([]byte("\x7fELF\x02\x01\x01\x00"), make([]byte, 64)...))

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/attachments", NewAttachmentHandler(t.TempDir(), zerolog.Nop()).Upload)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/attachments", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
