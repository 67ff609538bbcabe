package handler_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaypost/tusgo/pkg/handler"
)

func TestPostCreatesUpload(t *testing.T) {
	h := newTestHandler(t, nil)

	location := createUpload(t, h, 100, "filename dGVzdC50eHQ=,filetype dGV4dC9wbGFpbg==")
	assert.Contains(t, location, "/files/")
}

func TestPostRejectsBothLengthAndDeferLength(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest("POST", "/files/", nil)
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Upload-Length", "10")
	req.Header.Set("Upload-Defer-Length", "1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestPostRejectsOversizedUpload(t *testing.T) {
	h := newTestHandler(t, func(c *handler.Config) { c.MaxSize = 10 })

	req := httptest.NewRequest("POST", "/files/", nil)
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Upload-Length", "20")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 413, rec.Code)
}

func TestPostWithDeferLengthCreatesUpload(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest("POST", "/files/", nil)
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Upload-Defer-Length", "1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 201, rec.Code)
}

func TestPostCreationWithUploadAppendsImmediately(t *testing.T) {
	h := newTestHandler(t, nil)

	body := "hello world"
	req := httptest.NewRequest("POST", "/files/", strings.NewReader(body))
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Upload-Length", "11")
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.ContentLength = int64(len(body))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 201, rec.Code, rec.Body.String())
	assert.Equal(t, "11", rec.Header().Get("Upload-Offset"))
}

func TestPostZeroSizeUploadCompletesImmediately(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest("POST", "/files/", nil)
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Upload-Length", "0")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 201, rec.Code)
}
