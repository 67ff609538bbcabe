package handler_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypost/tusgo/pkg/handler"
	"github.com/relaypost/tusgo/pkg/upload"
)

func TestPatchAppendsChunkAndAdvancesOffset(t *testing.T) {
	h := newTestHandler(t, nil)
	location := createUpload(t, h, 11, "")
	path := locationPath(t, location)

	req := httptest.NewRequest("PATCH", path, strings.NewReader("hello"))
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.Header.Set("Upload-Offset", "0")
	req.ContentLength = 5

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 204, rec.Code, rec.Body.String())
	assert.Equal(t, "5", rec.Header().Get("Upload-Offset"))
}

func TestPatchCompletesUploadAndFiresHook(t *testing.T) {
	var firedPath string
	var fireCount int
	h := newTestHandler(t, func(c *handler.Config) {
		c.OnUploadComplete = handler.CompletionHookFunc(func(ctx context.Context, payloadPath string, meta upload.Metadata) error {
			firedPath = payloadPath
			fireCount++
			return nil
		})
	})

	location := createUpload(t, h, 5, "")
	path := locationPath(t, location)

	req := httptest.NewRequest("PATCH", path, strings.NewReader("hello"))
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.Header.Set("Upload-Offset", "0")
	req.ContentLength = 5

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 204, rec.Code, rec.Body.String())
	assert.Equal(t, 1, fireCount)
	assert.NotEmpty(t, firedPath)
}

func TestPatchRejectsOffsetMismatch(t *testing.T) {
	h := newTestHandler(t, nil)
	location := createUpload(t, h, 11, "")
	path := locationPath(t, location)

	req := httptest.NewRequest("PATCH", path, strings.NewReader("hello"))
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.Header.Set("Upload-Offset", "3")
	req.ContentLength = 5

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 409, rec.Code)
}

func TestPatchRejectsWrongContentType(t *testing.T) {
	h := newTestHandler(t, nil)
	location := createUpload(t, h, 11, "")
	path := locationPath(t, location)

	req := httptest.NewRequest("PATCH", path, strings.NewReader("hello"))
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Upload-Offset", "0")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestPatchRejectsUnknownUpload(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest("PATCH", "/files/doesnotexist00000000000000000", strings.NewReader("x"))
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.Header.Set("Upload-Offset", "0")
	req.ContentLength = 1

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestPatchEnforcesMaxSizeDuringStreaming(t *testing.T) {
	h := newTestHandler(t, func(c *handler.Config) { c.MaxSize = 3 })
	location := createUpload(t, h, 3, "")
	path := locationPath(t, location)

	req := httptest.NewRequest("PATCH", path, strings.NewReader("hello"))
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.Header.Set("Upload-Offset", "0")
	req.ContentLength = 5

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 413, rec.Code)
}

func TestPatchDeferredLengthFinalizesOnTerminatingChunk(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest("POST", "/files/", nil)
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Upload-Defer-Length", "1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, 201, rec.Code)
	path := locationPath(t, rec.Header().Get("Location"))

	firstReq := httptest.NewRequest("PATCH", path, strings.NewReader("hello"))
	firstReq.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	firstReq.Header.Set("Content-Type", "application/offset+octet-stream")
	firstReq.Header.Set("Upload-Offset", "0")
	firstReq.ContentLength = 5
	firstRec := httptest.NewRecorder()
	h.ServeHTTP(firstRec, firstReq)
	require.Equal(t, 204, firstRec.Code, firstRec.Body.String())
	assert.Equal(t, "5", firstRec.Header().Get("Upload-Offset"))

	secondReq := httptest.NewRequest("PATCH", path, nil)
	secondReq.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	secondReq.Header.Set("Content-Type", "application/offset+octet-stream")
	secondReq.Header.Set("Upload-Offset", "5")
	secondRec := httptest.NewRecorder()
	h.ServeHTTP(secondRec, secondReq)
	require.Equal(t, 204, secondRec.Code, secondRec.Body.String())
}
