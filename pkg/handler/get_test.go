package handler_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypost/tusgo/pkg/handler"
)

func TestGetStreamsUploadedPayload(t *testing.T) {
	h := newTestHandler(t, nil)
	location := createUpload(t, h, 11, "name aGVsbG8udHh0")
	path := locationPath(t, location)

	patchReq := httptest.NewRequest("PATCH", path, strings.NewReader("hello world"))
	patchReq.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	patchReq.Header.Set("Content-Type", "application/offset+octet-stream")
	patchReq.Header.Set("Upload-Offset", "0")
	patchReq.ContentLength = 11
	patchRec := httptest.NewRecorder()
	h.ServeHTTP(patchRec, patchReq)
	require.Equal(t, 204, patchRec.Code, patchRec.Body.String())

	getReq := httptest.NewRequest("GET", path, nil)
	getRec := httptest.NewRecorder()
	h.ServeHTTP(getRec, getReq)

	require.Equal(t, 200, getRec.Code)
	assert.Equal(t, "application/octet-stream", getRec.Header().Get("Content-Type"))
	assert.Equal(t, "11", getRec.Header().Get("Content-Length"))
	assert.Contains(t, getRec.Header().Get("Content-Disposition"), "hello.txt")

	body, err := io.ReadAll(getRec.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestGetUnknownUploadReturns404(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest("GET", "/files/doesnotexist00000000000000000", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}
