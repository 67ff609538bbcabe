package handler_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypost/tusgo/pkg/handler"
)

const testMetadata = "filename dGVzdC50eHQ=,filetype dGV4dC9wbGFpbg=="

func TestHeadReportsOffsetAndMetadata(t *testing.T) {
	h := newTestHandler(t, nil)
	location := createUpload(t, h, 11, testMetadata)
	path := locationPath(t, location)

	req := httptest.NewRequest("HEAD", path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("Upload-Offset"))
	assert.Equal(t, "11", rec.Header().Get("Upload-Length"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "filename dGVzdC50eHQ=, filetype dGV4dC9wbGFpbg==", rec.Header().Get("Upload-Metadata"))
}

func TestHeadRejectsMissingMetadata(t *testing.T) {
	h := newTestHandler(t, nil)
	location := createUpload(t, h, 11, "")
	path := locationPath(t, location)

	req := httptest.NewRequest("HEAD", path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestHeadReportsDeferLength(t *testing.T) {
	h := newTestHandler(t, nil)

	createReq := httptest.NewRequest("POST", "/files/", nil)
	createReq.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	createReq.Header.Set("Upload-Defer-Length", "1")
	createReq.Header.Set("Upload-Metadata", testMetadata)
	createRec := httptest.NewRecorder()
	h.ServeHTTP(createRec, createReq)
	require.Equal(t, 201, createRec.Code)
	path := locationPath(t, createRec.Header().Get("Location"))

	req := httptest.NewRequest("HEAD", path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Upload-Defer-Length"))
	assert.Empty(t, rec.Header().Get("Upload-Length"))
}

func TestHeadUnknownUploadReturns404(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest("HEAD", "/files/doesnotexist00000000000000000", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
	assert.Empty(t, rec.Body.String())
}
