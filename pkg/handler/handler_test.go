package handler_test

import (
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaypost/tusgo/pkg/handler"
)

func newTestHandler(t *testing.T, configure func(*handler.Config)) *handler.Handler {
	t.Helper()

	cfg := handler.Config{
		Prefix:   "files",
		FilesDir: t.TempDir(),
	}
	if configure != nil {
		configure(&cfg)
	}

	h, err := handler.NewHandler(cfg)
	require.NoError(t, err)
	return h
}

func createUpload(t *testing.T, h *handler.Handler, size int64, meta string) string {
	t.Helper()

	req := httptest.NewRequest("POST", "/files/", nil)
	req.Header.Set("Tus-Resumable", handler.TusResumableVersion)
	req.Header.Set("Upload-Length", strconv.FormatInt(size, 10))
	if meta != "" {
		req.Header.Set("Upload-Metadata", meta)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, 201, rec.Code, rec.Body.String())

	location := rec.Header().Get("Location")
	require.NotEmpty(t, location)
	return location
}

// locationPath turns the absolute Location URL returned by createUpload
// into a request path usable with httptest.NewRequest.
func locationPath(t *testing.T, location string) string {
	t.Helper()
	u, err := url.Parse(location)
	require.NoError(t, err)
	return u.Path
}
