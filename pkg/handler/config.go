package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/relaypost/tusgo/pkg/upload"
)

// SupportedExtensions is the fixed tus extension list this handler
// advertises in OPTIONS responses.
const SupportedExtensions = "creation,creation-defer-length,creation-with-upload,expiration,termination"

const TusResumableVersion = "1.0.0"

// DefaultMaxSize is the upload size cap applied when Config.MaxSize is left
// unset.
const DefaultMaxSize int64 = 128849018880

// CompletionHook is invoked exactly once per upload, when its offset first
// reaches its size. It may do its work synchronously (returning immediately
// resolved) or asynchronously; the handler always awaits it before
// finalizing the HTTP response, so both shapes are expressed as the same
// interface instead of duck-typing at call time.
type CompletionHook interface {
	// OnUploadComplete is called with the absolute path to the payload file
	// and the upload's metadata.
	OnUploadComplete(ctx context.Context, payloadPath string, meta upload.Metadata) error
}

// CompletionHookFunc adapts a plain function to CompletionHook for the
// common synchronous case.
type CompletionHookFunc func(ctx context.Context, payloadPath string, meta upload.Metadata) error

func (f CompletionHookFunc) OnUploadComplete(ctx context.Context, payloadPath string, meta upload.Metadata) error {
	return f(ctx, payloadPath, meta)
}

// CompletionHookFactory resolves a CompletionHook per-request, letting a
// host inject per-request state (e.g. a database handle) into the hook
// rather than providing one fixed hook at startup. When set, it takes
// precedence over OnUploadComplete.
type CompletionHookFactory func(r *http.Request) (CompletionHook, error)

// AuthFunc gates every request before its handler runs. Returning a non-nil
// error aborts the request with that error (wrapped in an Error if it is not
// already one).
type AuthFunc func(ctx context.Context) error

// Config configures a Handler. It is validated, and its defaults filled in,
// by NewHandler and NewUnroutedHandler.
type Config struct {
	// Prefix is the URL path segment the routes are mounted under. A
	// leading slash is stripped if present. Defaults to "files".
	Prefix string

	// FilesDir is the directory holding payload and sidecar files. It is
	// created on demand.
	FilesDir string

	// MaxSize is the hard cap, in bytes, on any single upload's final size.
	// Defaults to 128849018880 (120 GiB).
	MaxSize int64

	// DaysToKeep sets the retention window: Expires is set to
	// now+DaysToKeep at creation and, if still unset, on the first PATCH.
	DaysToKeep int

	// Auth, if set, is invoked before every handler. A non-nil error
	// short-circuits the request with that error.
	Auth AuthFunc

	// OnUploadComplete is invoked once per upload on completion, unless
	// UploadCompleteDep is set.
	OnUploadComplete CompletionHook

	// UploadCompleteDep, if set, is resolved on the request that completes an
	// upload to obtain the CompletionHook to invoke, letting a host inject
	// per-request state (e.g. a database handle) instead of providing one
	// fixed hook at startup. It takes precedence over OnUploadComplete, and
	// exactly one of the two fires per completed upload, never both.
	UploadCompleteDep CompletionHookFactory

	// Tags is a presentation tag list for API documentation; the core does
	// not interpret it.
	Tags []string

	// Logger receives structured events for every request. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Clock returns the current time. Defaults to time.Now and only exists
	// so tests can control expiry deterministically.
	Clock func() time.Time

	// AcquireLockTimeout bounds how long a request waits for another
	// request's lock on the same upload id before giving up. Defaults to
	// 20 seconds.
	AcquireLockTimeout time.Duration

	// RespectForwardedHeaders allows X-Forwarded-Host/-Proto to override the
	// request's own host/scheme when building Location URLs, for use behind
	// a reverse proxy. The combined Forwarded header is not read.
	RespectForwardedHeaders bool
}

func (c *Config) validate() error {
	if c.FilesDir == "" {
		return errors.New("handler: Config.FilesDir must be set")
	}
	if c.MaxSize < 0 {
		return errors.New("handler: Config.MaxSize must not be negative")
	}
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.DaysToKeep <= 0 {
		c.DaysToKeep = 5
	}
	if c.Prefix == "" {
		c.Prefix = "files"
	}
	c.Prefix = trimLeadingSlash(c.Prefix)
	if c.Auth == nil {
		c.Auth = func(context.Context) error { return nil }
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.AcquireLockTimeout <= 0 {
		c.AcquireLockTimeout = 20 * time.Second
	}
	return nil
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

// absoluteURL composes the Location-style URL for an upload id from an
// already-resolved scheme and host (see getHostAndProtocol).
func absoluteURL(prefix, proto, host, id string) string {
	u := url.URL{Scheme: proto, Host: host, Path: "/" + prefix + "/" + id}
	return u.String()
}
