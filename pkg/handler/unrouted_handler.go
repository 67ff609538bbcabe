package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/relaypost/tusgo/internal/uid"
	"github.com/relaypost/tusgo/pkg/filestore"
	"github.com/relaypost/tusgo/pkg/upload"
)

// UploadLengthDeferred is the only legal value of the Upload-Defer-Length
// header.
const UploadLengthDeferred = "1"

// readChunkSize bounds how much of the request body is read into memory
// between sidecar persists, so a PATCH interrupted mid-stream still leaves
// the record consistent with what actually landed on disk.
const readChunkSize = 64 * 1024

var (
	ErrUnsupportedVersion         = NewError("ERR_UNSUPPORTED_VERSION", "missing, invalid or unsupported Tus-Resumable header", http.StatusPreconditionFailed)
	ErrUploadLengthAndDeferLength = NewError("ERR_AMBIGUOUS_UPLOAD_LENGTH", "provide either Upload-Length or Upload-Defer-Length, not both", http.StatusBadRequest)
	ErrInvalidUploadLength        = NewError("ERR_INVALID_UPLOAD_LENGTH", "missing or invalid Upload-Length header", http.StatusBadRequest)
)

// UnroutedHandler implements the tus protocol verbs against a single
// filestore.Store. It exposes plain http.HandlerFunc-shaped methods so a
// caller can wire them into their own mux; Handler (in handler.go) is the
// pre-routed convenience wrapper most callers want instead.
type UnroutedHandler struct {
	config     Config
	store      *filestore.Store
	extensions string
	metrics    Metrics
}

// NewUnroutedHandler validates config, opens the file store, and returns a
// handler ready to have its verb methods wired into a router.
func NewUnroutedHandler(config Config) (*UnroutedHandler, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	store, err := filestore.New(config.FilesDir)
	if err != nil {
		return nil, err
	}

	return &UnroutedHandler{
		config:     config,
		store:      store,
		extensions: SupportedExtensions,
		metrics:    newMetrics(),
	}, nil
}

// Metrics returns the handler's live counters, for a host that wants to
// register them with its own metrics exporter or feed an external
// component such as the expiration sweeper into the same counter set.
func (handler *UnroutedHandler) Metrics() Metrics {
	return handler.metrics
}

// Store exposes the underlying file store so a host can share it with the
// expiration sweeper without the sweeper depending on package handler.
func (handler *UnroutedHandler) Store() *filestore.Store {
	return handler.store
}

// Middleware wraps h with the protocol-wide request handling shared by
// every verb: metrics, the common response headers, the Tus-Resumable
// version check, and the auth gate. OPTIONS is exempt from the version
// check since it is the discovery request a client uses before it knows
// what the server supports. GET and HEAD are checked only when they carry
// a Tus-Resumable header, so a browser or plain HTTP client that sends none
// can still use them, while an unsupported version is rejected.
func (handler *UnroutedHandler) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := handler.newContext(w, r)
		r = r.WithContext(c)

		c.log.Info("RequestIncoming")
		handler.metrics.incRequestsTotal(r.Method)

		header := w.Header()
		header.Set("Tus-Resumable", TusResumableVersion)
		header.Set("X-Content-Type-Options", "nosniff")

		versionChecked := r.Method != http.MethodOptions
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			versionChecked = r.Header.Get("Tus-Resumable") != ""
		}
		if versionChecked && r.Header.Get("Tus-Resumable") != TusResumableVersion {
			handler.sendError(c, ErrUnsupportedVersion)
			return
		}

		if err := handler.config.Auth(c); err != nil {
			handler.sendError(c, err)
			return
		}

		h.ServeHTTP(w, r)
	})
}

// OptionsRoot answers capability discovery at the mount root.
func (handler *UnroutedHandler) OptionsRoot(w http.ResponseWriter, r *http.Request) {
	c := handler.getContext(w, r)

	header := w.Header()
	header.Set("Tus-Max-Size", strconv.FormatInt(handler.config.MaxSize, 10))
	header.Set("Tus-Version", TusResumableVersion)
	header.Set("Tus-Extension", handler.extensions)

	handler.sendResp(c, HTTPResponse{StatusCode: http.StatusNoContent})
}

// OptionsFile answers per-upload capability discovery.
func (handler *UnroutedHandler) OptionsFile(w http.ResponseWriter, r *http.Request) {
	c := handler.getContext(w, r)

	id, err := extractIDFromPath(r.URL.Path, handler.config.Prefix)
	if err != nil {
		handler.sendError(c, err)
		return
	}
	c.log = c.log.With("id", id)

	if !handler.store.Exists(id) {
		handler.sendError(c, ErrNotFound)
		return
	}

	header := w.Header()
	header.Set("Tus-Version", TusResumableVersion)
	header.Set("Tus-Extension", handler.extensions)

	handler.sendResp(c, HTTPResponse{StatusCode: http.StatusNoContent})
}

// PostFile creates a new upload: creation, creation-defer-length, and
// creation-with-upload all flow through here.
func (handler *UnroutedHandler) PostFile(w http.ResponseWriter, r *http.Request) {
	c := handler.getContext(w, r)

	containsChunk := r.Header.Get("Content-Type") == "application/offset+octet-stream"

	size, deferLength, err := handler.validateNewUploadLengthHeaders(
		r.Header.Get("Upload-Length"),
		r.Header.Get("Upload-Defer-Length"),
	)
	if err != nil {
		handler.sendError(c, err)
		return
	}

	if handler.config.MaxSize > 0 && size > handler.config.MaxSize {
		handler.sendError(c, ErrSizeExceeded)
		return
	}

	meta := parseMetadataHeader(r.Header.Get("Upload-Metadata"))

	id := uid.New()
	now := handler.config.Clock()
	rec := upload.Record{
		Metadata:    meta,
		Size:        size,
		DeferLength: deferLength,
		CreatedAt:   now,
		Expires:     now.AddDate(0, 0, handler.config.DaysToKeep),
	}

	if err := handler.store.Create(id, rec); err != nil {
		handler.sendError(c, err)
		return
	}

	c.log = c.log.With("id", id)
	url := handler.absFileURL(r, id)
	resp := HTTPResponse{
		StatusCode: http.StatusCreated,
		Header: HTTPHeader{
			"Location":       url,
			"Content-Length": "0",
		},
	}

	handler.metrics.incUploadsCreated()
	c.log.Info("UploadCreated", "size", size, "url", url)

	switch {
	case containsChunk:
		lock, lockErr := handler.lockUpload(c, id)
		if lockErr != nil {
			handler.sendError(c, lockErr)
			return
		}
		defer lock.Release()

		resp, err = handler.appendAndRespond(c, resp, id, &rec, 0)
		if err != nil {
			handler.sendError(c, err)
			return
		}
		resp.StatusCode = http.StatusCreated

	case !deferLength && size == 0:
		if err := handler.fireCompletionHook(c, id, rec); err != nil {
			handler.sendError(c, err)
			return
		}
	}

	handler.sendResp(c, resp)
}

// HeadFile reports an upload's current offset and metadata.
func (handler *UnroutedHandler) HeadFile(w http.ResponseWriter, r *http.Request) {
	c := handler.getContext(w, r)

	id, err := extractIDFromPath(r.URL.Path, handler.config.Prefix)
	if err != nil {
		handler.sendError(c, err)
		return
	}
	c.log = c.log.With("id", id)

	lock, err := handler.lockUpload(c, id)
	if err != nil {
		handler.sendError(c, err)
		return
	}
	defer lock.Release()

	rec, err := handler.store.Load(id)
	if err != nil {
		handler.sendError(c, wrapStoreErr(err))
		return
	}

	filename, hasFilename := rec.Metadata.Filename()
	filetype, hasFiletype := rec.Metadata.Filetype()
	if !hasFilename || !hasFiletype {
		handler.sendError(c, ErrMissingMetadataField)
		return
	}

	resp := HTTPResponse{
		StatusCode: http.StatusOK,
		Header: HTTPHeader{
			"Cache-Control":   "no-store",
			"Upload-Offset":   strconv.FormatInt(rec.Offset, 10),
			"Upload-Metadata": serializeMetadataHeader(rec.Metadata, "filename="+filename, "filetype="+filetype),
		},
	}

	if rec.DeferLength {
		resp.Header["Upload-Defer-Length"] = UploadLengthDeferred
	} else {
		resp.Header["Upload-Length"] = strconv.FormatInt(rec.Size, 10)
		resp.Header["Content-Length"] = strconv.FormatInt(rec.Size, 10)
	}

	handler.sendResp(c, resp)
}

// PatchFile appends one chunk to an upload.
func (handler *UnroutedHandler) PatchFile(w http.ResponseWriter, r *http.Request) {
	c := handler.getContext(w, r)

	if r.Header.Get("Content-Type") != "application/offset+octet-stream" {
		handler.sendError(c, ErrInvalidContentType)
		return
	}

	assertedOffset, err := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
	if err != nil || assertedOffset < 0 {
		handler.sendError(c, ErrInvalidOffset)
		return
	}

	id, err := extractIDFromPath(r.URL.Path, handler.config.Prefix)
	if err != nil {
		handler.sendError(c, err)
		return
	}
	c.log = c.log.With("id", id)

	lock, err := handler.lockUpload(c, id)
	if err != nil {
		handler.sendError(c, err)
		return
	}
	defer lock.Release()

	rec, err := handler.store.Load(id)
	if err != nil {
		handler.sendError(c, wrapStoreErr(err))
		return
	}

	resp, err := handler.appendAndRespond(c, HTTPResponse{StatusCode: http.StatusNoContent}, id, &rec, assertedOffset)
	if err != nil {
		handler.sendError(c, err)
		return
	}

	handler.sendResp(c, resp)
}

// appendAndRespond streams the request body into id's payload, enforces the
// post-streaming offset invariant, applies the deferred-length and expiry
// post-processing, persists the record, and fires the completion hook if
// the upload is now complete. It is shared by PostFile (creation-with-
// upload, assertedOffset always 0) and PatchFile.
func (handler *UnroutedHandler) appendAndRespond(c *httpContext, resp HTTPResponse, id string, rec *upload.Record, assertedOffset int64) (HTTPResponse, error) {
	declaredLength := c.req.ContentLength
	alreadyComplete := c.req.Method == http.MethodPatch && !rec.DeferLength && rec.IsComplete()

	bytesWritten, err := handler.streamBody(c, id, rec)
	handler.metrics.incBytesReceived(uint64(bytesWritten))
	if err != nil {
		return resp, err
	}

	observedLength := declaredLength
	if observedLength < 0 {
		// Transfer-Encoding: chunked or otherwise no declared Content-Length;
		// fall back to what was actually streamed rather than reject a
		// request there is no declared length to cross-check against.
		observedLength = bytesWritten
	}

	if rec.Offset != assertedOffset+observedLength {
		return resp, ErrConflictOffset
	}

	if rec.DeferLength {
		rec.Size = finalizeDeferredLength(assertedOffset)
	}

	if rec.Expires.IsZero() {
		rec.Expires = handler.config.Clock().AddDate(0, 0, handler.config.DaysToKeep)
	}

	complete := rec.IsComplete()
	if complete {
		rec.DeferLength = false
	}
	// A PATCH (necessarily zero-byte) against an upload that was already
	// complete before it arrived leaves it complete but does not fire the
	// hook a second time.
	fireHook := complete && !alreadyComplete

	if err := handler.store.Save(id, *rec); err != nil {
		return resp, err
	}

	resp = resp.MergeWith(HTTPResponse{
		Header: HTTPHeader{
			"Upload-Offset":  strconv.FormatInt(rec.Offset, 10),
			"Upload-Expires": rec.Expires.UTC().Format(time.RFC3339),
		},
	})

	if fireHook {
		if err := handler.fireCompletionHook(c, id, *rec); err != nil {
			return resp, err
		}
	}

	return resp, nil
}

// finalizeDeferredLength resolves the final size of a deferred-length
// upload to the offset the client asserted at the *start* of the
// terminating PATCH, not to the offset after that PATCH's bytes are
// applied. A well-behaved client only completes a deferred-length upload
// via a zero-byte terminating PATCH whose asserted offset equals the
// upload's current stored offset, so the two values coincide in practice.
// It is deliberately not "corrected" to assertedOffset+bytesWritten.
func finalizeDeferredLength(assertedOffset int64) int64 {
	return assertedOffset
}

// streamBody reads the request body and appends it to id's payload in
// bounded increments, persisting the sidecar after each increment so an
// interrupted PATCH still leaves a consistent record. It enforces max_size
// per the protocol's streaming rule, not the record's declared size.
func (handler *UnroutedHandler) streamBody(c *httpContext, id string, rec *upload.Record) (int64, error) {
	r := c.req
	if r.Body == nil {
		return 0, nil
	}

	var total int64
	buf := make([]byte, readChunkSize)

	for {
		n, readErr := r.Body.Read(buf)
		if n > 0 {
			if handler.config.MaxSize > 0 && rec.Offset+int64(n) > handler.config.MaxSize {
				return total, ErrSizeExceeded
			}

			written, appendErr := handler.store.Append(id, buf[:n])
			if appendErr != nil {
				return total, appendErr
			}

			rec.Offset += written
			rec.UploadChunkSize = written
			rec.UploadPart++
			total += written

			if saveErr := handler.store.Save(id, *rec); saveErr != nil {
				return total, saveErr
			}
		}

		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

func (handler *UnroutedHandler) fireCompletionHook(c *httpContext, id string, rec upload.Record) error {
	hook, err := handler.resolveCompletionHook(c.req)
	if err != nil {
		return err
	}

	if hook != nil {
		if err := hook.OnUploadComplete(c, handler.store.BinPath(id), rec.Metadata); err != nil {
			return err
		}
	}

	c.log.Info("UploadFinished", "size", rec.Size)
	handler.metrics.incUploadsFinished()

	return nil
}

func (handler *UnroutedHandler) resolveCompletionHook(r *http.Request) (CompletionHook, error) {
	if handler.config.UploadCompleteDep != nil {
		return handler.config.UploadCompleteDep(r)
	}
	return handler.config.OnUploadComplete, nil
}

// GetFile streams a payload back to the client. This is not part of the
// tus protocol itself but is offered alongside it.
func (handler *UnroutedHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	c := handler.getContext(w, r)

	id, err := extractIDFromPath(r.URL.Path, handler.config.Prefix)
	if err != nil {
		handler.sendError(c, err)
		return
	}
	c.log = c.log.With("id", id)

	lock, err := handler.lockUpload(c, id)
	if err != nil {
		handler.sendError(c, err)
		return
	}
	defer lock.Release()

	rec, err := handler.store.Load(id)
	if err != nil {
		handler.sendError(c, wrapStoreErr(err))
		return
	}

	src, err := handler.store.Read(id)
	if err != nil {
		handler.sendError(c, wrapStoreErr(err))
		return
	}
	defer src.Close()

	resp := HTTPResponse{
		StatusCode: http.StatusOK,
		Header: HTTPHeader{
			"Content-Type":   "application/octet-stream",
			"Content-Length": strconv.FormatInt(rec.Offset, 10),
		},
	}
	if name, ok := rec.Metadata["name"]; ok {
		resp.Header["Content-Disposition"] = "attachment;filename=" + strconv.Quote(name)
	}

	handler.sendResp(c, resp)
	io.Copy(w, src)
}

// DelFile terminates an upload: its payload and sidecar are removed
// permanently and immediately.
func (handler *UnroutedHandler) DelFile(w http.ResponseWriter, r *http.Request) {
	c := handler.getContext(w, r)

	id, err := extractIDFromPath(r.URL.Path, handler.config.Prefix)
	if err != nil {
		handler.sendError(c, err)
		return
	}
	c.log = c.log.With("id", id)

	lock, err := handler.lockUpload(c, id)
	if err != nil {
		handler.sendError(c, err)
		return
	}
	defer lock.Release()

	if !handler.store.Exists(id) {
		handler.sendError(c, ErrNotFound)
		return
	}

	if err := handler.store.Delete(id); err != nil {
		handler.sendError(c, err)
		return
	}

	c.log.Info("UploadTerminated")
	handler.metrics.incUploadsTerminated()

	handler.sendResp(c, HTTPResponse{StatusCode: http.StatusNoContent})
}

func (handler *UnroutedHandler) sendError(c *httpContext, err error) {
	detailedErr, ok := err.(Error)
	if !ok {
		c.log.Error("InternalServerError", "message", err.Error())
		detailedErr = NewError("ERR_INTERNAL_SERVER_ERROR", err.Error(), http.StatusInternalServerError)
	}

	if c.req.Method == http.MethodHead {
		detailedErr.HTTPResponse.Body = ""
	}

	handler.sendResp(c, detailedErr.HTTPResponse)
	handler.metrics.incErrorsTotal(detailedErr)
}

func (handler *UnroutedHandler) sendResp(c *httpContext, resp HTTPResponse) {
	resp.writeTo(c.res)
	c.log.Info("ResponseOutgoing", "status", resp.StatusCode)
}

// absFileURL composes the Location-style URL for an upload id, honoring
// X-Forwarded-* headers when RespectForwardedHeaders is set.
func (handler *UnroutedHandler) absFileURL(r *http.Request, id string) string {
	host, proto := getHostAndProtocol(r, handler.config.RespectForwardedHeaders)
	return absoluteURL(handler.config.Prefix, proto, host, id)
}

func getHostAndProtocol(r *http.Request, allowForwarded bool) (host, proto string) {
	if r.TLS != nil {
		proto = "https"
	} else {
		proto = "http"
	}
	host = r.Host

	if !allowForwarded {
		return host, proto
	}

	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = h
	}
	if h := r.Header.Get("X-Forwarded-Proto"); h == "http" || h == "https" {
		proto = h
	}

	return host, proto
}

// validateNewUploadLengthHeaders enforces that exactly one of Upload-Length
// and Upload-Defer-Length is present and valid.
func (handler *UnroutedHandler) validateNewUploadLengthHeaders(lengthHeader, deferHeader string) (size int64, deferred bool, err error) {
	haveLength := lengthHeader != ""
	haveDefer := deferHeader != ""

	if haveLength && haveDefer {
		return 0, false, ErrUploadLengthAndDeferLength
	}

	if haveDefer {
		if deferHeader != UploadLengthDeferred {
			return 0, false, ErrInvalidDeferLength
		}
		return 0, true, nil
	}

	if !haveLength {
		return 0, false, ErrInvalidUploadLength
	}

	size, err = strconv.ParseInt(lengthHeader, 10, 64)
	if err != nil || size < 0 {
		return 0, false, ErrInvalidUploadLength
	}
	return size, false, nil
}

// lockUpload acquires the per-id advisory lock, bounded by
// Config.AcquireLockTimeout.
func (handler *UnroutedHandler) lockUpload(c *httpContext, id string) (*filestore.Lock, error) {
	lock, err := handler.store.NewLock(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(c, handler.config.AcquireLockTimeout)
	defer cancel()

	if err := lock.Acquire(ctx); err != nil {
		return nil, err
	}

	return lock, nil
}

// extractIDFromPath pulls the upload id out of a request path of the form
// /<prefix>/<id>.
func extractIDFromPath(path, prefix string) (string, error) {
	path = strings.Trim(path, "/")
	_, id, ok := strings.Cut(path, prefix+"/")
	if !ok || id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

func wrapStoreErr(err error) error {
	if errors.Is(err, filestore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
