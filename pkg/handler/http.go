package handler

import (
	"net/http"
	"strconv"
)

// HTTPHeader is a small ordered-enough map of header names to values used to
// build up a response before it is written.
type HTTPHeader map[string]string

// HTTPResponse describes an outgoing HTTP response before it is committed to
// the wire, so that a handler can keep adjusting it (e.g. after streaming a
// chunk) until it is ready to send.
type HTTPResponse struct {
	StatusCode int
	Body       string
	Header     HTTPHeader
}

// writeTo commits resp to w.
func (resp HTTPResponse) writeTo(w http.ResponseWriter) {
	headers := w.Header()
	for key, value := range resp.Header {
		headers.Set(key, value)
	}
	if len(resp.Body) > 0 {
		headers.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		w.Write([]byte(resp.Body))
	}
}

// MergeWith returns a copy of resp with any non-zero fields from other
// overwriting resp's fields. Header entries are merged key by key.
func (resp HTTPResponse) MergeWith(other HTTPResponse) HTTPResponse {
	merged := resp
	if other.StatusCode != 0 {
		merged.StatusCode = other.StatusCode
	}
	if other.Body != "" {
		merged.Body = other.Body
	}
	if len(other.Header) > 0 {
		header := make(HTTPHeader, len(merged.Header)+len(other.Header))
		for k, v := range merged.Header {
			header[k] = v
		}
		for k, v := range other.Header {
			header[k] = v
		}
		merged.Header = header
	}
	return merged
}
