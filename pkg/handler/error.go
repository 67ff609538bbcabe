package handler

import "net/http"

// Error represents an error with the intent to be sent in the HTTP response
// to the client. It carries both a machine-readable code and the HTTP
// response that should be produced for it.
type Error struct {
	ErrorCode    string
	Message      string
	HTTPResponse HTTPResponse
}

func (e Error) Error() string {
	return e.ErrorCode + ": " + e.Message
}

// NewError constructs an Error whose HTTPResponse has the given status code
// and a short plain-text body.
func NewError(code string, message string, statusCode int) Error {
	return Error{
		ErrorCode: code,
		Message:   message,
		HTTPResponse: HTTPResponse{
			StatusCode: statusCode,
			Body:       code + ": " + message + "\n",
			Header: HTTPHeader{
				"Content-Type": "text/plain; charset=utf-8",
			},
		},
	}
}

// The error kinds named in the error handling design. Request-validation
// errors specific to the verb handlers live in unrouted_handler.go, and any
// other error is sent as ERR_INTERNAL_SERVER_ERROR (500) by sendError.
var (
	ErrNotFound             = NewError("ERR_NOT_FOUND", "upload not found", http.StatusNotFound)
	ErrConflictOffset       = NewError("ERR_MISMATCH_OFFSET", "Upload-Offset does not match the upload's offset", http.StatusConflict)
	ErrSizeExceeded         = NewError("ERR_SIZE_EXCEEDED", "this upload would exceed max_size", http.StatusRequestEntityTooLarge)
	ErrInvalidDeferLength   = NewError("ERR_INVALID_DEFER_LENGTH", "Upload-Defer-Length must be 1 if present", http.StatusBadRequest)
	ErrInvalidOffset        = NewError("ERR_INVALID_OFFSET", "Upload-Offset must be a non-negative integer", http.StatusBadRequest)
	ErrInvalidContentType   = NewError("ERR_INVALID_CONTENT_TYPE", "Content-Type must be application/offset+octet-stream", http.StatusBadRequest)
	ErrMissingMetadataField = NewError("ERR_MISSING_METADATA", "Upload-Metadata is missing a required field", http.StatusBadRequest)
)
