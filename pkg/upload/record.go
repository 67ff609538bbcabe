// Package upload holds the in-memory view of a single upload: its metadata
// and byte-accounting fields. It performs no I/O; persistence, and the id
// that addresses a record, belong to package filestore.
package upload

import "time"

// Metadata is the client-supplied key/value map attached to an upload at
// creation time. Keys and values are opaque except for the two pairs the
// HEAD response must resolve: filename/name and filetype/type.
type Metadata map[string]string

// Filename resolves the "filename" key, falling back to "name". The second
// return value is false if neither key is present.
func (m Metadata) Filename() (string, bool) {
	if v, ok := m["filename"]; ok {
		return v, true
	}
	v, ok := m["name"]
	return v, ok
}

// Filetype resolves the "filetype" key, falling back to "type". The second
// return value is false if neither key is present.
func (m Metadata) Filetype() (string, bool) {
	if v, ok := m["filetype"]; ok {
		return v, true
	}
	v, ok := m["type"]
	return v, ok
}

// Record is the authoritative per-upload state described in the data model:
// it mirrors every field tracked for an upload except the id itself, which
// is instead carried by the store's filenames (<id> and <id>.info).
type Record struct {
	Metadata Metadata `json:"metadata"`

	// Size is the declared total byte length. It is meaningless while
	// DeferLength is true and has not yet been resolved by a PATCH.
	Size int64 `json:"size"`

	// Offset is the number of bytes durably written so far. It must always
	// equal the byte length of the payload file at rest.
	Offset int64 `json:"offset"`

	// UploadPart counts the number of chunks accepted across all PATCHes.
	UploadPart int64 `json:"upload_part"`

	// UploadChunkSize is the byte length of the most recently accepted chunk.
	UploadChunkSize int64 `json:"upload_chunk_size"`

	CreatedAt time.Time `json:"created_at"`

	// DeferLength is true iff Size was not declared at creation. It is
	// resolved to a concrete Size on the first PATCH that completes the
	// upload; see Handler's finalizeDeferredLength for the exact rule.
	DeferLength bool `json:"defer_length"`

	// Expires is the time after which the record becomes eligible for
	// deletion by the sweeper. The zero value means "not yet set", which
	// PATCH fills in on its first call for an upload.
	Expires time.Time `json:"expires,omitempty"`
}

// IsComplete reports whether every declared byte has been written. This is
// a literal offset/size comparison: a deferred-length record whose Size has
// been pinned to 0 (e.g. by finalizeDeferredLength pinning it to an
// asserted offset of 0) is complete precisely when Offset is also 0, which
// mirrors the completion check in pkg/handler rather than guarding on
// DeferLength itself.
func (r Record) IsComplete() bool {
	return r.Offset == r.Size
}

// Expired reports whether the record's retention window has passed as of
// now. A record with no Expires set is never considered expired.
func (r Record) Expired(now time.Time) bool {
	return !r.Expires.IsZero() && now.After(r.Expires)
}
