// Package filestore implements the upload store: the two-file-per-upload
// persistence layer described in the data model, addressed by a 32-hex-char
// upload id under a single files_dir.
//
//	<id>       the raw payload, grown by append-only writes
//	<id>.info  the JSON-serialized upload.Record, minus the id
//
// No cleanup is performed by the store itself; see package sweeper for the
// expiration/garbage-collection lifecycle.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/relaypost/tusgo/internal/uid"
	"github.com/relaypost/tusgo/pkg/upload"

	"encoding/json"
)

var defaultFilePerm = os.FileMode(0664)

// ErrNotFound is returned by Load, Read, and Append when the referenced
// upload id has no payload or sidecar on disk.
var ErrNotFound = errors.New("filestore: upload not found")

// Store is the upload store: all filesystem interaction for payloads and
// their sidecar metadata records lives here.
type Store struct {
	// Path is the files_dir. It is created on demand by New.
	Path string
}

// New creates a Store rooted at path, creating the directory if it does not
// already exist.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0775); err != nil {
		return nil, fmt.Errorf("filestore: cannot create files_dir %q: %w", path, err)
	}
	return &Store{Path: path}, nil
}

func (s *Store) binPath(id string) string {
	return filepath.Join(s.Path, id)
}

// BinPath returns the absolute path to id's payload file, for callers (such
// as the completion hook) that need to read the finished file directly.
func (s *Store) BinPath(id string) string {
	return s.binPath(id)
}

func (s *Store) infoPath(id string) string {
	return filepath.Join(s.Path, id+".info")
}

// Create writes a fresh, zero-length payload file and its sidecar for a new
// upload id.
func (s *Store) Create(id string, rec upload.Record) error {
	f, err := os.OpenFile(s.binPath(id), os.O_CREATE|os.O_WRONLY, defaultFilePerm)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("filestore: files_dir does not exist: %s", s.Path)
		}
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return s.Save(id, rec)
}

// Exists reports whether the payload file for id is present.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.binPath(id))
	return err == nil
}

// Load parses the sidecar for id, returning ErrNotFound if either it or the
// payload is missing, or an error wrapping ErrNotFound (match it with
// errors.Is) if the sidecar cannot be parsed.
func (s *Store) Load(id string) (upload.Record, error) {
	var rec upload.Record
	if !s.Exists(id) {
		return rec, ErrNotFound
	}
	data, err := os.ReadFile(s.infoPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rec, ErrNotFound
		}
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: corrupt sidecar for %s: %s", ErrNotFound, id, err)
	}
	return rec, nil
}

// Save atomically replaces the sidecar for id via write-to-temp-and-rename,
// so a crash mid-write cannot leave a torn record on disk.
func (s *Store) Save(id string, rec upload.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.infoPath(id), data, defaultFilePerm)
}

// Append opens the payload for id in append mode and writes chunk to it in
// full, returning the number of bytes written. Callers are responsible for
// enforcing max_size before calling Append; Append itself performs no size
// check and always writes what it is given.
func (s *Store) Append(id string, chunk []byte) (int64, error) {
	f, err := os.OpenFile(s.binPath(id), os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	defer f.Close()

	n, err := f.Write(chunk)
	return int64(n), err
}

// Read opens the payload for id for reading, e.g. to stream it back in a GET
// response.
func (s *Store) Read(id string) (io.ReadCloser, error) {
	f, err := os.Open(s.binPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes both the payload and sidecar for id. Missing files are not
// errors, so Delete is safe to call repeatedly.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.binPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Remove(s.infoPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	// Best-effort: a stale lock file from a crashed holder should not survive
	// the upload it was guarding.
	os.Remove(filepath.Join(s.Path, id+".lock"))
	return nil
}

// Enumerate lists the upload ids present in the store by scanning directory
// entries whose name has the shape of an id (32 hex characters). Entries of
// any other length, such as .info or .lock files, are ignored.
func (s *Store) Enumerate() ([]string, error) {
	entries, err := os.ReadDir(s.Path)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if uid.Valid(name) {
			ids = append(ids, name)
		}
	}
	return ids, nil
}

// Stat returns the payload file's os.FileInfo for id, used by the sweeper to
// avoid deleting an upload that a live PATCH is currently writing to.
func (s *Store) Stat(id string) (os.FileInfo, error) {
	info, err := os.Stat(s.binPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return info, nil
}
