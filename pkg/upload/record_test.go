package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetadataFilenameFallsBackToName(t *testing.T) {
	m := Metadata{"name": "a.txt"}
	v, ok := m.Filename()
	assert.True(t, ok)
	assert.Equal(t, "a.txt", v)

	m = Metadata{"filename": "b.txt", "name": "a.txt"}
	v, ok = m.Filename()
	assert.True(t, ok)
	assert.Equal(t, "b.txt", v)

	_, ok = Metadata{}.Filename()
	assert.False(t, ok)
}

func TestMetadataFiletypeFallsBackToType(t *testing.T) {
	m := Metadata{"type": "text/plain"}
	v, ok := m.Filetype()
	assert.True(t, ok)
	assert.Equal(t, "text/plain", v)

	_, ok = Metadata{}.Filetype()
	assert.False(t, ok)
}

func TestRecordIsComplete(t *testing.T) {
	assert.True(t, Record{Size: 0, Offset: 0}.IsComplete())
	assert.True(t, Record{Size: 10, Offset: 10}.IsComplete())
	assert.False(t, Record{Size: 10, Offset: 5}.IsComplete())
}

func TestRecordExpired(t *testing.T) {
	now := time.Now()

	assert.False(t, Record{}.Expired(now))
	assert.True(t, Record{Expires: now.Add(-time.Minute)}.Expired(now))
	assert.False(t, Record{Expires: now.Add(time.Minute)}.Expired(now))
}
