package handler

import (
	"sync"
	"sync/atomic"
)

// Metrics provides counters about handler usage. They are updated
// atomically and may be read from any goroutine. The RequestsTotal map is
// never modified after construction; ErrorsTotal adds a counter per new
// error code under its own lock.
type Metrics struct {
	// RequestsTotal counts incoming requests per method.
	RequestsTotal map[string]*uint64
	// ErrorsTotal counts returned errors by ErrorCode.
	ErrorsTotal *errorsTotalMap
	// BytesReceived counts payload bytes written by PATCH requests and by
	// creation-with-upload POST requests.
	BytesReceived *uint64
	// UploadsCreated counts uploads created via POST.
	UploadsCreated *uint64
	// UploadsFinished counts uploads whose offset reached their size.
	UploadsFinished *uint64
	// UploadsTerminated counts uploads removed via DELETE.
	UploadsTerminated *uint64
	// UploadsExpired counts uploads removed by the expiration sweeper.
	UploadsExpired *uint64
}

func newMetrics() Metrics {
	return Metrics{
		RequestsTotal: map[string]*uint64{
			"GET":     new(uint64),
			"HEAD":    new(uint64),
			"POST":    new(uint64),
			"PATCH":   new(uint64),
			"DELETE":  new(uint64),
			"OPTIONS": new(uint64),
		},
		ErrorsTotal:       newErrorsTotalMap(),
		BytesReceived:     new(uint64),
		UploadsCreated:    new(uint64),
		UploadsFinished:   new(uint64),
		UploadsTerminated: new(uint64),
		UploadsExpired:    new(uint64),
	}
}

func (m Metrics) incRequestsTotal(method string) {
	if ptr, ok := m.RequestsTotal[method]; ok {
		atomic.AddUint64(ptr, 1)
	}
}

func (m Metrics) incErrorsTotal(err Error) {
	ptr := m.ErrorsTotal.retrievePointerFor(err.ErrorCode)
	atomic.AddUint64(ptr, 1)
}

func (m Metrics) incBytesReceived(delta uint64) {
	atomic.AddUint64(m.BytesReceived, delta)
}

func (m Metrics) incUploadsCreated() {
	atomic.AddUint64(m.UploadsCreated, 1)
}

func (m Metrics) incUploadsFinished() {
	atomic.AddUint64(m.UploadsFinished, 1)
}

func (m Metrics) incUploadsTerminated() {
	atomic.AddUint64(m.UploadsTerminated, 1)
}

func (m Metrics) incUploadsExpired() {
	atomic.AddUint64(m.UploadsExpired, 1)
}

// IncUploadsExpired lets an external component (the expiration sweeper,
// which lives in its own package to stay store-agnostic) report a deletion
// against the same counters a request-driven DELETE would update.
func (m Metrics) IncUploadsExpired() {
	m.incUploadsExpired()
}

// errorsTotalMap lazily allocates one counter per distinct error code, since
// the set of codes a handler can produce is small and fixed but unknown at
// construction time.
type errorsTotalMap struct {
	sync.RWMutex
	m map[string]*uint64
}

func newErrorsTotalMap() *errorsTotalMap {
	return &errorsTotalMap{
		m: make(map[string]*uint64),
	}
}

func (e *errorsTotalMap) retrievePointerFor(code string) *uint64 {
	e.RLock()
	ptr, ok := e.m[code]
	e.RUnlock()
	if ok {
		return ptr
	}

	e.Lock()
	defer e.Unlock()
	if ptr, ok := e.m[code]; ok {
		return ptr
	}
	ptr = new(uint64)
	e.m[code] = ptr
	return ptr
}

// Each calls fn once per error code seen so far, with its current count.
func (e *errorsTotalMap) Each(fn func(code string, count uint64)) {
	e.RLock()
	defer e.RUnlock()
	for code, ptr := range e.m {
		fn(code, atomic.LoadUint64(ptr))
	}
}
