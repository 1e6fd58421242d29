package server

import (
	"sync"
	"time"

	"github.com/straja-ai/fakescan/internal/analyzer"
	"github.com/straja-ai/fakescan/internal/audio"
)

// resultStore keeps a short-lived summary of recent analyses, keyed by
// request id. Media payloads are never stored.
type resultStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[string]resultEntry
}

type resultEntry struct {
	Status     string    `json:"status"` // pending | completed | failed
	Filename   string    `json:"filename,omitempty"`
	FileType   string    `json:"file_type,omitempty"`
	Label      string    `json:"label,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Frames     int       `json:"total_frames_analyzed,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
	expiresAt  time.Time
}

func newResultStore(ttl time.Duration) *resultStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &resultStore{
		ttl:  ttl,
		data: make(map[string]resultEntry),
	}
}

func (s *resultStore) Start(requestID, filename string) {
	s.put(requestID, resultEntry{Status: "pending", Filename: filename})
}

func (s *resultStore) Complete(requestID string, res *analyzer.Result) {
	if res == nil {
		return
	}
	e := s.existing(requestID)
	e.Status = "completed"
	e.FileType = string(res.FileType)
	e.Label = string(res.Label())
	e.Confidence = res.Confidence()
	if res.Video != nil {
		e.Frames = res.Video.TotalFramesAnalyzed
	}
	s.put(requestID, e)
}

func (s *resultStore) CompleteAudio(requestID string, v *audio.Verdict) {
	if v == nil {
		return
	}
	e := s.existing(requestID)
	e.Status = "completed"
	e.FileType = "audio"
	e.Label = string(v.Verdict)
	e.Confidence = v.Confidence
	s.put(requestID, e)
}

func (s *resultStore) Fail(requestID, detail string) {
	e := s.existing(requestID)
	e.Status = "failed"
	e.Detail = detail
	s.put(requestID, e)
}

func (s *resultStore) Get(requestID string) (resultEntry, bool) {
	if s == nil || requestID == "" {
		return resultEntry{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	entry, ok := s.data[requestID]
	return entry, ok
}

func (s *resultStore) existing(requestID string) resultEntry {
	e, _ := s.Get(requestID)
	return e
}

func (s *resultStore) put(requestID string, e resultEntry) {
	if s == nil || requestID == "" {
		return
	}
	now := time.Now()
	e.UpdatedAt = now.UTC()
	e.expiresAt = now.Add(s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	s.data[requestID] = e
}

func (s *resultStore) cleanupLocked() {
	now := time.Now()
	for k, v := range s.data {
		if now.After(v.expiresAt) {
			delete(s.data, k)
		}
	}
}
