package metrics

import (
	"log"
	"sync"
	"time"

	"brainbolt/internal/domain"
)

// TraceRecord is the per-request performance summary kept by History.
type TraceRecord struct {
	ID           string    `json:"id"`
	Task         string    `json:"task"`
	StartedAt    time.Time `json:"started_at"`
	IngestMS     float64   `json:"ingest_ms"`
	RetrievalMS  float64   `json:"retrieval_ms"`
	GenerationMS float64   `json:"generation_ms"`
	TotalMS      float64   `json:"total_ms"`
	OutputTokens int       `json:"output_tokens"`
	Throughput   float64   `json:"throughput"`
	Error        string    `json:"error,omitempty"`
}

// History keeps the most recent request traces in a bounded ring.
type History struct {
	mu      sync.RWMutex
	records []TraceRecord
	limit   int
	logger  *log.Logger
}

func NewHistory(limit int, logger *log.Logger) *History {
	if limit <= 0 {
		limit = 50
	}
	return &History{limit: limit, logger: logger}
}

// Begin starts a trace for one request. The trace is itself a Sink so it can
// be handed to the components serving that request.
func (h *History) Begin(id, task string) *Trace {
	return &Trace{history: h, rec: TraceRecord{ID: id, Task: task, StartedAt: time.Now()}}
}

// Latest returns the most recent finished trace.
func (h *History) Latest() (TraceRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return TraceRecord{}, false
	}
	return h.records[len(h.records)-1], true
}

// Records returns finished traces, oldest first.
func (h *History) Records() []TraceRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]TraceRecord, len(h.records))
	copy(out, h.records)
	return out
}

func (h *History) push(rec TraceRecord) {
	h.mu.Lock()
	h.records = append(h.records, rec)
	if len(h.records) > h.limit {
		h.records = h.records[len(h.records)-h.limit:]
	}
	h.mu.Unlock()
	if h.logger != nil {
		h.logger.Printf("trace %s task=%s total=%.1fms ingest=%.1fms retrieval=%.1fms generation=%.1fms throughput=%.2f tok/s",
			rec.ID, rec.Task, rec.TotalMS, rec.IngestMS, rec.RetrievalMS, rec.GenerationMS, rec.Throughput)
	}
}

// Trace accumulates the observations of one request.
type Trace struct {
	mu      sync.Mutex
	history *History
	rec     TraceRecord
	done    bool
}

func (t *Trace) ObserveEmbedding(domain.Kind, time.Duration, error) {}

func (t *Trace) ObserveIngest(_ domain.IngestResult, d time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rec.IngestMS += ms(d)
	t.noteErr(err)
}

func (t *Trace) ObserveRetrieval(d time.Duration, _ int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rec.RetrievalMS += ms(d)
	t.noteErr(err)
}

func (t *Trace) ObserveGeneration(_ string, d time.Duration, outputTokens int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rec.GenerationMS += ms(d)
	t.rec.OutputTokens += outputTokens
	if t.rec.GenerationMS > 0 {
		t.rec.Throughput = float64(t.rec.OutputTokens) / (t.rec.GenerationMS / 1000)
	}
	t.noteErr(err)
}

// End closes the trace and records it. Subsequent calls are no-ops.
func (t *Trace) End() TraceRecord {
	t.mu.Lock()
	if t.done {
		rec := t.rec
		t.mu.Unlock()
		return rec
	}
	t.done = true
	t.rec.TotalMS = ms(time.Since(t.rec.StartedAt))
	rec := t.rec
	t.mu.Unlock()
	t.history.push(rec)
	return rec
}

// Fail records err on the trace unless an earlier error was recorded.
func (t *Trace) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.noteErr(err)
}

func (t *Trace) noteErr(err error) {
	if err != nil && t.rec.Error == "" {
		t.rec.Error = err.Error()
	}
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
