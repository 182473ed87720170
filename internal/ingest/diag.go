package ingest

import (
	"log/slog"
	"sync"
)

// Kind classifies a pipeline diagnostic.
type Kind string

const (
	// SourceUnavailable marks a network or transport failure; the loader
	// falls through to the next source.
	SourceUnavailable Kind = "source_unavailable"
	// MalformedPayload marks a JSON parse failure or a wrong top-level
	// shape; same fall-through policy as SourceUnavailable.
	MalformedPayload Kind = "malformed_payload"
	// RecordInvalid marks a single landmark or quiz failing structural
	// validation; the record is dropped and the batch continues.
	RecordInvalid Kind = "record_invalid"
	// BatchEmpty marks an upload in which zero records survived
	// coercion; the only user-visible rejection in the pipeline.
	BatchEmpty Kind = "batch_empty"
	// PersistenceCorrupt marks an overlay slot holding unparsable data;
	// the overlay is treated as empty.
	PersistenceCorrupt Kind = "persistence_corrupt"
)

// Diagnostic is one structured warning emitted by the ingestion
// pipeline. Raw carries the offending input as received; Normalized
// carries the post-normalization form when it aids diagnosis.
type Diagnostic struct {
	Kind       Kind   `json:"kind"`
	Source     string `json:"source"`
	Detail     string `json:"detail"`
	Raw        any    `json:"raw,omitempty"`
	Normalized any    `json:"normalized,omitempty"`
}

// Sink receives pipeline diagnostics. Implementations must be safe for
// concurrent use. A nil Sink is valid everywhere and discards.
type Sink interface {
	Emit(d Diagnostic)
}

func emit(sink Sink, d Diagnostic) {
	if sink != nil {
		sink.Emit(d)
	}
}

// SlogSink logs every diagnostic at warning level.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(d Diagnostic) {
	if s.Logger == nil {
		return
	}
	attrs := []any{"kind", string(d.Kind), "source", d.Source, "detail", d.Detail}
	if d.Raw != nil {
		attrs = append(attrs, "raw", d.Raw)
	}
	if d.Normalized != nil {
		attrs = append(attrs, "normalized", d.Normalized)
	}
	s.Logger.Warn("ingest diagnostic", attrs...)
}

// Recorder collects diagnostics in memory so tests and load reports can
// inspect them.
type Recorder struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func (r *Recorder) Emit(d Diagnostic) {
	r.mu.Lock()
	r.diags = append(r.diags, d)
	r.mu.Unlock()
}

// Diagnostics returns a copy of everything recorded so far.
func (r *Recorder) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.diags))
	copy(out, r.diags)
	return out
}

// CountKind returns how many recorded diagnostics have the given kind.
func (r *Recorder) CountKind(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.diags {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// teeSink fans one diagnostic out to two sinks; the loader uses it to
// both record a report and forward to the configured sink.
type teeSink struct {
	a, b Sink
}

func (t teeSink) Emit(d Diagnostic) {
	emit(t.a, d)
	emit(t.b, d)
}
