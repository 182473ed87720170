package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geowander/citytour/internal/citytour"
)

// ErrMalformedPayload tags parse and shape failures so the loader can
// classify them apart from transport failures. Sources wrap it with
// fmt.Errorf and %w.
var ErrMalformedPayload = errors.New("malformed payload")

// Base tour provenance recorded in LoadReport.Source.
const (
	SourceArtifact = "artifact"
	SourceDataset  = "dataset"
	SourceBuiltin  = "builtin"
)

// ArtifactSession carries the hosting-page parameters required to
// attempt remote-artifact mode. BaseURL is stored with any trailing
// slash already stripped.
type ArtifactSession struct {
	Token      string `json:"-"`
	ArtifactID string `json:"artifactId"`
	BaseURL    string `json:"baseUrl"`
}

// Complete reports whether all three parameters are present.
func (s ArtifactSession) Complete() bool {
	return s.Token != "" && s.ArtifactID != "" && s.BaseURL != ""
}

// ArtifactFetcher fetches the raw location records published for an
// artifact session.
type ArtifactFetcher interface {
	FetchLocations(ctx context.Context, session ArtifactSession) ([]any, error)
}

// DatasetSource reads every row of a named dataset.
type DatasetSource interface {
	ReadAll(ctx context.Context, name string) ([]map[string]any, error)
}

// OverlayReader reads the persisted custom-landmark records. Any error
// is treated by the loader as an empty overlay.
type OverlayReader interface {
	ReadAll(ctx context.Context) ([]any, error)
}

// ReportStore persists one LoadReport per load.
type ReportStore interface {
	SaveLoadReport(ctx context.Context, report LoadReport) error
}

// LoadReport summarizes one loader run: which source produced the base
// tour, how many landmarks each stage contributed, and every
// diagnostic emitted along the way.
type LoadReport struct {
	Source       string       `json:"source"`
	BaseCount    int          `json:"baseCount"`
	OverlayCount int          `json:"overlayCount"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty"`
	LoadedAt     time.Time    `json:"loadedAt"`
	ElapsedMS    int64        `json:"elapsedMs"`
}

// Loader assembles the active Tour from its sources in fixed priority
// order: remote artifact, then dataset, then the built-in fallback,
// with the persisted overlay appended to whichever base won. The
// fallback chain is strictly sequential; no two source attempts run
// concurrently. Load never fails outward: every error downgrades to a
// diagnostic and the next fallback, so the worst case is the intro
// entry plus the built-in landmarks.
type Loader struct {
	Artifact    ArtifactFetcher
	Dataset     DatasetSource
	DatasetName string
	Overlay     OverlayReader
	Reports     ReportStore
	Sink        Sink
	Logger      *slog.Logger
	Now         func() time.Time
}

// Load builds the tour for one session. The report is returned as well
// as persisted (when a ReportStore is configured) so callers can show
// provenance without a second read.
func (l *Loader) Load(ctx context.Context, session ArtifactSession) (citytour.Tour, LoadReport) {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	rec := &Recorder{}
	sink := Sink(teeSink{rec, l.Sink})

	base, source := l.loadBase(ctx, session, sink)
	landmarks := append([]citytour.Landmark{IntroLandmark()}, base...)

	overlayCount := 0
	if l.Overlay != nil {
		records, err := l.Overlay.ReadAll(ctx)
		switch {
		case err != nil:
			emit(sink, Diagnostic{
				Kind:   PersistenceCorrupt,
				Source: "overlay",
				Detail: fmt.Sprintf("reading overlay: %v", err),
			})
		case len(records) > 0:
			appended := CoerceOverlay(records, sink)
			landmarks = append(landmarks, appended...)
			overlayCount = len(appended)
		}
	}

	reassignDuplicateIDs(landmarks)

	report := LoadReport{
		Source:       source,
		BaseCount:    len(base),
		OverlayCount: overlayCount,
		Diagnostics:  rec.Diagnostics(),
		LoadedAt:     start.UTC(),
		ElapsedMS:    now().Sub(start).Milliseconds(),
	}
	if l.Reports != nil {
		if err := l.Reports.SaveLoadReport(ctx, report); err != nil && l.Logger != nil {
			l.Logger.Warn("saving load report failed", "error", err)
		}
	}
	if l.Logger != nil {
		l.Logger.Info("tour loaded",
			"source", source,
			"landmarks", len(landmarks),
			"overlay", overlayCount,
			"diagnostics", len(report.Diagnostics),
			"elapsed_ms", report.ElapsedMS)
	}

	return citytour.Tour{Landmarks: landmarks}, report
}

// loadBase walks the source chain and returns the base landmarks plus
// their provenance. A source wins as soon as it yields at least one
// raw record, even if coercion later drops some of them; an empty or
// failing source falls through.
func (l *Loader) loadBase(ctx context.Context, session ArtifactSession, sink Sink) ([]citytour.Landmark, string) {
	if l.Artifact != nil && session.Complete() {
		records, err := l.Artifact.FetchLocations(ctx, session)
		switch {
		case err != nil:
			emit(sink, Diagnostic{
				Kind:   classify(err),
				Source: "artifact",
				Detail: fmt.Sprintf("fetching artifact %s: %v", session.ArtifactID, err),
			})
		case len(records) == 0:
			emit(sink, Diagnostic{
				Kind:   SourceUnavailable,
				Source: "artifact",
				Detail: "artifact payload contains no records",
			})
		default:
			return CoerceArtifact(records, sink), SourceArtifact
		}
	}

	if l.Dataset != nil {
		rows, err := l.Dataset.ReadAll(ctx, l.DatasetName)
		switch {
		case err != nil:
			emit(sink, Diagnostic{
				Kind:   classify(err),
				Source: "dataset",
				Detail: fmt.Sprintf("reading dataset %q: %v", l.DatasetName, err),
			})
		case len(rows) == 0:
			emit(sink, Diagnostic{
				Kind:   SourceUnavailable,
				Source: "dataset",
				Detail: fmt.Sprintf("dataset %q has no rows", l.DatasetName),
			})
		default:
			return CoerceDataset(rows, sink), SourceDataset
		}
	}

	return BuiltinLandmarks(), SourceBuiltin
}

func classify(err error) Kind {
	if errors.Is(err, ErrMalformedPayload) {
		return MalformedPayload
	}
	return SourceUnavailable
}

// reassignDuplicateIDs keeps tour-wide IDs distinct by bumping any ID
// already taken earlier in the slice. Positional base IDs and
// timestamp overlay IDs never collide in practice; this guards against
// hand-edited overlay slots.
func reassignDuplicateIDs(landmarks []citytour.Landmark) {
	used := make(map[int64]struct{}, len(landmarks))
	for i := range landmarks {
		id := landmarks[i].ID
		for {
			if _, taken := used[id]; !taken {
				break
			}
			id++
		}
		used[id] = struct{}{}
		landmarks[i].ID = id
	}
}
