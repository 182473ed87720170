package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/geowander/citytour/internal/citytour"
)

type fakeFetcher struct {
	records []any
	err     error
	calls   int
}

func (f *fakeFetcher) FetchLocations(ctx context.Context, session ArtifactSession) ([]any, error) {
	f.calls++
	return f.records, f.err
}

type fakeDataset struct {
	rows  []map[string]any
	err   error
	calls int
}

func (f *fakeDataset) ReadAll(ctx context.Context, name string) ([]map[string]any, error) {
	f.calls++
	return f.rows, f.err
}

type fakeOverlay struct {
	records []any
	err     error
}

func (f *fakeOverlay) ReadAll(ctx context.Context) ([]any, error) {
	return f.records, f.err
}

type fakeReports struct {
	saved []LoadReport
	err   error
}

func (f *fakeReports) SaveLoadReport(ctx context.Context, report LoadReport) error {
	f.saved = append(f.saved, report)
	return f.err
}

var completeSession = ArtifactSession{
	Token:      "tok",
	ArtifactID: "42",
	BaseURL:    "https://builder.example.com",
}

func artifactRecord(title string) map[string]any {
	return map[string]any{"title": title, "coordinates": []any{1.0, 2.0}}
}

func TestLoaderArtifactWins(t *testing.T) {
	fetcher := &fakeFetcher{records: []any{artifactRecord("Remote")}}
	ds := &fakeDataset{rows: []map[string]any{{"city": "ShouldNotLoad", "coordinates": []any{1.0, 2.0}}}}

	l := &Loader{Artifact: fetcher, Dataset: ds}
	tour, report := l.Load(context.Background(), completeSession)

	if report.Source != SourceArtifact {
		t.Fatalf("source = %q, want artifact", report.Source)
	}
	if ds.calls != 0 {
		t.Errorf("dataset was consulted %d times, want short-circuit", ds.calls)
	}
	if tour.Len() != 2 || tour.Landmarks[0].ID != citytour.IntroID || tour.Landmarks[1].Name != "Remote" {
		t.Errorf("tour = %+v, want [intro Remote]", tour.Landmarks)
	}
}

func TestLoaderSkipsArtifactWithoutSession(t *testing.T) {
	fetcher := &fakeFetcher{records: []any{artifactRecord("Remote")}}
	ds := &fakeDataset{rows: []map[string]any{{"city": "Dataset", "coordinates": []any{1.0, 2.0}}}}

	l := &Loader{Artifact: fetcher, Dataset: ds}
	_, report := l.Load(context.Background(), ArtifactSession{Token: "tok"})

	if fetcher.calls != 0 {
		t.Errorf("artifact fetched despite incomplete session")
	}
	if report.Source != SourceDataset {
		t.Errorf("source = %q, want dataset", report.Source)
	}
}

func TestLoaderFallsThroughOnArtifactError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	ds := &fakeDataset{rows: []map[string]any{{"city": "Dataset", "coordinates": []any{1.0, 2.0}}}}

	l := &Loader{Artifact: fetcher, Dataset: ds}
	tour, report := l.Load(context.Background(), completeSession)

	if report.Source != SourceDataset {
		t.Fatalf("source = %q, want dataset", report.Source)
	}
	if tour.Landmarks[1].Name != "Dataset" {
		t.Errorf("tour = %+v, want the dataset landmark", tour.Landmarks)
	}

	found := false
	for _, d := range report.Diagnostics {
		if d.Kind == SourceUnavailable && d.Source == "artifact" {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want artifact SourceUnavailable", report.Diagnostics)
	}
}

func TestLoaderClassifiesMalformedPayload(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: not an array", ErrMalformedPayload)}

	l := &Loader{Artifact: fetcher}
	_, report := l.Load(context.Background(), completeSession)

	found := false
	for _, d := range report.Diagnostics {
		if d.Kind == MalformedPayload && d.Source == "artifact" {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want artifact MalformedPayload", report.Diagnostics)
	}
}

func TestLoaderBuiltinWorstCase(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("down")}
	ds := &fakeDataset{err: errors.New("down too")}
	ov := &fakeOverlay{err: errors.New("corrupt")}

	l := &Loader{Artifact: fetcher, Dataset: ds, Overlay: ov}
	tour, report := l.Load(context.Background(), completeSession)

	if report.Source != SourceBuiltin {
		t.Fatalf("source = %q, want builtin", report.Source)
	}
	if tour.Len() != len(BuiltinLandmarks())+1 {
		t.Errorf("tour length = %d, want intro plus builtins", tour.Len())
	}
	if tour.Landmarks[0].ID != citytour.IntroID {
		t.Errorf("first landmark = %+v, want the intro", tour.Landmarks[0])
	}

	kinds := map[Kind]int{}
	for _, d := range report.Diagnostics {
		kinds[d.Kind]++
	}
	if kinds[SourceUnavailable] != 2 || kinds[PersistenceCorrupt] != 1 {
		t.Errorf("diagnostic kinds = %v, want 2 unavailable and 1 corrupt", kinds)
	}
}

func TestLoaderEmptySourceFallsThrough(t *testing.T) {
	fetcher := &fakeFetcher{records: []any{}}
	ds := &fakeDataset{rows: []map[string]any{}}

	l := &Loader{Artifact: fetcher, Dataset: ds}
	_, report := l.Load(context.Background(), completeSession)

	if report.Source != SourceBuiltin {
		t.Errorf("source = %q, want builtin when both sources are empty", report.Source)
	}
}

func TestLoaderSourceWinsOnRawRecords(t *testing.T) {
	// The artifact returned records, so it wins provenance even though
	// every record fails coercion. No silent fallback to the dataset.
	fetcher := &fakeFetcher{records: []any{map[string]any{"no": "title"}}}
	ds := &fakeDataset{rows: []map[string]any{{"city": "Dataset", "coordinates": []any{1.0, 2.0}}}}

	l := &Loader{Artifact: fetcher, Dataset: ds}
	tour, report := l.Load(context.Background(), completeSession)

	if report.Source != SourceArtifact {
		t.Fatalf("source = %q, want artifact", report.Source)
	}
	if report.BaseCount != 0 {
		t.Errorf("baseCount = %d, want 0", report.BaseCount)
	}
	if tour.Len() != 1 {
		t.Errorf("tour = %+v, want intro only", tour.Landmarks)
	}
	if ds.calls != 0 {
		t.Errorf("dataset consulted after artifact won")
	}
}

func TestLoaderAppendsOverlay(t *testing.T) {
	ov := &fakeOverlay{records: []any{
		map[string]any{"id": float64(9000), "name": "Custom", "coords": []any{5.0, 6.0}},
	}}

	l := &Loader{Overlay: ov}
	tour, report := l.Load(context.Background(), ArtifactSession{})

	if report.Source != SourceBuiltin {
		t.Fatalf("source = %q, want builtin", report.Source)
	}
	if report.OverlayCount != 1 {
		t.Errorf("overlayCount = %d, want 1", report.OverlayCount)
	}
	last := tour.Landmarks[tour.Len()-1]
	if last.Name != "Custom" || last.ID != 9000 {
		t.Errorf("last landmark = %+v, want the overlay entry", last)
	}
}

func TestLoaderPersistsReport(t *testing.T) {
	reports := &fakeReports{}

	l := &Loader{Reports: reports}
	_, report := l.Load(context.Background(), ArtifactSession{})

	if len(reports.saved) != 1 {
		t.Fatalf("saved %d reports, want 1", len(reports.saved))
	}
	if reports.saved[0].Source != report.Source {
		t.Errorf("persisted source %q != returned source %q", reports.saved[0].Source, report.Source)
	}
}

func TestLoaderSurvivesReportFailure(t *testing.T) {
	reports := &fakeReports{err: errors.New("disk full")}

	l := &Loader{Reports: reports}
	tour, _ := l.Load(context.Background(), ArtifactSession{})
	if tour.Len() == 0 {
		t.Errorf("load failed because report persistence failed")
	}
}

func TestReassignDuplicateIDs(t *testing.T) {
	landmarks := []citytour.Landmark{
		{ID: 0}, {ID: 1}, {ID: 1}, {ID: 2},
	}

	reassignDuplicateIDs(landmarks)

	seen := map[int64]bool{}
	for _, lm := range landmarks {
		if seen[lm.ID] {
			t.Fatalf("duplicate id %d after reassignment: %+v", lm.ID, landmarks)
		}
		seen[lm.ID] = true
	}
	if landmarks[0].ID != 0 || landmarks[1].ID != 1 {
		t.Errorf("earlier entries must keep their ids: %+v", landmarks)
	}
}

func TestBuiltinLandmarksFresh(t *testing.T) {
	a := BuiltinLandmarks()
	b := BuiltinLandmarks()
	a[0].Name = "mutated"
	if b[0].Name == "mutated" {
		t.Errorf("BuiltinLandmarks shares state between calls")
	}
}
