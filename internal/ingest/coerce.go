package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geowander/citytour/internal/citytour"
)

// ErrEmptyBatch is returned by CoerceUpload when zero records survive
// coercion. It is the only batch-level rejection in the pipeline; every
// other failure is per record.
var ErrEmptyBatch = errors.New("no usable landmark records in upload")

// CoerceArtifact converts builder-tool location records fetched from
// the remote artifact API. IDs are 1-based positions in the payload.
// Records without a usable title or coordinates are dropped with a
// diagnostic; the batch never fails.
func CoerceArtifact(records []any, sink Sink) []citytour.Landmark {
	var out []citytour.Landmark
	for i, rec := range records {
		m, ok := NormalizeKeys(rec).(map[string]any)
		if !ok {
			emit(sink, Diagnostic{
				Kind:   RecordInvalid,
				Source: "artifact",
				Detail: fmt.Sprintf("record %d is %T, want an object", i, rec),
				Raw:    rec,
			})
			continue
		}
		lm, err := coerceArtifactRecord(m, int64(i+1))
		if err != nil {
			emit(sink, Diagnostic{
				Kind:       RecordInvalid,
				Source:     "artifact",
				Detail:     fmt.Sprintf("record %d: %v", i, err),
				Raw:        rec,
				Normalized: m,
			})
			continue
		}
		out = append(out, lm)
	}
	return out
}

func coerceArtifactRecord(m map[string]any, id int64) (citytour.Landmark, error) {
	var zero citytour.Landmark
	title := stringField(m, "title")
	if title == "" {
		return zero, errors.New("missing title")
	}
	coords, err := coordsOf(m["coordinates"])
	if err != nil {
		return zero, err
	}

	lm := citytour.Landmark{
		ID:              id,
		Name:            title,
		Title:           title,
		Description:     stringField(m, "description"),
		ImageURL:        stringField(m, "image"),
		Coords:          coords,
		IconType:        citytour.IconMonument,
		VideoURL:        stringField(m, "video"),
		AudioURL:        stringField(m, "audio"),
		Quiz:            ParseBuilderQuiz(m["questions"]),
		BlockNavigation: boolField(m, blockFieldNames...),
	}
	if country := stringField(m, "country"); country != "" {
		lm.Aliases = []string{country}
	}
	if lm.ImageURL == "" {
		lm.ImageURL = citytour.PlaceholderImageURL
	}
	return lm, nil
}

// CoerceDataset converts rows from the external dataset API. A row
// whose coordinates are not a two-element array of finite numbers is
// rejected with a diagnostic, never aborting the batch.
func CoerceDataset(rows []map[string]any, sink Sink) []citytour.Landmark {
	var out []citytour.Landmark
	for i, row := range rows {
		m, ok := NormalizeKeys(row).(map[string]any)
		if !ok {
			continue
		}
		lm, err := coerceDatasetRow(m, int64(i+1), sink)
		if err != nil {
			emit(sink, Diagnostic{
				Kind:       RecordInvalid,
				Source:     "dataset",
				Detail:     fmt.Sprintf("row %d: %v", i, err),
				Raw:        row,
				Normalized: m,
			})
			continue
		}
		out = append(out, lm)
	}
	return out
}

func coerceDatasetRow(m map[string]any, id int64, sink Sink) (citytour.Landmark, error) {
	var zero citytour.Landmark
	city := stringField(m, "city")
	if city == "" {
		return zero, errors.New("missing city")
	}
	rawCoords, ok := m["coordinates"]
	if !ok {
		return zero, errors.New("coordinates are missing")
	}
	coords, err := coordsFromArray(rawCoords)
	if err != nil {
		return zero, err
	}

	lm := citytour.Landmark{
		ID:              id,
		Name:            city,
		Title:           strings.ToUpper(city),
		Description:     stringField(m, "description"),
		ImageURL:        stringField(m, "image"),
		Coords:          coords,
		IconType:        iconTypeOf(m["iconType"]),
		VideoURL:        stringField(m, "video"),
		AudioURL:        stringField(m, "audio"),
		BlockNavigation: boolField(m, blockFieldNames...),
	}
	if rawQuiz, ok := fieldValue(m, quizFieldNames); ok {
		lm.Quiz = ParseLegacyQuiz(rawQuiz, sink)
	}
	if lm.ImageURL == "" {
		lm.ImageURL = citytour.PlaceholderImageURL
	}
	return lm, nil
}

// CoerceOverlay re-validates previously persisted custom landmarks.
// The rows were written by this service, but the slot is shared
// browser-grade storage, so nothing is trusted: names and coordinates
// are re-checked, icon types clamped to the enum, and non-numeric IDs
// replaced with fresh timestamp IDs.
func CoerceOverlay(records []any, sink Sink) []citytour.Landmark {
	var out []citytour.Landmark
	for i, rec := range records {
		m, ok := NormalizeKeys(rec).(map[string]any)
		if !ok {
			emit(sink, Diagnostic{
				Kind:   RecordInvalid,
				Source: "overlay",
				Detail: fmt.Sprintf("record %d is %T, want an object", i, rec),
				Raw:    rec,
			})
			continue
		}
		lm, err := coerceOverlayRecord(m, sink)
		if err != nil {
			emit(sink, Diagnostic{
				Kind:       RecordInvalid,
				Source:     "overlay",
				Detail:     fmt.Sprintf("record %d: %v", i, err),
				Raw:        rec,
				Normalized: m,
			})
			continue
		}
		out = append(out, lm)
	}
	return out
}

func coerceOverlayRecord(m map[string]any, sink Sink) (citytour.Landmark, error) {
	var zero citytour.Landmark
	name := stringField(m, "name")
	if name == "" {
		return zero, errors.New("missing name")
	}
	rawCoords, ok := fieldValue(m, coordFieldNames)
	if !ok {
		return zero, errors.New("coordinates are missing")
	}
	coords, err := coordsOf(rawCoords)
	if err != nil {
		return zero, err
	}

	id, ok := numericID(m["id"])
	if !ok {
		id = MintID()
	}

	title := stringField(m, "title")
	if title == "" {
		title = strings.ToUpper(name)
	}

	lm := citytour.Landmark{
		ID:              id,
		Name:            name,
		Title:           title,
		Description:     stringField(m, "description"),
		Aliases:         stringsField(m, "aliases"),
		ImageURL:        stringField(m, imageFieldNames...),
		Coords:          coords,
		IconType:        iconTypeOf(m["iconType"]),
		VideoURL:        stringField(m, videoFieldNames...),
		AudioURL:        stringField(m, audioFieldNames...),
		Quiz:            ParseLegacyQuiz(m["quiz"], sink),
		BlockNavigation: boolField(m, blockFieldNames...),
	}
	if lm.ImageURL == "" {
		lm.ImageURL = citytour.PlaceholderImageURL
	}
	return lm, nil
}

// CoerceUpload converts user-uploaded landmark records. It is the most
// permissive coercer: several spellings are accepted for each field,
// and the quiz is resolved by trying the builder shape before the
// legacy shape. Records without a usable name or coordinates are
// dropped with a diagnostic. The batch as a whole fails only when zero
// records survive, in which case ErrEmptyBatch is returned and the
// caller must leave the current Tour untouched.
func CoerceUpload(records []any, sink Sink) ([]citytour.Landmark, error) {
	var out []citytour.Landmark
	for i, rec := range records {
		m, ok := NormalizeKeys(rec).(map[string]any)
		if !ok {
			emit(sink, Diagnostic{
				Kind:   RecordInvalid,
				Source: "upload",
				Detail: fmt.Sprintf("record %d is %T, want an object", i, rec),
				Raw:    rec,
			})
			continue
		}
		lm, err := coerceUploadRecord(m, int64(len(out)+1), sink)
		if err != nil {
			emit(sink, Diagnostic{
				Kind:       RecordInvalid,
				Source:     "upload",
				Detail:     fmt.Sprintf("record %d: %v", i, err),
				Raw:        rec,
				Normalized: m,
			})
			continue
		}
		out = append(out, lm)
	}
	if len(out) == 0 {
		emit(sink, Diagnostic{
			Kind:   BatchEmpty,
			Source: "upload",
			Detail: fmt.Sprintf("all %d uploaded records were unusable", len(records)),
		})
		return nil, ErrEmptyBatch
	}
	return out, nil
}

func coerceUploadRecord(m map[string]any, id int64, sink Sink) (citytour.Landmark, error) {
	var zero citytour.Landmark
	name := stringField(m, nameFieldNames...)
	if name == "" {
		return zero, errors.New("missing name (accepted keys: name, city, title)")
	}
	rawCoords, ok := fieldValue(m, coordFieldNames)
	if !ok {
		return zero, errors.New("coordinates are missing (accepted keys: coords, coordinates)")
	}
	coords, err := coordsOf(rawCoords)
	if err != nil {
		return zero, err
	}

	lm := citytour.Landmark{
		ID:              id,
		Name:            name,
		Title:           strings.ToUpper(name),
		Description:     stringField(m, "description"),
		Aliases:         stringsField(m, "aliases"),
		ImageURL:        stringField(m, imageFieldNames...),
		Coords:          coords,
		IconType:        iconTypeOf(m["iconType"]),
		VideoURL:        stringField(m, videoFieldNames...),
		AudioURL:        stringField(m, audioFieldNames...),
		BlockNavigation: boolField(m, blockFieldNames...),
	}

	// Builder shape first (a "questions" field), then the legacy shape
	// under "quiz".
	lm.Quiz = ParseBuilderQuiz(m["questions"])
	if lm.Quiz == nil {
		lm.Quiz = ParseLegacyQuiz(m["quiz"], sink)
	}

	if lm.ImageURL == "" {
		lm.ImageURL = citytour.PlaceholderImageURL
	}
	return lm, nil
}

// MintID mints a wall-clock landmark ID for ad-hoc entries. Callers
// that hold a Tour should bump on collision; rapid succession within
// the same millisecond is the known weak spot of this scheme.
func MintID() int64 {
	return time.Now().UnixMilli()
}
