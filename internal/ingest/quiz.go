package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/geowander/citytour/internal/citytour"
)

// ParseBuilderQuiz converts builder-tool question records into the
// canonical quiz shape. Input is a list of {text, type, options?,
// answer} objects with already-normalized keys. short_answer entries
// are dropped (nothing downstream can render them); true_false derives
// correctness by case-insensitive match against answer;
// multiple_choice marks the option whose text matches answer exactly.
// Returns nil when nothing survives.
func ParseBuilderQuiz(raw any) []citytour.QuizQuestion {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	var out []citytour.QuizQuestion
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text, _ := m["text"].(string)
		answer, _ := m["answer"].(string)
		typ, _ := m["type"].(string)

		switch typ {
		case "true_false":
			out = append(out, citytour.QuizQuestion{
				Question: text,
				Type:     citytour.QuizTrueFalse,
				Options: []citytour.QuizOption{
					{Text: "True", IsCorrect: strings.EqualFold(answer, "True")},
					{Text: "False", IsCorrect: strings.EqualFold(answer, "False")},
				},
			})
		case "multiple_choice":
			opts, ok := m["options"].([]any)
			if !ok || len(opts) == 0 {
				continue
			}
			q := citytour.QuizQuestion{Question: text, Type: citytour.QuizMultipleChoice}
			for _, o := range opts {
				s, ok := o.(string)
				if !ok {
					continue
				}
				q.Options = append(q.Options, citytour.QuizOption{Text: s, IsCorrect: s == answer})
			}
			if len(q.Options) > 0 {
				out = append(out, q)
			}
		}
		// short_answer and unknown types fall through and are dropped.
	}
	return out
}

// ParseLegacyQuiz accepts a value that may already be a canonical quiz
// list, or a string holding a JSON array of one. Malformed JSON in the
// string form is a soft failure: a diagnostic, never an error to the
// caller. After key normalization the list is validated structurally;
// any failure discards the whole quiz for that landmark, since a
// partially valid quiz is worse to play than none. Returns nil for
// empty, absent, or invalid input.
func ParseLegacyQuiz(raw any, sink Sink) []citytour.QuizQuestion {
	if raw == nil {
		return nil
	}
	value := raw
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			emit(sink, Diagnostic{
				Kind:   MalformedPayload,
				Source: "quiz",
				Detail: "quiz string is not valid JSON: " + err.Error(),
				Raw:    s,
			})
			return nil
		}
		value = decoded
	}

	normalized := NormalizeKeys(value)
	list, ok := normalized.([]any)
	if !ok {
		emit(sink, Diagnostic{
			Kind:       RecordInvalid,
			Source:     "quiz",
			Detail:     fmt.Sprintf("quiz is %T, want an array", normalized),
			Raw:        raw,
			Normalized: normalized,
		})
		return nil
	}
	if len(list) == 0 {
		return nil
	}

	out := make([]citytour.QuizQuestion, 0, len(list))
	for i, item := range list {
		q, err := legacyQuestion(item)
		if err != nil {
			emit(sink, Diagnostic{
				Kind:       RecordInvalid,
				Source:     "quiz",
				Detail:     fmt.Sprintf("question %d: %v", i, err),
				Raw:        raw,
				Normalized: normalized,
			})
			return nil
		}
		out = append(out, q)
	}
	return out
}

func legacyQuestion(item any) (citytour.QuizQuestion, error) {
	var zero citytour.QuizQuestion
	m, ok := item.(map[string]any)
	if !ok {
		return zero, fmt.Errorf("entry is %T, want an object", item)
	}
	text, _ := m["question"].(string)
	if strings.TrimSpace(text) == "" {
		return zero, errors.New("question text is empty")
	}
	typ, _ := m["type"].(string)
	qt := citytour.QuizType(typ)
	if !qt.Valid() {
		return zero, fmt.Errorf("type %q is not multiple-choice or true-false", typ)
	}
	rawOpts, ok := m["options"].([]any)
	if !ok || len(rawOpts) == 0 {
		return zero, errors.New("options are empty or missing")
	}

	q := citytour.QuizQuestion{Question: text, Type: qt}
	for j, ro := range rawOpts {
		om, ok := ro.(map[string]any)
		if !ok {
			return zero, fmt.Errorf("option %d is %T, want an object", j, ro)
		}
		otext, ok := om["text"].(string)
		if !ok {
			return zero, fmt.Errorf("option %d has no string text", j)
		}
		correct, ok := om["isCorrect"].(bool)
		if !ok {
			return zero, fmt.Errorf("option %d has no boolean isCorrect", j)
		}
		q.Options = append(q.Options, citytour.QuizOption{Text: otext, IsCorrect: correct})
	}
	return q, nil
}
