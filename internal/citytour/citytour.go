// Package citytour defines the core domain types shared by the ingestion
// pipeline and the navigation machine. It has zero external dependencies.
package citytour

// PlaceholderImageURL is substituted for any landmark that arrives
// without a usable image reference.
const PlaceholderImageURL = "https://placehold.co/600x400?text=Landmark"

// IntroID is the reserved landmark ID of the synthetic intro entry at
// index 0 of every Tour.
const IntroID = 0

type QuizType string

const (
	QuizMultipleChoice QuizType = "multiple-choice"
	QuizTrueFalse      QuizType = "true-false"
)

// Valid reports whether t is one of the two supported question types.
func (t QuizType) Valid() bool {
	return t == QuizMultipleChoice || t == QuizTrueFalse
}

type IconType string

const (
	IconMonument IconType = "monument"
	IconNature   IconType = "nature"
	IconWater    IconType = "water"
)

// Valid reports whether t is a known map icon.
func (t IconType) Valid() bool {
	return t == IconMonument || t == IconNature || t == IconWater
}

type QuizOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuizQuestion struct {
	Question string       `json:"question"`
	Type     QuizType     `json:"type"`
	Options  []QuizOption `json:"options"`
}

// Coordinates is a latitude/longitude pair. Both values are finite by
// construction: the coercers reject anything else.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Landmark struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Aliases         []string       `json:"aliases,omitempty"`
	ImageURL        string         `json:"imageUrl"`
	Coords          Coordinates    `json:"coords"`
	IconType        IconType       `json:"iconType"`
	VideoURL        string         `json:"videoUrl,omitempty"`
	AudioURL        string         `json:"audioUrl,omitempty"`
	Quiz            []QuizQuestion `json:"quiz,omitempty"`
	BlockNavigation bool           `json:"blockNavigation"`
}

// HasQuiz reports whether the landmark carries at least one question.
func (l Landmark) HasQuiz() bool { return len(l.Quiz) > 0 }

// Gated reports whether forward navigation past this landmark requires
// quiz completion first.
func (l Landmark) Gated() bool { return l.BlockNavigation && len(l.Quiz) > 0 }

// Tour is the ordered landmark sequence a session navigates. Index 0 is
// always the synthetic intro entry. Version increments on every
// wholesale rebuild and on every append, so stale async work can detect
// that the Tour it captured has been replaced.
type Tour struct {
	Version   int64      `json:"version"`
	Landmarks []Landmark `json:"landmarks"`
}

func (t Tour) Len() int { return len(t.Landmarks) }

// IndexOf returns the position of the landmark with the given ID, or -1.
func (t Tour) IndexOf(id int64) int {
	for i, l := range t.Landmarks {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep-enough copy for handing snapshots across API
// boundaries: the landmark slice is copied, element fields are shared.
func (t Tour) Clone() Tour {
	out := Tour{Version: t.Version, Landmarks: make([]Landmark, len(t.Landmarks))}
	copy(out.Landmarks, t.Landmarks)
	return out
}
