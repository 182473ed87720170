package ingest

import "github.com/geowander/citytour/internal/citytour"

// IntroLandmark returns the synthetic overview entry every tour starts
// with. It is regenerated per tour so callers can mutate their copy.
func IntroLandmark() citytour.Landmark {
	return citytour.Landmark{
		ID:          citytour.IntroID,
		Name:        "Welcome",
		Title:       "WELCOME TO THE TOUR",
		Description: "An overview of the landmarks on this tour. Step forward to begin.",
		ImageURL:    citytour.PlaceholderImageURL,
		IconType:    citytour.IconMonument,
	}
}

// BuiltinLandmarks returns the compiled-in fallback tour used when
// both remote sources are unavailable. Fresh slices on every call, so
// a caller appending custom entries never leaks them into the next
// load.
func BuiltinLandmarks() []citytour.Landmark {
	return []citytour.Landmark{
		{
			ID:          1,
			Name:        "Petra",
			Title:       "PETRA",
			Description: "Rock-cut city of the Nabataeans, hidden behind the Siq gorge since the 4th century BC.",
			Aliases:     []string{"Jordan"},
			ImageURL:    citytour.PlaceholderImageURL,
			Coords:      citytour.Coordinates{Lat: 30.3285, Lng: 35.4444},
			IconType:    citytour.IconMonument,
			Quiz: []citytour.QuizQuestion{
				{
					Question: "Which civilization carved Petra into the sandstone cliffs?",
					Type:     citytour.QuizMultipleChoice,
					Options: []citytour.QuizOption{
						{Text: "The Nabataeans", IsCorrect: true},
						{Text: "The Romans"},
						{Text: "The Ottomans"},
						{Text: "The Phoenicians"},
					},
				},
				{
					Question: "Petra is also known as the Rose City.",
					Type:     citytour.QuizTrueFalse,
					Options: []citytour.QuizOption{
						{Text: "True", IsCorrect: true},
						{Text: "False"},
					},
				},
			},
			BlockNavigation: true,
		},
		{
			ID:          2,
			Name:        "Wadi Rum",
			Title:       "WADI RUM",
			Description: "Desert valley of sandstone mountains and red dunes, long inhabited by Bedouin tribes.",
			Aliases:     []string{"Jordan", "Valley of the Moon"},
			ImageURL:    citytour.PlaceholderImageURL,
			Coords:      citytour.Coordinates{Lat: 29.5768, Lng: 35.4207},
			IconType:    citytour.IconNature,
		},
		{
			ID:          3,
			Name:        "Dead Sea",
			Title:       "DEAD SEA",
			Description: "Hypersaline lake at the lowest land elevation on Earth, over 400 meters below sea level.",
			Aliases:     []string{"Jordan"},
			ImageURL:    citytour.PlaceholderImageURL,
			Coords:      citytour.Coordinates{Lat: 31.5590, Lng: 35.4732},
			IconType:    citytour.IconWater,
			Quiz: []citytour.QuizQuestion{
				{
					Question: "Fish thrive in the Dead Sea.",
					Type:     citytour.QuizTrueFalse,
					Options: []citytour.QuizOption{
						{Text: "True"},
						{Text: "False", IsCorrect: true},
					},
				},
			},
			BlockNavigation: true,
		},
		{
			ID:          4,
			Name:        "Amman Citadel",
			Title:       "AMMAN CITADEL",
			Description: "Hilltop site in central Amman layered with Roman, Byzantine, and Umayyad remains.",
			Aliases:     []string{"Jordan", "Jabal al-Qal'a"},
			ImageURL:    citytour.PlaceholderImageURL,
			Coords:      citytour.Coordinates{Lat: 31.9544, Lng: 35.9344},
			IconType:    citytour.IconMonument,
		},
		{
			ID:          5,
			Name:        "Jerash",
			Title:       "JERASH",
			Description: "One of the best preserved Roman provincial towns, with colonnaded streets and two theatres.",
			Aliases:     []string{"Jordan", "Gerasa"},
			ImageURL:    citytour.PlaceholderImageURL,
			Coords:      citytour.Coordinates{Lat: 32.2745, Lng: 35.8918},
			IconType:    citytour.IconMonument,
		},
	}
}
