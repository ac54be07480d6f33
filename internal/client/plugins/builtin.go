package plugins

// Mood is the daily mood journal: one entry per date, scored, with an
// optional comment.
func Mood() Plugin {
	return &fieldModule{
		meta:      Meta{ID: "mood", Version: 1, CollectionName: "mood_entries"},
		keyFields: []string{"date", "mood_score", "comment"},
		required:  []string{"date", "mood_score"},
	}
}

// Goals tracks goals by title and target date.
func Goals() Plugin {
	return &fieldModule{
		meta:      Meta{ID: "goals", Version: 1, CollectionName: "goals_entries"},
		keyFields: []string{"date", "title"},
		required:  []string{"title"},
	}
}

// Passage is the free-form journal, grouped in threads.
func Passage() Plugin {
	return &fieldModule{
		meta:      Meta{ID: "passage", Version: 1, CollectionName: "passage_entries"},
		keyFields: []string{"date", "thread", "title"},
		required:  []string{"date", "content"},
	}
}
