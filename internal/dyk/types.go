package dyk

// Fact is one "Did you know" entry lifted from a month archive page.
type Fact struct {
	Section       string   `json:"section"`
	Text          string   `json:"text"`
	Links         []string `json:"links"`
	RelevantLinks []string `json:"relevant_links"`
}

// Month is one month page in the archive index. Exists is false for
// redlinked months that have no page yet.
type Month struct {
	Name   string `json:"month"`
	URL    string `json:"url"`
	Exists bool   `json:"exists"`
}

// Archive maps year -> month pages in index order.
type Archive map[string][]Month

// RawFacts is the scrape output: year -> month name -> facts.
type RawFacts map[string]map[string][]Fact

// Count returns the total number of facts across all months.
func (r RawFacts) Count() int {
	n := 0
	for _, months := range r {
		for _, facts := range months {
			n += len(facts)
		}
	}
	return n
}
