package dataset

// Document is one corpus entry: a Wikipedia article fetched for a fact link.
type Document struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Abstract string       `json:"abstract"`
	Metadata DocumentMeta `json:"metadata"`
}

type DocumentMeta struct {
	URL      string `json:"url"`
	Language string `json:"language,omitempty"`
}

// Query is one benchmark fact. Field names follow the published dataset
// layout, including the space-separated keys.
type Query struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	LinkedArticles   []string  `json:"linked articles"`
	RelevantArticles []string  `json:"relevant articles"`
	Metadata         QueryMeta `json:"metadata"`
}

type QueryMeta struct {
	FactDate string `json:"fact_date,omitempty"` // YYYY-MM
	Section  string `json:"section,omitempty"`
	Language string `json:"language,omitempty"`
	// Label is the expected verification answer. Empty means "yes":
	// facts lifted from the archive verbatim are true statements.
	Label string `json:"label,omitempty"`
}

// ExpectedLabel returns the label the model is scored against.
func (q *Query) ExpectedLabel() string {
	if q == nil || q.Metadata.Label == "" {
		return "yes"
	}
	return q.Metadata.Label
}

// Dataset pairs the two splits of one benchmark release.
type Dataset struct {
	Corpus  map[string]*Document
	Queries []*Query
}

// Document returns a corpus entry by id.
func (d *Dataset) Document(id string) (*Document, bool) {
	if d == nil || d.Corpus == nil {
		return nil, false
	}
	doc, ok := d.Corpus[id]
	return doc, ok
}
