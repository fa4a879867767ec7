package retrieval

import (
	"context"
	"math"
	"reflect"
	"testing"
)

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Name() string    { return "fake" }
func (f *fakeEmbedder) Dimensions() int { return 2 }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{0, 0}
		}
		out[i] = v
	}
	return out, nil
}

func TestSplitParagraphs(t *testing.T) {
	t.Parallel()

	got := SplitParagraphs("first para\n\n\n\nsecond para\n\n   \n\nthird")
	want := []string{"first para", "second para", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitParagraphs: got %v want %v", got, want)
	}

	if got := SplitParagraphs("   "); got != nil {
		t.Fatalf("SplitParagraphs(blank): got %v", got)
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "basic",
			in:   "The castle was built in 1356. It burned down in 1697! Was it rebuilt?",
			want: []string{
				"The castle was built in 1356.",
				"It burned down in 1697!",
				"Was it rebuilt?",
			},
		},
		{
			name: "abbreviation kept",
			in:   "Dr. smith wrote it. Nobody read it.",
			want: []string{"Dr. smith wrote it.", "Nobody read it."},
		},
		{
			name: "closing quote absorbed",
			in:   `He said "stop." Then he left.`,
			want: []string{`He said "stop."`, "Then he left."},
		},
		{
			name: "no terminator",
			in:   "a fragment without an end",
			want: []string{"a fragment without an end"},
		},
		{
			name: "empty",
			in:   "  ",
			want: nil,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SplitSentences(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("SplitSentences(%q): got %#v want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewSplitter(t *testing.T) {
	t.Parallel()

	if NewSplitter(" Sentence ") == nil {
		t.Fatalf("NewSplitter(sentence): nil")
	}
	if NewSplitter("paragraph") == nil {
		t.Fatalf("NewSplitter(paragraph): nil")
	}
	if NewSplitter("words") != nil {
		t.Fatalf("NewSplitter(words): expected nil")
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	if got := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("Cosine(identical): got %v", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("Cosine(orthogonal): got %v", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 0}); got != 0 {
		t.Fatalf("Cosine(zero vec): got %v", got)
	}
	if got := Cosine([]float32{1}, []float32{1, 0}); got != 0 {
		t.Fatalf("Cosine(mismatched): got %v", got)
	}
}

func TestRetriever_Embedding(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: map[string][]float32{
		"the fact":    {1, 0},
		"Near match.": {0.9, 0.1},
		"Unrelated.":  {0, 1},
		"Exact hit.":  {1, 0},
	}}
	r, err := New(emb, "sentence", "en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frags, err := r.Retrieve(context.Background(), "the fact", "Near match. Unrelated. Exact hit.", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("len(frags): got %d want 2", len(frags))
	}
	if frags[0].Text != "Exact hit." {
		t.Fatalf("frags[0]: got %q", frags[0].Text)
	}
	if frags[1].Text != "Near match." {
		t.Fatalf("frags[1]: got %q", frags[1].Text)
	}
	if frags[0].Score < frags[1].Score {
		t.Fatalf("scores out of order: %v", frags)
	}
}

func TestRetriever_LexicalFallback(t *testing.T) {
	t.Parallel()

	r, err := New(nil, "paragraph", "en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	article := "The fortress guards the river crossing.\n\nA completely different topic entirely.\n\nThe old fortress by the river."
	frags, err := r.Retrieve(context.Background(), "fortress near the river", article, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("len(frags): got %d want 2", len(frags))
	}
	for _, f := range frags {
		if f.Text == "A completely different topic entirely." {
			t.Fatalf("irrelevant paragraph retrieved: %v", frags)
		}
	}
}

func TestRetriever_EdgeCases(t *testing.T) {
	t.Parallel()

	r, err := New(nil, "sentence", "en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frags, err := r.Retrieve(context.Background(), "fact", "   ", 5)
	if err != nil || frags != nil {
		t.Fatalf("Retrieve(empty article): got %v, %v", frags, err)
	}

	// k beyond the fragment count returns everything.
	frags, err = r.Retrieve(context.Background(), "fact", "One sentence only.", 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(frags) != 1 {
		t.Fatalf("len(frags): got %d want 1", len(frags))
	}

	if _, err := r.Retrieve(context.Background(), "fact", "text", 0); err == nil {
		t.Fatalf("Retrieve(k=0): expected error")
	}

	if _, err := New(nil, "bogus", "en"); err == nil {
		t.Fatalf("New(bogus splitter): expected error")
	}
}

func TestFuseRRF(t *testing.T) {
	t.Parallel()

	fused := FuseRRF(
		Ranking{Entries: []Ranked{{ID: "a"}, {ID: "b"}, {ID: "c"}}},
		Ranking{Entries: []Ranked{{ID: "b"}, {ID: "a"}}},
	)
	if len(fused) != 3 {
		t.Fatalf("len(fused): got %d want 3", len(fused))
	}
	// a and b tie on rank sum, a wins on id; c trails.
	if fused[0].ID != "a" || fused[1].ID != "b" || fused[2].ID != "c" {
		t.Fatalf("order: got %v", fused)
	}

	weighted := FuseRRF(
		Ranking{Weight: 0.1, Entries: []Ranked{{ID: "a"}}},
		Ranking{Weight: 2.0, Entries: []Ranked{{ID: "b"}}},
	)
	if weighted[0].ID != "b" {
		t.Fatalf("weighted order: got %v", weighted)
	}

	if got := FuseRRF(); len(got) != 0 {
		t.Fatalf("FuseRRF(): got %v", got)
	}
}
