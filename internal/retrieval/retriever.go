package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wikifactslab/wikifacts/internal/llm"
	"github.com/wikifactslab/wikifacts/internal/textnorm"
)

// Fragment is a scored article fragment.
type Fragment struct {
	Text  string
	Score float64
}

// Retriever picks the article fragments most relevant to a fact. With an
// embedder it scores by cosine similarity; without one it falls back to
// normalized token overlap.
type Retriever struct {
	embedder llm.Embedder
	split    SplitFunc
	norm     *textnorm.Normalizer
}

func New(embedder llm.Embedder, splitter, lang string) (*Retriever, error) {
	split := NewSplitter(splitter)
	if split == nil {
		return nil, fmt.Errorf("retrieval: unknown splitter %q", splitter)
	}
	return &Retriever{
		embedder: embedder,
		split:    split,
		norm:     textnorm.New(lang),
	}, nil
}

// Retrieve returns the top-k fragments of article ordered by relevance to
// fact. An empty article yields an empty result; k larger than the
// fragment count returns everything in score order.
func (r *Retriever) Retrieve(ctx context.Context, fact, article string, k int) ([]Fragment, error) {
	if r == nil {
		return nil, errors.New("retrieval: nil retriever")
	}
	if ctx == nil {
		return nil, errors.New("retrieval: nil context")
	}
	if k <= 0 {
		return nil, fmt.Errorf("retrieval: invalid k %d", k)
	}

	fragments := r.split(article)
	if len(fragments) == 0 {
		return nil, nil
	}

	var scores []float64
	var err error
	if r.embedder != nil {
		scores, err = r.embeddingScores(ctx, fact, fragments)
		if err != nil {
			return nil, err
		}
	} else {
		scores = r.lexicalScores(fact, fragments)
	}

	out := make([]Fragment, len(fragments))
	for i, text := range fragments {
		out[i] = Fragment{Text: text, Score: scores[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

func (r *Retriever) embeddingScores(ctx context.Context, fact string, fragments []string) ([]float64, error) {
	inputs := make([]string, 0, len(fragments)+1)
	inputs = append(inputs, fact)
	inputs = append(inputs, fragments...)

	vecs, err := r.embedder.Embed(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed: %w", err)
	}
	if len(vecs) != len(inputs) {
		return nil, fmt.Errorf("retrieval: embed: got %d vectors for %d inputs", len(vecs), len(inputs))
	}

	query := vecs[0]
	scores := make([]float64, len(fragments))
	for i, v := range vecs[1:] {
		scores[i] = Cosine(query, v)
	}
	return scores, nil
}

func (r *Retriever) lexicalScores(fact string, fragments []string) []float64 {
	factTokens := tokenSet(r.norm.Tokens(fact))
	scores := make([]float64, len(fragments))
	if len(factTokens) == 0 {
		return scores
	}

	for i, frag := range fragments {
		toks := r.norm.Tokens(frag)
		if len(toks) == 0 {
			continue
		}
		seen := make(map[string]struct{}, len(toks))
		overlap := 0
		for _, tok := range toks {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			if _, ok := factTokens[tok]; ok {
				overlap++
			}
		}
		scores[i] = float64(overlap) / float64(len(factTokens))
	}
	return scores
}

// Cosine returns the cosine similarity of two vectors, 0 for mismatched
// or zero-length input.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}
