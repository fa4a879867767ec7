package retrieval

import "sort"

const rrfK = 60

// Ranked is one scored entry of a ranking.
type Ranked struct {
	ID    string
	Score float64
}

// Ranking is an ordered candidate list from a single scorer.
type Ranking struct {
	Weight  float64
	Entries []Ranked
}

// FuseRRF combines rankings with reciprocal rank fusion. Each entry
// contributes weight/(k+rank+1); ties break on id for stable output.
func FuseRRF(rankings ...Ranking) []Ranked {
	scores := make(map[string]float64)
	for _, ranking := range rankings {
		w := ranking.Weight
		if w == 0 {
			w = 1
		}
		for rank, e := range ranking.Entries {
			scores[e.ID] += w / float64(rrfK+rank+1)
		}
	}

	out := make([]Ranked, 0, len(scores))
	for id, score := range scores {
		out = append(out, Ranked{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
