package benchmark

import "math"

// RetrievalKValues are the cutoffs at which Recall@k is reported.
var RetrievalKValues = []int{1, 5, 10}

const ndcgCutoff = 10

// RetrievalMetrics aggregates ranking quality over a run.
type RetrievalMetrics struct {
	RecallAt map[int]float64 `json:"recall_at"`
	MRR      float64         `json:"mrr"`
	NDCG     float64         `json:"ndcg_at_10"`
	Queries  int             `json:"queries"`
}

// recallAtK is the fraction of relevant ids found in the top-k retrieved.
func recallAtK(retrieved, relevant []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	top := retrieved
	if len(top) > k {
		top = top[:k]
	}
	set := make(map[string]struct{}, len(top))
	for _, id := range top {
		set[id] = struct{}{}
	}
	found := 0
	for _, id := range relevant {
		if _, ok := set[id]; ok {
			found++
		}
	}
	return float64(found) / float64(len(relevant))
}

// reciprocalRank is 1/rank of the first relevant retrieved id, 0 if none.
func reciprocalRank(retrieved, relevant []string) float64 {
	set := make(map[string]struct{}, len(relevant))
	for _, id := range relevant {
		set[id] = struct{}{}
	}
	for i, id := range retrieved {
		if _, ok := set[id]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// ndcgAtK computes normalized discounted cumulative gain with binary
// relevance.
func ndcgAtK(retrieved, relevant []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(relevant))
	for _, id := range relevant {
		set[id] = struct{}{}
	}

	top := retrieved
	if len(top) > k {
		top = top[:k]
	}
	var dcg float64
	for i, id := range top {
		if _, ok := set[id]; ok {
			dcg += 1 / math.Log2(float64(i+2))
		}
	}

	ideal := len(relevant)
	if ideal > k {
		ideal = k
	}
	var idcg float64
	for i := 0; i < ideal; i++ {
		idcg += 1 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

type retrievalAccumulator struct {
	recallSums map[int]float64
	mrrSum     float64
	ndcgSum    float64
	queries    int
}

func newRetrievalAccumulator() *retrievalAccumulator {
	sums := make(map[int]float64, len(RetrievalKValues))
	for _, k := range RetrievalKValues {
		sums[k] = 0
	}
	return &retrievalAccumulator{recallSums: sums}
}

func (a *retrievalAccumulator) add(retrieved, relevant []string) {
	if len(relevant) == 0 {
		return
	}
	for _, k := range RetrievalKValues {
		a.recallSums[k] += recallAtK(retrieved, relevant, k)
	}
	a.mrrSum += reciprocalRank(retrieved, relevant)
	a.ndcgSum += ndcgAtK(retrieved, relevant, ndcgCutoff)
	a.queries++
}

func (a *retrievalAccumulator) metrics() *RetrievalMetrics {
	if a.queries == 0 {
		return nil
	}
	out := &RetrievalMetrics{
		RecallAt: make(map[int]float64, len(a.recallSums)),
		MRR:      a.mrrSum / float64(a.queries),
		NDCG:     a.ndcgSum / float64(a.queries),
		Queries:  a.queries,
	}
	for k, sum := range a.recallSums {
		out.RecallAt[k] = sum / float64(a.queries)
	}
	return out
}
