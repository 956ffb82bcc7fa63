package memory

// rrfK is the rank-offset constant in the reciprocal-rank-fusion formula,
// RRF(d) = sum_i 1/(rrfK + rank_i(d)).
const rrfK = 60

// Fuser combines N ranked lists of unit IDs into a single ranking via
// reciprocal rank fusion (§4.9). It has no state and is safe for
// concurrent use.
type Fuser struct{}

// NewFuser constructs a [Fuser].
func NewFuser() *Fuser { return &Fuser{} }

// Fuse merges lists (each already ranked best-first) into one ranking.
// Ties are broken by how many lists a unit appeared in (more wins), then
// by ID ascending.
func (Fuser) Fuse(lists [][]ScoredID) []ScoredID {
	rrf := make(map[string]float64)
	listCount := make(map[string]int)

	for _, list := range lists {
		for rank, item := range list {
			rrf[item.ID] += 1.0 / float64(rrfK+rank+1)
			listCount[item.ID]++
		}
	}

	out := make([]ScoredID, 0, len(rrf))
	for id, score := range rrf {
		out = append(out, ScoredID{ID: id, Score: score})
	}

	sortFused(out, listCount)
	return out
}

func sortFused(s []ScoredID, listCount map[string]int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && fusedLess(s[j], s[j-1], listCount); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func fusedLess(a, b ScoredID, listCount map[string]int) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if listCount[a.ID] != listCount[b.ID] {
		return listCount[a.ID] > listCount[b.ID]
	}
	return a.ID < b.ID
}
