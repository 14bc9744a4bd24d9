package retriever

import "kbrag/internal/domain"

// Evaluation scores a ranked document list against the documents a query is
// expected to find.
type Evaluation struct {
	Precision      float64
	Recall         float64
	ReciprocalRank float64
}

// Evaluate compares result titles with the expected titles.
func Evaluate(results []domain.RetrievalResult, expected []string) Evaluation {
	titles := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Title
	}
	return Evaluation{
		Precision:      PrecisionAtK(titles, expected),
		Recall:         RecallAtK(titles, expected),
		ReciprocalRank: ReciprocalRank(titles, expected),
	}
}

// PrecisionAtK is the share of retrieved items that are relevant.
func PrecisionAtK(retrieved, relevant []string) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	return float64(hits(retrieved, relevant)) / float64(len(retrieved))
}

// RecallAtK is the share of relevant items that were retrieved.
func RecallAtK(retrieved, relevant []string) float64 {
	if len(relevant) == 0 {
		return 0
	}
	return float64(hits(retrieved, relevant)) / float64(len(relevant))
}

// ReciprocalRank is 1/rank of the first relevant item, 0 if none was retrieved.
func ReciprocalRank(retrieved, relevant []string) float64 {
	relevantSet := toSet(relevant)
	for i, r := range retrieved {
		if relevantSet[r] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

func hits(retrieved, relevant []string) int {
	relevantSet := toSet(relevant)
	n := 0
	for _, r := range retrieved {
		if relevantSet[r] {
			n++
		}
	}
	return n
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
