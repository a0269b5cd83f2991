package service

// Similarity is the Jaccard index of two tag sets. Two empty sets are
// identical (1.0); exactly one empty set shares nothing (0.0). Duplicates
// within an input are ignored.
func Similarity(a, b []string) float64 {
	sa := toSet(a)
	sb := toSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1.0
	}
	if len(sa) == 0 || len(sb) == 0 {
		return 0.0
	}

	inter := 0
	for k := range sa {
		if _, ok := sb[k]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// MaxSimilarity returns the best Similarity between tags and any set in history.
func MaxSimilarity(tags []string, history [][]string) float64 {
	best := 0.0
	for _, h := range history {
		if s := Similarity(tags, h); s > best {
			best = s
		}
	}
	return best
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}
