package evaluator

// rougeLScore computes ROUGE-L recall: the length of the longest common
// subsequence between candidate and reference tokens, normalized by the
// reference length.
func rougeLScore(candidate, reference []string) float64 {
	if len(candidate) == 0 || len(reference) == 0 {
		return 0.0
	}
	return clamp(float64(lcsLength(candidate, reference)) / float64(len(reference)))
}

// lcsLength is the classic dynamic-programming LCS over two rows.
func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
