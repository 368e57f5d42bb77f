package linkage

import (
	"fmt"
	"strings"
)

// Similarity scores two normalized values from 0 (nothing alike) to 100
// (identical). Either side empty scores 0.
type Similarity func(a, b string) float64

// SimilarityFor returns the named similarity: "levenshtein" or "jaro-winkler".
func SimilarityFor(name string) (Similarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "levenshtein":
		return Levenshtein, nil
	case "jaro-winkler":
		return JaroWinkler, nil
	}
	return nil, fmt.Errorf("linkage: unknown similarity %q", name)
}

// Levenshtein is 100 * (1 - distance/max(len a, len b)) over runes.
func Levenshtein(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	d := editDistance(ra, rb)
	return 100 * (1 - float64(d)/float64(max(len(ra), len(rb))))
}

func editDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// JaroWinkler is the Jaro-Winkler similarity scaled to 0-100, with the
// common-prefix boost capped at four runes.
func JaroWinkler(a, b string) float64 {
	s1, s2 := []rune(a), []rune(b)
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}
	if a == b {
		return 100
	}

	maxDist := max(len(s1), len(s2))/2 - 1
	if maxDist < 0 {
		maxDist = 0
	}

	s1Matches := make([]bool, len(s1))
	s2Matches := make([]bool, len(s2))
	matches := 0
	for i := range s1 {
		start := max(0, i-maxDist)
		end := min(len(s2), i+maxDist+1)
		for j := start; j < end; j++ {
			if s2Matches[j] || s1[i] != s2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range s1 {
		if !s1Matches[i] {
			continue
		}
		for !s2Matches[k] {
			k++
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(len(s1)) + m/float64(len(s2)) + (m-float64(transpositions)/2)/m) / 3

	prefix := 0
	for i := 0; i < min(4, len(s1), len(s2)); i++ {
		if s1[i] != s2[i] {
			break
		}
		prefix++
	}
	return 100 * (jaro + float64(prefix)*0.1*(1-jaro))
}
