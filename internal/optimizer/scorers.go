package optimizer

import "strings"

// LengthScorer rates output length adequacy. Very short outputs score
// low; scores rise linearly up to a reasonable floor and plateau.
type LengthScorer struct{}

func (LengthScorer) Name() string { return "length" }

func (LengthScorer) Score(prompt, output string) float64 {
	const adequate = 200
	n := len(strings.TrimSpace(output))
	if n == 0 {
		return 0
	}
	if n >= adequate {
		return 1
	}
	return float64(n) / adequate
}

// StructureScorer rewards visible structure: multiple sentences,
// paragraph breaks, lists.
type StructureScorer struct{}

func (StructureScorer) Name() string { return "structure" }

func (StructureScorer) Score(prompt, output string) float64 {
	out := strings.TrimSpace(output)
	if out == "" {
		return 0
	}

	score := 0.4
	if strings.Count(out, ".")+strings.Count(out, "?")+strings.Count(out, "!") >= 2 {
		score += 0.2
	}
	if strings.Contains(out, "\n\n") {
		score += 0.2
	}
	if strings.Contains(out, "\n- ") || strings.Contains(out, "\n* ") || strings.Contains(out, "\n1.") {
		score += 0.2
	}
	return score
}

// CoverageScorer measures how many significant prompt terms appear in
// the output. A response that ignores the prompt's subject scores low.
type CoverageScorer struct{}

func (CoverageScorer) Name() string { return "coverage" }

func (CoverageScorer) Score(prompt, output string) float64 {
	terms := significantTerms(prompt)
	if len(terms) == 0 {
		return 1
	}

	lower := strings.ToLower(output)
	hit := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hit++
		}
	}
	return float64(hit) / float64(len(terms))
}

// significantTerms extracts lowercase prompt words longer than three
// characters, deduplicated, preserving first-seen order.
func significantTerms(prompt string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) <= 3 || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}
