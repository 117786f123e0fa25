package analysis

import "strings"

// IntentScorer labels the intent of a prompt with a confidence in [0,1].
type IntentScorer func(text string) (label string, confidence float64)

// SentimentScorer scores sentiment in [-1,1].
type SentimentScorer func(text string) float64

// intentKeywords maps intent labels to indicative keywords, checked in
// declaration order of intentOrder so classification is deterministic.
var intentKeywords = map[string][]string{
	"question":    {"what", "why", "how", "when", "where", "who", "explain", "describe"},
	"instruction": {"write", "create", "generate", "build", "make", "implement", "translate"},
	"analysis":    {"analyze", "compare", "evaluate", "review", "assess", "summarize"},
	"creative":    {"story", "poem", "imagine", "invent", "brainstorm"},
}

var intentOrder = []string{"question", "instruction", "analysis", "creative"}

// KeywordIntent is the default intent scorer: keyword voting over the
// lowercased prompt, confidence proportional to the share of matches.
func KeywordIntent(text string) (string, float64) {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)
	if len(words) == 0 {
		return "general", 0
	}

	best := "general"
	bestHits := 0
	for _, label := range intentOrder {
		hits := 0
		for _, kw := range intentKeywords[label] {
			if containsWord(words, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = label, hits
		}
	}
	if bestHits == 0 {
		return "general", 0.3
	}

	confidence := float64(bestHits) / 4.0
	if confidence > 1 {
		confidence = 1
	}
	return best, confidence
}

var positiveWords = []string{"good", "great", "love", "excellent", "happy", "thanks", "please"}
var negativeWords = []string{"bad", "terrible", "hate", "awful", "angry", "wrong", "broken"}

// LexiconSentiment is the default sentiment scorer: positive minus
// negative word counts, normalized to [-1,1].
func LexiconSentiment(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}

	score := 0
	for _, w := range positiveWords {
		if containsWord(words, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if containsWord(words, w) {
			score--
		}
	}

	norm := float64(score) / 3.0
	if norm > 1 {
		norm = 1
	}
	if norm < -1 {
		norm = -1
	}
	return norm
}

func containsWord(words []string, target string) bool {
	for _, w := range words {
		if strings.Trim(w, ".,!?;:\"'()") == target {
			return true
		}
	}
	return false
}
