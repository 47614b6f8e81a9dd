// Package annotate derives lightweight pronunciation and learning hints from
// a finished transcript.
package annotate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Pace string

const (
	PaceSlow     = Pace("slow")
	PaceModerate = Pace("moderate")
	PaceFast     = Pace("fast")
)

const (
	ClarityGood = "good"

	slowWordLimit       = 5
	fastWordLimit       = 15
	maxChallengingWords = 3
	shortResponseRunes  = 50
	fluentWordCount     = 10

	SuggestionSpeakFaster = "Try speaking a bit faster for more natural flow"
	SuggestionAddPauses   = "Good pace! Consider adding pauses for clarity"
	SuggestionExpand      = "Try expanding your response with more details"
	SuggestionGrammar     = "Great use of present continuous tense!"
	SuggestionFluency     = "Excellent fluency! Keep practicing longer conversations"
)

type PronunciationAnalysis struct {
	Clarity     string   `json:"clarity"`
	Pace        Pace     `json:"pace"`
	Suggestions []string `json:"suggestions"`
}

// Pronunciation flags hard-to-pronounce words and classifies pace by word
// count.
func Pronunciation(text string) PronunciationAnalysis {
	analysis := PronunciationAnalysis{
		Clarity:     ClarityGood,
		Pace:        PaceModerate,
		Suggestions: make([]string, 0),
	}

	words := strings.Fields(strings.ToLower(text))
	challenging := make([]string, 0, maxChallengingWords)
	for _, word := range words {
		if len(challenging) == maxChallengingWords {
			break
		}
		if isChallenging(word) {
			challenging = append(challenging, trimPunct(word))
		}
	}
	if len(challenging) > 0 {
		analysis.Suggestions = append(analysis.Suggestions, "Focus on: "+strings.Join(challenging, ", "))
	}

	switch {
	case len(words) < slowWordLimit:
		analysis.Pace = PaceSlow
		analysis.Suggestions = append(analysis.Suggestions, SuggestionSpeakFaster)
	case len(words) > fastWordLimit:
		analysis.Pace = PaceFast
		analysis.Suggestions = append(analysis.Suggestions, SuggestionAddPauses)
	}
	return analysis
}

// LearningSuggestions returns independent, order-stable hints.
func LearningSuggestions(text string) []string {
	suggestions := make([]string, 0)
	if utf8.RuneCountInString(text) < shortResponseRunes {
		suggestions = append(suggestions, SuggestionExpand)
	}
	if strings.Contains(text, "I am") || strings.Contains(text, "you are") {
		suggestions = append(suggestions, SuggestionGrammar)
	}
	if len(strings.Fields(text)) > fluentWordCount {
		suggestions = append(suggestions, SuggestionFluency)
	}
	return suggestions
}

func isChallenging(word string) bool {
	if strings.Contains(word, "th") || strings.Contains(word, "ch") || strings.Contains(word, "sh") {
		return true
	}
	trimmed := trimPunct(word)
	return strings.HasSuffix(trimmed, "ing") || strings.HasSuffix(trimmed, "ed")
}

func trimPunct(word string) string {
	return strings.TrimFunc(word, unicode.IsPunct)
}
