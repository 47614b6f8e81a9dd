// Package proficiency estimates a learner's level from a single utterance
// using surface lexical and grammar heuristics.
package proficiency

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Level string

const (
	LevelAuto              = Level("auto")
	LevelBeginner          = Level("beginner")
	LevelElementary        = Level("elementary")
	LevelIntermediate      = Level("intermediate")
	LevelUpperIntermediate = Level("upper-intermediate")
	LevelAdvanced          = Level("advanced")
)

const (
	advancedThreshold          = 25
	upperIntermediateThreshold = 15
	longWordRunes              = 8
)

var (
	suffixPattern = regexp.MustCompile(`^[a-z]{3,}(ing|ed|ly)$`)

	// (?s) lets a clause pair span lines of a multi-line message.
	complexGrammarPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)\bif\b.*\bwould\b`),
		regexp.MustCompile(`(?s)\bhad\b.*\bwould\b`),
		regexp.MustCompile(`\bmight have\b`),
		regexp.MustCompile(`\bcould have\b`),
		regexp.MustCompile(`\bshould have\b`),
	}
	subjunctivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bwere to\b`),
		regexp.MustCompile(`(?s)\bif\b.*\bwere\b`),
	}
)

// ParseLevel accepts any known level name, including LevelAuto.
func ParseLevel(s string) (Level, bool) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelAuto, LevelBeginner, LevelElementary, LevelIntermediate, LevelUpperIntermediate, LevelAdvanced:
		return l, true
	default:
		return "", false
	}
}

// Estimate maps an utterance to intermediate, upper-intermediate or advanced.
// The second result is false when the utterance carries no signal.
func Estimate(utterance string) (Level, bool) {
	if strings.TrimSpace(utterance) == "" {
		return "", false
	}
	score := Score(utterance)
	switch {
	case score >= advancedThreshold:
		return LevelAdvanced, true
	case score >= upperIntermediateThreshold:
		return LevelUpperIntermediate, true
	default:
		return LevelIntermediate, true
	}
}

// Score is the composite heuristic behind Estimate:
// 2*complexWords + 0.5*meanSentenceLength + 10*complexGrammar + 15*subjunctive.
func Score(utterance string) float64 {
	tokens := strings.Fields(utterance)
	if len(tokens) == 0 {
		return 0
	}

	var complexWords int
	for _, token := range tokens {
		if isComplexWord(token) {
			complexWords++
		}
	}

	sentences := countSentences(utterance)
	if sentences == 0 {
		sentences = 1
	}
	meanSentenceLength := float64(len(tokens)) / float64(sentences)

	lowered := strings.ToLower(utterance)
	score := 2*float64(complexWords) + 0.5*meanSentenceLength
	if matchesAny(lowered, complexGrammarPatterns) {
		score += 10
	}
	if matchesAny(lowered, subjunctivePatterns) {
		score += 15
	}
	return score
}

func isComplexWord(token string) bool {
	word := strings.ToLower(strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
	return utf8.RuneCountInString(word) > longWordRunes || suffixPattern.MatchString(word)
}

func countSentences(text string) int {
	pieces := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var n int
	for _, piece := range pieces {
		if strings.TrimSpace(piece) != "" {
			n++
		}
	}
	return n
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
