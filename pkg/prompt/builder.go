// Package prompt composes the system instruction sent ahead of every chat
// completion. Prompts embed the current time and must be rebuilt per call.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iamvkosarev/hablaya/pkg/proficiency"
)

type Focus string

const (
	FocusConversation  = Focus("conversation")
	FocusPronunciation = Focus("pronunciation")
	FocusGrammar       = Focus("grammar")
	FocusVocabulary    = Focus("vocabulary")
	FocusWriting       = Focus("writing")
	FocusSpeaking      = Focus("speaking")
)

const timeLayout = "Monday, January 2, 2006 15:04 MST"

// Descriptor describes how the tutor speaks to a learner of a given level.
type Descriptor struct {
	Name             proficiency.Level
	MaxResponseWords int
	Complexity       string
}

// Input is everything Build needs. Now is passed in rather than read so the
// caller controls the timestamp.
type Input struct {
	Level        Descriptor
	Focus        Focus
	IsVoiceInput bool
	SessionData  map[string]any
	Now          time.Time
}

var descriptors = map[proficiency.Level]Descriptor{
	proficiency.LevelBeginner: {
		Name:             proficiency.LevelBeginner,
		MaxResponseWords: 30,
		Complexity:       "very simple words, present tense, short sentences",
	},
	proficiency.LevelElementary: {
		Name:             proficiency.LevelElementary,
		MaxResponseWords: 45,
		Complexity:       "common everyday vocabulary, simple past and future",
	},
	proficiency.LevelIntermediate: {
		Name:             proficiency.LevelIntermediate,
		MaxResponseWords: 60,
		Complexity:       "everyday vocabulary with some idioms, compound sentences",
	},
	proficiency.LevelUpperIntermediate: {
		Name:             proficiency.LevelUpperIntermediate,
		MaxResponseWords: 80,
		Complexity:       "varied vocabulary and phrasal verbs, conditionals and passive voice",
	},
	proficiency.LevelAdvanced: {
		Name:             proficiency.LevelAdvanced,
		MaxResponseWords: 100,
		Complexity:       "nuanced and idiomatic vocabulary, complex clauses and subjunctive mood",
	},
}

var focusInstructions = map[Focus]string{
	FocusConversation: `CONVERSATION FOCUS:
- Keep the dialogue flowing with open follow-up questions.
- Correct only mistakes that block understanding, after replying naturally.
- Bring in everyday topics: work, travel, food, hobbies.`,
	FocusPronunciation: `PRONUNCIATION FOCUS:
- Point out words that are commonly mispronounced and describe the sounds.
- Pay attention to th, ch, sh sounds and -ed / -ing endings.
- Suggest a short phrase the learner can repeat aloud.`,
	FocusGrammar: `GRAMMAR FOCUS:
- After replying, correct grammar mistakes explicitly with the fixed sentence.
- Name the rule briefly (tense, agreement, article, preposition).
- Offer one extra example of the correct structure.`,
	FocusVocabulary: `VOCABULARY FOCUS:
- Introduce one or two useful new words or expressions per reply.
- Give a synonym or a short definition for difficult words.
- Encourage the learner to reuse the new words in their answer.`,
	FocusWriting: `WRITING FOCUS:
- Comment on sentence structure, punctuation and word choice.
- Suggest a more natural rewrite of the learner's sentence when useful.
- Keep corrections concrete and short.`,
	FocusSpeaking: `SPEAKING FOCUS:
- Favour short, spoken-style replies that are easy to say aloud.
- Encourage longer spoken answers and natural fillers.
- Praise fluency before accuracy.`,
}

// ParseFocus reports whether s is exactly one of the focus names. Callers
// holding free-form user input fold it to lower case first.
func ParseFocus(s string) (Focus, bool) {
	f := Focus(s)
	if _, ok := focusInstructions[f]; ok {
		return f, true
	}
	return "", false
}

// Describe returns the descriptor for level, defaulting to intermediate.
func Describe(level proficiency.Level) Descriptor {
	if d, ok := descriptors[level]; ok {
		return d
	}
	return descriptors[proficiency.LevelIntermediate]
}

// Build composes the adaptive system prompt.
func Build(in Input) string {
	level := in.Level
	if level.Name == "" {
		level = Describe(proficiency.LevelIntermediate)
	}
	focusBlock, ok := focusInstructions[in.Focus]
	focus := in.Focus
	if !ok {
		focus = FocusConversation
		focusBlock = focusInstructions[FocusConversation]
	}
	modality := "text"
	if in.IsVoiceInput {
		modality = "voice (transcribed speech)"
	}

	var b strings.Builder
	b.WriteString("You are HablaYa!, a friendly and patient AI English tutor. ")
	b.WriteString("You help learners practice and improve their English through natural conversation.\n\n")

	b.WriteString("TEACHING PHILOSOPHY:\n")
	b.WriteString("- Respond naturally first, then teach.\n")
	b.WriteString("- Be encouraging and positive; mistakes are part of learning.\n")
	b.WriteString("- Adapt vocabulary and grammar to the learner's level.\n")
	b.WriteString("- Ask follow-up questions to keep the learner talking.\n\n")

	b.WriteString("CURRENT CONTEXT:\n")
	fmt.Fprintf(&b, "- Learner level: %s (%s)\n", level.Name, level.Complexity)
	fmt.Fprintf(&b, "- Learning focus: %s\n", focus)
	fmt.Fprintf(&b, "- Input mode: %s\n", modality)
	fmt.Fprintf(&b, "- Session: %s\n", sessionJSON(in.SessionData))
	fmt.Fprintf(&b, "- Current time: %s\n\n", in.Now.Format(timeLayout))

	b.WriteString("RESPONSE FORMAT:\n")
	fmt.Fprintf(&b, "- Keep replies under %d words.\n", level.MaxResponseWords)
	b.WriteString("- Use plain text without markdown; replies may be read aloud.\n")
	if in.IsVoiceInput {
		b.WriteString("- The input was transcribed from speech, so ignore missing punctuation and mention likely pronunciation slips gently.\n")
	}
	b.WriteString("- When correcting, show the corrected sentence once and keep the explanation to one line.\n\n")

	b.WriteString(focusBlock)
	return b.String()
}

// Simple is the fixed prompt used when adaptive prompting is disabled.
func Simple(now time.Time) string {
	return `You are HablaYa!, a friendly and patient AI English tutor. Your purpose is to help users practice and improve their English speaking skills through natural conversation.

Guidelines:
1. Respond in clear, neutral English suitable for language learners.
2. Keep responses concise but natural (2-3 sentences typically).
3. If the user makes grammatical or vocabulary mistakes:
   - First, respond naturally to continue the conversation flow
   - Then politely point out the mistake and provide the correct version
   - Explain simply if needed
4. Adapt to the user's apparent proficiency level.
5. Be encouraging and positive.
6. Occasionally ask follow-up questions to keep the conversation going.
7. Focus on practical, everyday English usage.

Current time: ` + now.Format(timeLayout)
}

func sessionJSON(data map[string]any) string {
	if len(data) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
