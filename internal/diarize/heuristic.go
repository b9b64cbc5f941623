package diarize

import (
	"regexp"
	"strings"
)

var affirmationTokens = []string{
	"yeah", "yep", "right", "exactly", "totally", "sure", "uh-huh", "mhm", "okay", "ok",
}

var secondPersonPattern = regexp.MustCompile(`(?i)\byou(?:'re|r|'ve|'ll|'d)?\b`)

// LooksConversational applies the spec's lexical-marker heuristic over the
// first 60 seconds of ASR text: frequent '?', frequent second-person
// address, and many affirmation tokens together suggest a two-speaker
// interview rather than a monologue.
func LooksConversational(firstMinuteText string) bool {
	text := strings.ToLower(strings.TrimSpace(firstMinuteText))
	if text == "" {
		return false
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}

	questionMarks := strings.Count(text, "?")
	questionDensity := float64(questionMarks) / float64(len(words))

	secondPersonHits := len(secondPersonPattern.FindAllString(text, -1))
	secondPersonDensity := float64(secondPersonHits) / float64(len(words))

	affirmationHits := 0
	for _, w := range words {
		trimmed := strings.Trim(w, ".,!?;:")
		for _, token := range affirmationTokens {
			if trimmed == token {
				affirmationHits++
				break
			}
		}
	}

	const (
		questionDensityThreshold    = 0.02
		secondPersonDensityThreshold = 0.015
		minAffirmationHits          = 2
	)

	signals := 0
	if questionDensity >= questionDensityThreshold {
		signals++
	}
	if secondPersonDensity >= secondPersonDensityThreshold {
		signals++
	}
	if affirmationHits >= minAffirmationHits {
		signals++
	}
	return signals >= 2
}
