package engine

import (
	"strings"

	"github.com/dearie-ai/dearie/pkg/types"
)

// recentWindow bounds how many trailing messages intimacy scoring looks at.
const recentWindow = 10

// intimacyTier is one weight bucket of the keyword rule table. Represented
// as data so the tiers can be tuned and tested without touching scoring.
type intimacyTier struct {
	weight   int
	keywords []string
}

var intimacyTiers = []intimacyTier{
	{weight: 3, keywords: []string{"사랑", "좋아", "보고싶", "그리워", "애기", "자기", "여보", "오빠", "언니"}},
	{weight: 2, keywords: []string{"친구", "좋은", "재밌", "웃겨", "고마워", "미안", "괜찮아"}},
	{weight: 1, keywords: []string{"안녕", "네", "예", "감사", "죄송", "실례"}},
}

// AnalyzePatterns derives a PatternSummary from a chronological message
// history. Deterministic, no failure mode: an empty history yields the
// fixed low-signal default.
func AnalyzePatterns(messages []types.Message) types.PatternSummary {
	if len(messages) == 0 {
		return types.PatternSummary{
			IntimacyLevel:    0.1,
			EmotionalTone:    "neutral",
			FrequencyPattern: "low",
			MessageLength:    "short",
			TopicDepth:       "surface",
		}
	}

	recent := messages
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}

	// Every keyword hit counts, multiple hits per message included.
	score := 0
	for _, msg := range recent {
		content := strings.ToLower(msg.Content)
		for _, tier := range intimacyTiers {
			for _, kw := range tier.keywords {
				if strings.Contains(content, kw) {
					score += tier.weight
				}
			}
		}
	}

	intimacy := float64(score) / float64(len(recent)) / 3.0
	if intimacy > 1 {
		intimacy = 1
	}

	frequency := "low"
	switch {
	case len(messages) > 50:
		frequency = "high"
	case len(messages) > 20:
		frequency = "medium"
	}

	total := 0
	for _, msg := range messages {
		total += len([]rune(msg.Content))
	}
	avgLength := float64(total) / float64(len(messages))
	length := "short"
	switch {
	case avgLength > 50:
		length = "long"
	case avgLength > 20:
		length = "medium"
	}

	// Tone and depth thresholds read the raw (pre-normalization) score.
	tone := "formal"
	switch {
	case score > 15:
		tone = "positive"
	case score > 5:
		tone = "neutral"
	}
	depth := "surface"
	switch {
	case score > 20:
		depth = "deep"
	case score > 10:
		depth = "medium"
	}

	return types.PatternSummary{
		IntimacyLevel:    intimacy,
		EmotionalTone:    tone,
		FrequencyPattern: frequency,
		MessageLength:    length,
		TopicDepth:       depth,
		TotalMessages:    len(messages),
		RecentActivity:   len(recent),
	}
}
