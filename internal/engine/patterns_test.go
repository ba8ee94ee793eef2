package engine

import (
	"strings"
	"testing"

	"github.com/dearie-ai/dearie/pkg/types"
)

func userMessages(contents ...string) []types.Message {
	msgs := make([]types.Message, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, types.Message{Role: types.RoleUser, Content: c})
	}
	return msgs
}

func TestAnalyzePatterns_EmptyHistoryDefault(t *testing.T) {
	t.Parallel()
	got := AnalyzePatterns(nil)
	want := types.PatternSummary{
		IntimacyLevel:    0.1,
		EmotionalTone:    "neutral",
		FrequencyPattern: "low",
		MessageLength:    "short",
		TopicDepth:       "surface",
	}
	if got != want {
		t.Fatalf("AnalyzePatterns(nil) = %+v, want %+v", got, want)
	}
}

func TestAnalyzePatterns_IntimacyClamped(t *testing.T) {
	t.Parallel()
	// Each message hits every high-tier keyword, blowing far past the
	// normalization ceiling.
	dense := strings.Repeat("사랑 좋아 보고싶 그리워 애기 자기 여보 오빠 언니 ", 3)
	msgs := userMessages(dense, dense, dense)

	got := AnalyzePatterns(msgs)
	if got.IntimacyLevel < 0 || got.IntimacyLevel > 1 {
		t.Fatalf("IntimacyLevel = %v, want within [0,1]", got.IntimacyLevel)
	}
	if got.IntimacyLevel != 1 {
		t.Fatalf("IntimacyLevel = %v, want clamped to 1", got.IntimacyLevel)
	}
}

func TestAnalyzePatterns_RawScoreThresholds(t *testing.T) {
	t.Parallel()
	// 6 messages x one high-tier keyword = raw score 18: positive tone
	// (>15) but not deep topic (needs >20).
	msgs := userMessages("사랑해", "사랑해", "사랑해", "사랑해", "사랑해", "사랑해")
	got := AnalyzePatterns(msgs)
	if got.EmotionalTone != "positive" {
		t.Fatalf("EmotionalTone = %q, want positive (raw score 18)", got.EmotionalTone)
	}
	if got.TopicDepth != "medium" {
		t.Fatalf("TopicDepth = %q, want medium (raw score 18)", got.TopicDepth)
	}

	// 2 messages x one low-tier keyword = raw score 2: formal + surface.
	got = AnalyzePatterns(userMessages("실례", "실례"))
	if got.EmotionalTone != "formal" || got.TopicDepth != "surface" {
		t.Fatalf("low-signal history = %q/%q, want formal/surface", got.EmotionalTone, got.TopicDepth)
	}
}

func TestAnalyzePatterns_FrequencyAndLengthBuckets(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("가", 60)
	msgs := make([]types.Message, 0, 55)
	for i := 0; i < 55; i++ {
		msgs = append(msgs, types.Message{Role: types.RoleUser, Content: long})
	}
	got := AnalyzePatterns(msgs)
	if got.FrequencyPattern != "high" {
		t.Fatalf("FrequencyPattern = %q, want high for 55 messages", got.FrequencyPattern)
	}
	if got.MessageLength != "long" {
		t.Fatalf("MessageLength = %q, want long for 60-char mean", got.MessageLength)
	}
	if got.TotalMessages != 55 || got.RecentActivity != 10 {
		t.Fatalf("TotalMessages/RecentActivity = %d/%d, want 55/10", got.TotalMessages, got.RecentActivity)
	}
}

func TestAnalyzePatterns_OnlyRecentWindowScored(t *testing.T) {
	t.Parallel()
	// High-intimacy content outside the 10-message window must not count.
	msgs := userMessages("사랑해", "사랑해")
	for i := 0; i < 10; i++ {
		msgs = append(msgs, types.Message{Role: types.RoleUser, Content: "음"})
	}
	got := AnalyzePatterns(msgs)
	if got.IntimacyLevel != 0 {
		t.Fatalf("IntimacyLevel = %v, want 0 when keyword hits fall outside window", got.IntimacyLevel)
	}
}
