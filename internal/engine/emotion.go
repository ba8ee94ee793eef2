package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dearie-ai/dearie/internal/oracle"
	"github.com/dearie-ai/dearie/pkg/types"
)

const emotionSystemPrompt = "당신은 감정 분석 전문가입니다. 텍스트에서 사용자의 감정을 정확히 파악하고 적절한 반응을 제안해주세요."

const emotionPromptTemplate = `다음 메시지에서 사용자의 감정 상태를 분석해주세요.

사용자 메시지: "%s"

최근 감정 기록:
%s

다음 형식으로 응답해주세요 (JSON):
{
  "emotion_type": "기쁨|슬픔|분노|불안|피곤|설렘|스트레스|만족|우울|흥미|놀람|실망",
  "intensity": 1-10,
  "context": "구체적인 상황이나 원인",
  "keywords": ["감정을", "나타내는", "키워드들"],
  "suggestion": "적절한 반응 방향 (공감|위로|격려|축하|경청|조언)"
}`

// emotionFallback is returned whenever the oracle answers but its output
// cannot be trusted. Classification never blocks the turn.
func emotionFallback() *types.EmotionRecord {
	return &types.EmotionRecord{
		EmotionType: "중립",
		Intensity:   5,
		Context:     "분석 중 오류 발생",
		Keywords:    []string{},
		Suggestion:  "경청",
		Confidence:  "low",
	}
}

// EmotionClassifier labels the emotional state of a single user message.
type EmotionClassifier struct {
	oracle oracle.Client
	logger *log.Logger
}

// NewEmotionClassifier creates a classifier bound to an oracle client.
func NewEmotionClassifier(client oracle.Client, logger *log.Logger) *EmotionClassifier {
	return &EmotionClassifier{oracle: client, logger: logger}
}

// emotionWire mirrors the JSON shape the oracle is instructed to return.
type emotionWire struct {
	EmotionType string   `json:"emotion_type"`
	Intensity   int      `json:"intensity"`
	Context     string   `json:"context"`
	Keywords    []string `json:"keywords"`
	Suggestion  string   `json:"suggestion"`
}

// Classify produces an EmotionRecord for the latest user message, given up
// to the 3 most recent prior records (newest-first). A failed oracle call
// yields nil and the caller skips emotion-dependent steps. Malformed oracle
// output yields the neutral fallback record instead of an error.
func (c *EmotionClassifier) Classify(ctx context.Context, message string, previous []types.EmotionRecord) *types.EmotionRecord {
	if len(previous) > 3 {
		previous = previous[:3]
	}
	prompt := fmt.Sprintf(emotionPromptTemplate, message, renderEmotionHistory(previous))

	raw, err := c.oracle.Complete(ctx, oracle.Request{
		System:      emotionSystemPrompt,
		User:        prompt,
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		c.logger.Warn("emotion classification call failed", "error", err)
		return nil
	}

	var wire emotionWire
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &wire); err != nil {
		c.logger.Warn("emotion response parse failed", "error", err, "raw", raw)
		return emotionFallback()
	}
	if wire.EmotionType == "" || wire.Intensity < 1 || wire.Intensity > 10 {
		c.logger.Warn("emotion response out of range", "emotion_type", wire.EmotionType, "intensity", wire.Intensity)
		return emotionFallback()
	}

	return &types.EmotionRecord{
		EmotionType: wire.EmotionType,
		Intensity:   wire.Intensity,
		Context:     wire.Context,
		Keywords:    wire.Keywords,
		Suggestion:  wire.Suggestion,
		Confidence:  confidenceFromIntensity(wire.Intensity),
	}
}

// confidenceFromIntensity derives the confidence band deterministically.
func confidenceFromIntensity(intensity int) string {
	switch {
	case intensity >= 6:
		return "high"
	case intensity >= 3:
		return "medium"
	default:
		return "low"
	}
}

func renderEmotionHistory(records []types.EmotionRecord) string {
	if len(records) == 0 {
		return "없음"
	}
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		ts := ""
		if !rec.CreatedAt.IsZero() {
			ts = rec.CreatedAt.UTC().Format("2006-01-02 15:04") + ": "
		}
		lines = append(lines, fmt.Sprintf("%s%s (%d/10) - %s", ts, rec.EmotionType, rec.Intensity, rec.Context))
	}
	return strings.Join(lines, "\n")
}
