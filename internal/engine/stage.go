package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dearie-ai/dearie/internal/oracle"
	"github.com/dearie-ai/dearie/pkg/types"
)

const stageSystemPrompt = "당신은 인간 관계 전문가입니다. 대화 패턴을 분석하여 관계 발전 단계를 정확히 추론해주세요. 응답은 반드시 유효한 JSON 형식이어야 합니다."

const stagePromptTemplate = `다음은 사용자와 AI 여자친구 간의 최근 대화입니다.

현재 관계 단계: %d (1:처음만남, 2:친구, 3:썸, 4:연인, 5:오래된연인)

최근 대화:
%s

%s
대화 패턴 분석:
- 친밀도 레벨: %.2f
- 감정 톤: %s
- 메시지 빈도: %s
- 메시지 길이: %s
- 주제 깊이: %s
- 총 메시지 수: %d

위 대화와 패턴을 분석하여 현재 관계 단계가 적절한지 판단해주세요.

응답 형식 (JSON):
{
  "current_stage_appropriate": true/false,
  "suggested_stage": 1-5,
  "confidence": 0.0-1.0,
  "reasoning": "구체적인 이유",
  "key_indicators": ["지표1", "지표2", "지표3"],
  "should_ask_confirmation": true/false,
  "natural_confirmation_question": "자연스러운 확인 질문 (있다면)"
}`

// StageInferencer asks the oracle whether the current relationship stage
// is still appropriate. The oracle only proposes; it never mutates state.
type StageInferencer struct {
	oracle oracle.Client
	logger *log.Logger
}

// NewStageInferencer creates an inferencer bound to an oracle client.
func NewStageInferencer(client oracle.Client, logger *log.Logger) *StageInferencer {
	return &StageInferencer{oracle: client, logger: logger}
}

// stageWire mirrors the JSON shape the oracle is instructed to return.
// suggested_stage is decoded as float64 so a non-integer value can be
// rejected instead of silently truncated.
type stageWire struct {
	CurrentStageAppropriate bool     `json:"current_stage_appropriate"`
	SuggestedStage          float64  `json:"suggested_stage"`
	Confidence              float64  `json:"confidence"`
	Reasoning               string   `json:"reasoning"`
	KeyIndicators           []string `json:"key_indicators"`
	ShouldAskConfirmation   bool     `json:"should_ask_confirmation"`
	ConfirmationQuestion    string   `json:"natural_confirmation_question"`
}

// Infer produces a RelationshipInference for the given history, current
// stage and memory facts. It never fails: rejected or unreachable oracle
// output degrades to a no-change fallback with the cause recorded in
// AnalysisError.
func (si *StageInferencer) Infer(ctx context.Context, history []types.Message, currentStage int, memories []types.MemoryFact) types.RelationshipInference {
	patterns := AnalyzePatterns(history)

	recent := history
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	prompt := fmt.Sprintf(stagePromptTemplate,
		currentStage,
		renderMessages(recent),
		renderMemories(memories),
		patterns.IntimacyLevel,
		patterns.EmotionalTone,
		patterns.FrequencyPattern,
		patterns.MessageLength,
		patterns.TopicDepth,
		patterns.TotalMessages,
	)

	raw, err := si.oracle.Complete(ctx, oracle.Request{
		System:      stageSystemPrompt,
		User:        prompt,
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		si.logger.Warn("stage inference call failed", "stage", currentStage, "error", err)
		return stageFallback(currentStage, patterns, err.Error())
	}

	var wire stageWire
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &wire); err != nil {
		si.logger.Warn("stage response parse failed", "stage", currentStage, "error", err, "raw", raw)
		return stageFallback(currentStage, patterns, err.Error())
	}

	suggested := int(wire.SuggestedStage)
	if wire.SuggestedStage != math.Trunc(wire.SuggestedStage) || !types.ValidStage(suggested) {
		si.logger.Warn("stage response rejected", "stage", currentStage, "suggested", wire.SuggestedStage)
		return stageFallback(currentStage, patterns, fmt.Sprintf("invalid suggested stage %v", wire.SuggestedStage))
	}

	return types.RelationshipInference{
		CurrentStage:            currentStage,
		CurrentStageAppropriate: wire.CurrentStageAppropriate,
		SuggestedStage:          suggested,
		Confidence:              wire.Confidence,
		Reasoning:               wire.Reasoning,
		KeyIndicators:           wire.KeyIndicators,
		ShouldAskConfirmation:   wire.ShouldAskConfirmation,
		ConfirmationQuestion:    strings.TrimSpace(wire.ConfirmationQuestion),
		Patterns:                patterns,
	}
}

func stageFallback(currentStage int, patterns types.PatternSummary, cause string) types.RelationshipInference {
	return types.RelationshipInference{
		CurrentStage:            currentStage,
		CurrentStageAppropriate: true,
		SuggestedStage:          currentStage,
		Confidence:              0.5,
		Reasoning:               "분석 중 오류가 발생했습니다.",
		KeyIndicators:           []string{},
		ShouldAskConfirmation:   false,
		Patterns:                patterns,
		AnalysisError:           cause,
	}
}

func renderMessages(messages []types.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Role, msg.Content))
	}
	return strings.Join(lines, "\n")
}

func renderMemories(memories []types.MemoryFact) string {
	if len(memories) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(memories))
	for _, m := range memories {
		pairs = append(pairs, fmt.Sprintf("%s: %s", m.Key, m.Value))
	}
	return "사용자 정보: " + strings.Join(pairs, ", ") + "\n\n"
}
