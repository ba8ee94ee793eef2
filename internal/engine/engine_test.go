package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dearie-ai/dearie/pkg/types"
)

func TestAnalyze_FirstTurn(t *testing.T) {
	t.Parallel()
	stub := &stubOracle{response: `{"emotion_type": "기쁨", "intensity": 6, "context": "반가운 인사", "keywords": ["안녕"], "suggestion": "축하"}`}
	eng := New(stub, discardLogger())

	tc := eng.Analyze(context.Background(), TurnInput{
		Message:      "안녕!",
		CurrentStage: types.DefaultStage,
	})

	require.NotNil(t, tc.Emotion)
	assert.Equal(t, "기쁨", tc.Emotion.EmotionType)
	require.NotNil(t, tc.Guide)
	assert.Equal(t, responseGuides["기쁨"].Response, tc.Guide.Response)
	assert.Nil(t, tc.Inference, "no inference before the first trigger")
	assert.Empty(t, tc.ConfirmationText)
	assert.Equal(t, 1, stub.calls, "only the emotion oracle call should run")
}

func TestAnalyze_TriggerTurnRunsInference(t *testing.T) {
	t.Parallel()
	stub := &stubOracle{response: `{
		"emotion_type": "설렘", "intensity": 7, "keywords": [],
		"current_stage_appropriate": false, "suggested_stage": 3,
		"confidence": 0.9, "reasoning": "애정 표현 빈도 증가",
		"should_ask_confirmation": true,
		"natural_confirmation_question": "우리 사이, 뭔가 달라진 것 같지 않아?"
	}`}
	eng := New(stub, discardLogger())

	history := make([]types.Message, 0, 10)
	for i := 0; i < 10; i++ {
		history = append(history, types.Message{Role: types.RoleUser, Content: "사랑해 보고싶어"})
	}
	tc := eng.Analyze(context.Background(), TurnInput{
		Message:           "사랑해",
		History:           history,
		PriorMessageCount: 10,
		CurrentStage:      2,
	})

	require.NotNil(t, tc.Inference)
	assert.Equal(t, 3, tc.Inference.SuggestedStage)
	assert.Equal(t, 2, tc.Inference.CurrentStage)
	assert.Equal(t, "우리 사이, 뭔가 달라진 것 같지 않아?", tc.ConfirmationText)
	assert.Equal(t, 2, stub.calls, "emotion and stage calls both run on a trigger turn")
	assert.InDelta(t, 1.0, tc.Inference.Patterns.IntimacyLevel, 0.001)
}

func TestAnalyze_OracleDownStillProducesGuide(t *testing.T) {
	t.Parallel()
	stub := &stubOracle{err: context.DeadlineExceeded}
	eng := New(stub, discardLogger())

	history := make([]types.Message, 0, 5)
	for i := 0; i < 5; i++ {
		history = append(history, types.Message{Role: types.RoleUser, Content: "요즘 너무 우울해"})
	}
	tc := eng.Analyze(context.Background(), TurnInput{
		Message:           "힘들다",
		History:           history,
		PriorMessageCount: 5,
		CurrentStage:      2,
	})

	assert.Nil(t, tc.Emotion, "transport failure yields no emotion record")
	require.NotNil(t, tc.Guide)
	assert.Equal(t, defaultGuide().Response, tc.Guide.Response)
	require.NotNil(t, tc.Inference, "trigger turn still produces a fallback inference")
	assert.Equal(t, 2, tc.Inference.SuggestedStage)
	assert.NotEmpty(t, tc.Inference.AnalysisError)
	assert.Empty(t, tc.ConfirmationText, "fallback never surfaces a confirmation")
}

func TestAnalyze_LowConfidenceSuppressesConfirmation(t *testing.T) {
	t.Parallel()
	stub := &stubOracle{response: `{
		"emotion_type": "중립", "intensity": 4, "keywords": [],
		"current_stage_appropriate": false, "suggested_stage": 3,
		"confidence": 0.6, "should_ask_confirmation": true,
		"natural_confirmation_question": "우리 좀 친해졌지?"
	}`}
	eng := New(stub, discardLogger())

	history := make([]types.Message, 0, 5)
	for i := 0; i < 5; i++ {
		history = append(history, types.Message{Role: types.RoleUser, Content: "안녕"})
	}
	tc := eng.Analyze(context.Background(), TurnInput{
		Message:           "안녕",
		History:           history,
		PriorMessageCount: 5,
		CurrentStage:      2,
	})

	require.NotNil(t, tc.Inference)
	assert.True(t, tc.Inference.ShouldAskConfirmation)
	assert.Empty(t, tc.ConfirmationText, "0.6 confidence is below the surfacing threshold")
}
