package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dearie-ai/dearie/pkg/types"
)

func stageHistory(n int) []types.Message {
	history := make([]types.Message, 0, n)
	for i := 0; i < n; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAgent
		}
		history = append(history, types.Message{Role: role, Content: "오늘 뭐 했어?"})
	}
	return history
}

func TestStageInfer_AcceptsWellFormedResponse(t *testing.T) {
	t.Parallel()
	stub := &stubOracle{response: `{
		"current_stage_appropriate": false,
		"suggested_stage": 3,
		"confidence": 0.85,
		"reasoning": "애칭 사용과 그리움 표현이 늘었습니다",
		"key_indicators": ["애칭", "보고싶다는 표현"],
		"should_ask_confirmation": true,
		"natural_confirmation_question": "  우리 요즘 좀 더 가까워진 것 같지 않아?  "
	}`}
	si := NewStageInferencer(stub, discardLogger())

	inf := si.Infer(context.Background(), stageHistory(6), 2, nil)
	if inf.CurrentStage != 2 || inf.SuggestedStage != 3 {
		t.Fatalf("stages = %d -> %d, want 2 -> 3", inf.CurrentStage, inf.SuggestedStage)
	}
	if inf.CurrentStageAppropriate {
		t.Fatal("CurrentStageAppropriate = true, want false")
	}
	if inf.Confidence != 0.85 {
		t.Fatalf("Confidence = %v, want 0.85", inf.Confidence)
	}
	if !inf.ShouldAskConfirmation {
		t.Fatal("ShouldAskConfirmation = false, want true")
	}
	if inf.ConfirmationQuestion != "우리 요즘 좀 더 가까워진 것 같지 않아?" {
		t.Fatalf("ConfirmationQuestion = %q, want trimmed question", inf.ConfirmationQuestion)
	}
	if inf.AnalysisError != "" {
		t.Fatalf("AnalysisError = %q, want empty", inf.AnalysisError)
	}
	if inf.Patterns.TotalMessages != 6 {
		t.Fatalf("Patterns.TotalMessages = %d, want 6", inf.Patterns.TotalMessages)
	}
}

func TestStageInfer_FallsBackOnOracleError(t *testing.T) {
	t.Parallel()
	stub := &stubOracle{err: errors.New("connection refused")}
	si := NewStageInferencer(stub, discardLogger())

	inf := si.Infer(context.Background(), stageHistory(5), 4, nil)
	if inf.SuggestedStage != 4 || !inf.CurrentStageAppropriate {
		t.Fatalf("fallback = %+v, want no-change suggestion", inf)
	}
	if inf.Confidence != 0.5 {
		t.Fatalf("Confidence = %v, want 0.5", inf.Confidence)
	}
	if inf.Reasoning != "분석 중 오류가 발생했습니다." {
		t.Fatalf("Reasoning = %q", inf.Reasoning)
	}
	if inf.ShouldAskConfirmation {
		t.Fatal("fallback must never ask for confirmation")
	}
	if inf.AnalysisError == "" {
		t.Fatal("AnalysisError empty, want the upstream cause recorded")
	}
}

func TestStageInfer_RejectsBadSuggestedStages(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		response string
	}{
		{"stage zero", `{"current_stage_appropriate": false, "suggested_stage": 0, "confidence": 0.9}`},
		{"stage above range", `{"current_stage_appropriate": false, "suggested_stage": 6, "confidence": 0.9}`},
		{"non-integer stage", `{"current_stage_appropriate": false, "suggested_stage": 2.5, "confidence": 0.9}`},
		{"string stage", `{"current_stage_appropriate": false, "suggested_stage": "high", "confidence": 0.9}`},
		{"not json", `단계가 올라간 것 같아요!`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			si := NewStageInferencer(&stubOracle{response: tc.response}, discardLogger())
			inf := si.Infer(context.Background(), stageHistory(5), 3, nil)
			if inf.SuggestedStage != 3 || !inf.CurrentStageAppropriate {
				t.Fatalf("got %+v, want no-change fallback", inf)
			}
			if inf.AnalysisError == "" {
				t.Fatal("AnalysisError empty, want rejection cause")
			}
		})
	}
}

func TestStageInfer_PromptIncludesMemoriesAndStage(t *testing.T) {
	t.Parallel()
	stub := &stubOracle{response: `{"current_stage_appropriate": true, "suggested_stage": 2, "confidence": 0.6}`}
	si := NewStageInferencer(stub, discardLogger())

	memories := []types.MemoryFact{
		{Key: "직업", Value: "간호사"},
		{Key: "취미", Value: "운동"},
	}
	si.Infer(context.Background(), stageHistory(5), 2, memories)

	if !strings.Contains(stub.lastUser, "현재 관계 단계: 2") {
		t.Fatalf("prompt missing current stage:\n%s", stub.lastUser)
	}
	if !strings.Contains(stub.lastUser, "사용자 정보: 직업: 간호사, 취미: 운동") {
		t.Fatalf("prompt missing memory facts:\n%s", stub.lastUser)
	}
}

func TestStageInfer_PromptWindowsHistoryToTen(t *testing.T) {
	t.Parallel()
	stub := &stubOracle{response: `{"current_stage_appropriate": true, "suggested_stage": 2, "confidence": 0.6}`}
	si := NewStageInferencer(stub, discardLogger())

	history := stageHistory(12)
	history[0].Content = "아주 오래된 첫 메시지"
	si.Infer(context.Background(), history, 2, nil)

	if strings.Contains(stub.lastUser, "아주 오래된 첫 메시지") {
		t.Fatalf("prompt should only carry the most recent messages:\n%s", stub.lastUser)
	}
	if !strings.Contains(stub.lastUser, "총 메시지 수: 12") {
		t.Fatalf("pattern summary should still cover the full history:\n%s", stub.lastUser)
	}
}
