package persona

import (
	"strings"
	"testing"

	"github.com/dearie-ai/dearie/pkg/types"
)

func TestStagePrompt(t *testing.T) {
	t.Parallel()
	for stage := types.StageFirstMeeting; stage <= types.StageLongTermPartner; stage++ {
		p := StagePrompt(stage)
		if !strings.Contains(p, "30대 초반의 직장인 여성") {
			t.Fatalf("stage %d prompt missing base character", stage)
		}
		if !strings.Contains(p, "현재 관계:") {
			t.Fatalf("stage %d prompt missing relationship section", stage)
		}
	}

	if StagePrompt(0) != StagePrompt(types.StageFriend) {
		t.Fatal("unknown stage should fall back to the friend prompt")
	}
	if strings.Contains(StagePrompt(types.StageFirstMeeting), "반말") {
		t.Fatal("first-meeting prompt should not carry the friend-stage register")
	}
}

func TestDraftingPrompt(t *testing.T) {
	t.Parallel()
	guide := &types.ResponseGuide{
		Response:       "공감하고 위로해주기",
		Tone:           "따뜻하고 다정한",
		Examples:       []string{"많이 힘들겠다"},
		AdditionalCare: "최근 힘든 시간을 보내고 있으니 더 세심한 관심과 위로 필요",
	}
	emotion := &types.EmotionRecord{EmotionType: "슬픔", Intensity: 7, Context: "야근이 계속됨"}
	memories := []types.MemoryFact{{Key: "직업", Value: "개발자"}}

	p := DraftingPrompt(types.StagePartner, memories, guide, emotion)
	for _, want := range []string{
		"현재 관계: 연인",
		"- 직업: 개발자",
		"사용자의 현재 감정: 슬픔 (강도 7/10)",
		"감정 배경: 야근이 계속됨",
		"이번 답변 방향: 공감하고 위로해주기",
		"참고 표현: 많이 힘들겠다",
		"추가 배려:",
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("drafting prompt missing %q:\n%s", want, p)
		}
	}
}

func TestDraftingPromptOmitsEmptySections(t *testing.T) {
	t.Parallel()
	p := DraftingPrompt(types.StageFriend, nil, nil, nil)
	if strings.Contains(p, "기억하고 있는 사용자 정보") {
		t.Fatal("memory section should be absent without facts")
	}
	if strings.Contains(p, "사용자의 현재 감정") {
		t.Fatal("emotion section should be absent without a record")
	}
	if strings.Contains(p, "이번 답변 방향") {
		t.Fatal("guide section should be absent without a guide")
	}
}
