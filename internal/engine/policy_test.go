package engine

import (
	"testing"

	"github.com/dearie-ai/dearie/pkg/types"
)

func TestTriggerFires(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		count int
		stage int
		want  bool
	}{
		{"zero prior messages", 0, types.DefaultStage, false},
		{"every fifth message", 5, 4, true},
		{"tenth message", 10, 1, true},
		{"third message on default stage", 3, types.DefaultStage, true},
		{"third message past default stage", 3, 3, false},
		{"fourth message on default stage", 4, types.DefaultStage, false},
		{"seventh message", 7, types.DefaultStage, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := TriggerFires(tc.count, tc.stage); got != tc.want {
				t.Fatalf("TriggerFires(%d, %d) = %v, want %v", tc.count, tc.stage, got, tc.want)
			}
		})
	}
}

func TestShouldInferAppliesHistoryFloor(t *testing.T) {
	t.Parallel()
	// The exactly-3 trigger fires but 3 messages of history never clear
	// the floor of 5, so the early trigger is inert in practice.
	if !TriggerFires(3, types.DefaultStage) {
		t.Fatal("early trigger should fire at 3 prior messages on the default stage")
	}
	if ShouldInfer(3, types.DefaultStage, 3) {
		t.Fatal("ShouldInfer must stay false below the history floor")
	}

	if !ShouldInfer(5, 3, 5) {
		t.Fatal("ShouldInfer(5, 3, 5) = false, want true")
	}
	if ShouldInfer(5, 3, 4) {
		t.Fatal("ShouldInfer(5, 3, 4) = true, want false below the floor")
	}
}

func TestShouldAppendConfirmation(t *testing.T) {
	t.Parallel()
	base := types.RelationshipInference{
		ShouldAskConfirmation: true,
		Confidence:            0.9,
		ConfirmationQuestion:  "우리 이제 좀 더 가까워진 것 같지 않아?",
	}

	if !ShouldAppendConfirmation(&base) {
		t.Fatal("want true for confident inference with a question")
	}

	atThreshold := base
	atThreshold.Confidence = 0.7
	if ShouldAppendConfirmation(&atThreshold) {
		t.Fatal("confidence of exactly 0.7 must not qualify")
	}

	noAsk := base
	noAsk.ShouldAskConfirmation = false
	if ShouldAppendConfirmation(&noAsk) {
		t.Fatal("want false when the oracle did not ask for confirmation")
	}

	noQuestion := base
	noQuestion.ConfirmationQuestion = ""
	if ShouldAppendConfirmation(&noQuestion) {
		t.Fatal("want false without a question to surface")
	}

	if ShouldAppendConfirmation(nil) {
		t.Fatal("want false for nil inference")
	}
}

func TestAppendConfirmation(t *testing.T) {
	t.Parallel()
	inf := &types.RelationshipInference{
		ShouldAskConfirmation: true,
		Confidence:            0.8,
		ConfirmationQuestion:  "요즘 우리 되게 친해진 것 같지?",
	}
	got := AppendConfirmation("오늘 하루도 고생했어!", inf)
	want := "오늘 하루도 고생했어!\n\n요즘 우리 되게 친해진 것 같지?"
	if got != want {
		t.Fatalf("AppendConfirmation = %q, want %q", got, want)
	}

	if got := AppendConfirmation("안녕!", nil); got != "안녕!" {
		t.Fatalf("AppendConfirmation with nil inference = %q, want unchanged reply", got)
	}
}
