package engine

import "github.com/dearie-ai/dearie/pkg/types"

// inferenceFloor is the minimum history length required before stage
// inference actually runs, independent of the trigger conditions.
const inferenceFloor = 5

// TriggerFires reports whether this turn is scheduled for stage inference:
// every 5th prior message, or at exactly 3 prior messages while the user is
// still on the default stage (early signal for new-but-expressive
// relationships).
func TriggerFires(priorMessageCount, currentStage int) bool {
	if priorMessageCount > 0 && priorMessageCount%5 == 0 {
		return true
	}
	return priorMessageCount == 3 && currentStage == types.DefaultStage
}

// ShouldInfer applies the history floor on top of the trigger. The
// exactly-3 trigger can fire while the floor blocks execution; that
// asymmetry is intentional and pinned by tests.
func ShouldInfer(priorMessageCount, currentStage, historyLen int) bool {
	return TriggerFires(priorMessageCount, currentStage) && historyLen >= inferenceFloor
}

// confirmationThreshold gates surfacing the oracle's confirmation
// question. Strictly greater-than: 0.7 exactly does not qualify.
const confirmationThreshold = 0.7

// ShouldAppendConfirmation reports whether the inference's confirmation
// question may be surfaced in the outbound reply.
func ShouldAppendConfirmation(inf *types.RelationshipInference) bool {
	if inf == nil {
		return false
	}
	return inf.ShouldAskConfirmation &&
		inf.Confidence > confirmationThreshold &&
		inf.ConfirmationQuestion != ""
}

// AppendConfirmation attaches the confirmation question to a drafted reply
// with a blank-line separator. Returns the reply unchanged when the
// surfacing rule does not hold.
func AppendConfirmation(reply string, inf *types.RelationshipInference) string {
	if !ShouldAppendConfirmation(inf) {
		return reply
	}
	return reply + "\n\n" + inf.ConfirmationQuestion
}
