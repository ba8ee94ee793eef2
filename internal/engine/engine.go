// Package engine implements the relationship and emotional state inference
// core: deterministic conversation pattern analysis, oracle-backed emotion
// classification and stage inference, the response guide table, and the
// confidence-gated stage transition policy.
//
// The engine holds no cross-turn state; every Analyze call is one
// independent unit of work.
package engine

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/dearie-ai/dearie/internal/oracle"
	"github.com/dearie-ai/dearie/pkg/types"
)

// TurnInput carries everything the engine needs for one inbound message.
type TurnInput struct {
	// Message is the latest user utterance.
	Message string
	// History is the conversation window in chronological order. It does
	// not yet include Message.
	History []types.Message
	// PriorMessageCount is the total number of persisted messages in the
	// conversation before this turn.
	PriorMessageCount int
	// CurrentStage is the user's persisted relationship stage.
	CurrentStage int
	// Memories are the user's stored facts, read-only context.
	Memories []types.MemoryFact
	// RecentEmotions is the user's emotion history, newest-first.
	RecentEmotions []types.EmotionRecord
}

// Engine orchestrates the per-turn inference pipeline.
type Engine struct {
	emotions *EmotionClassifier
	stages   *StageInferencer
	logger   *log.Logger
}

// New constructs an engine bound to an oracle client.
func New(client oracle.Client, logger *log.Logger) *Engine {
	return &Engine{
		emotions: NewEmotionClassifier(client, logger),
		stages:   NewStageInferencer(client, logger),
		logger:   logger,
	}
}

// Analyze runs one turn of inference and returns the merged context
// bundle. It never returns an error: each sub-step degrades to its
// documented fallback instead of aborting the turn.
func (e *Engine) Analyze(ctx context.Context, in TurnInput) types.TurnContext {
	emotion := e.emotions.Classify(ctx, in.Message, in.RecentEmotions)
	guide := BuildResponseGuide(emotion, in.RecentEmotions)

	var inference *types.RelationshipInference
	if ShouldInfer(in.PriorMessageCount, in.CurrentStage, len(in.History)) {
		inf := e.stages.Infer(ctx, in.History, in.CurrentStage, in.Memories)
		inference = &inf
		e.logger.Debug("stage inference ran",
			"current", inf.CurrentStage,
			"suggested", inf.SuggestedStage,
			"confidence", inf.Confidence,
		)
	}

	confirmation := ""
	if ShouldAppendConfirmation(inference) {
		confirmation = inference.ConfirmationQuestion
	}

	return types.TurnContext{
		Emotion:          emotion,
		Guide:            &guide,
		Inference:        inference,
		ConfirmationText: confirmation,
	}
}
