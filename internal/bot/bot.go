// Package bot wires the webhook pipeline: dedupe inbound updates, load the
// user's context from the store, run the inference engine, draft a reply
// in persona, and persist everything the turn produced.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dearie-ai/dearie/internal/dedup"
	"github.com/dearie-ai/dearie/internal/engine"
	"github.com/dearie-ai/dearie/internal/oracle"
	"github.com/dearie-ai/dearie/internal/persona"
	"github.com/dearie-ai/dearie/internal/store"
	"github.com/dearie-ai/dearie/internal/telegram"
	"github.com/dearie-ai/dearie/pkg/types"
)

// Sender delivers outbound messages. Satisfied by *telegram.Client.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// draftFallback is sent when the reply oracle is unreachable. The turn is
// still persisted so the conversation history stays coherent.
const draftFallback = "아, 잠깐만! 지금 생각이 안 나네... 다시 말해줄래? 🥺"

const startGreeting = "안녕! 드디어 만났네 😊 나는 네 얘기를 듣는 걸 좋아해. 오늘 하루 어땠어?"

// memoryConfidence is the default confidence for facts saved through the
// /remember command.
const memoryConfidence = 0.8

// acceptanceMarkers are matched against the message that immediately
// follows a stage confirmation question.
var acceptanceMarkers = []string{"응", "맞아", "그래", "좋아", "그런 것 같아", "인정"}

// pendingSuggestion is a stage change awaiting the user's answer to the
// confirmation question appended to the previous reply.
type pendingSuggestion struct {
	suggestedStage   int
	reason           string
	triggerMessageID string
}

// Options tunes the per-turn context windows.
type Options struct {
	// HistoryLimit caps how many messages are loaded for analysis.
	HistoryLimit int
	// EmotionLookback caps how many emotion records are loaded.
	EmotionLookback int
}

// Bot handles decoded Telegram updates end to end.
type Bot struct {
	store  store.Store
	engine *engine.Engine
	oracle oracle.Client
	sender Sender
	guard  dedup.Guard
	logger *log.Logger
	opts   Options

	mu      sync.Mutex
	pending map[string]pendingSuggestion
}

// New assembles a bot. The oracle client is shared between the engine and
// reply drafting.
func New(st store.Store, client oracle.Client, sender Sender, guard dedup.Guard, logger *log.Logger, opts Options) *Bot {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if opts.EmotionLookback <= 0 {
		opts.EmotionLookback = 10
	}
	return &Bot{
		store:   st,
		engine:  engine.New(client, logger),
		oracle:  client,
		sender:  sender,
		guard:   guard,
		logger:  logger,
		opts:    opts,
		pending: make(map[string]pendingSuggestion),
	}
}

// HandleUpdate processes one webhook update. Returns nil for updates the
// bot does not handle (non-message updates, empty text, duplicates).
func (b *Bot) HandleUpdate(ctx context.Context, upd telegram.Update) error {
	if upd.Message == nil || upd.Message.Text == "" || upd.Message.From == nil {
		return nil
	}

	first, err := b.guard.FirstDelivery(ctx, upd.UpdateID)
	if err != nil {
		// Fail open: a broken dedupe layer should not drop messages.
		b.logger.Warn("dedupe check failed", "update_id", upd.UpdateID, "error", err)
	} else if !first {
		b.logger.Debug("duplicate update dropped", "update_id", upd.UpdateID)
		return nil
	}

	msg := upd.Message
	name := msg.From.FirstName
	if name == "" {
		name = msg.From.Username
	}
	user, err := b.store.GetOrCreateUser(ctx, msg.From.ID, name)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	if cmd, args, ok := parseCommand(msg.Text); ok {
		return b.handleCommand(ctx, user, msg.Chat.ID, cmd, args)
	}
	return b.handleMessage(ctx, user, msg.Chat.ID, msg.Text)
}

func parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	cmd, args, _ = strings.Cut(strings.TrimPrefix(text, "/"), " ")
	// Strip the @botname suffix Telegram appends in group chats.
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args), true
}

func (b *Bot) handleCommand(ctx context.Context, user types.User, chatID int64, cmd, args string) error {
	switch cmd {
	case "start":
		return b.sender.SendMessage(ctx, chatID, startGreeting)
	case "remember":
		key, value, _ := strings.Cut(args, " ")
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			return b.sender.SendMessage(ctx, chatID, "이렇게 알려줘: /remember 취미 러닝")
		}
		if _, err := b.store.UpsertMemory(ctx, user.ID, key, value, memoryConfidence); err != nil {
			return fmt.Errorf("save memory: %w", err)
		}
		return b.sender.SendMessage(ctx, chatID, fmt.Sprintf("기억했어! %s: %s 💕", key, value))
	default:
		b.logger.Debug("unknown command ignored", "command", cmd)
		return nil
	}
}

func (b *Bot) handleMessage(ctx context.Context, user types.User, chatID int64, text string) error {
	stage := user.RelationshipStage
	if !types.ValidStage(stage) {
		stage = types.DefaultStage
	}

	// A pending suggestion is resolved by the very next message, accepted
	// or not.
	if sg, ok := b.takePending(user.ID); ok {
		if isAcceptance(text) {
			newStage, err := b.commitTransition(ctx, user.ID, stage, sg)
			if err != nil {
				return err
			}
			stage = newStage
		} else {
			b.logger.Info("stage suggestion declined", "user", user.ID, "suggested", sg.suggestedStage)
		}
	}

	conv, err := b.store.GetOrCreateActiveConversation(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	priorCount, err := b.store.CountMessages(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	history, err := b.store.RecentMessages(ctx, conv.ID, b.opts.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	memories, err := b.store.UserMemories(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load memories: %w", err)
	}
	recentEmotions, err := b.store.RecentEmotions(ctx, user.ID, b.opts.EmotionLookback)
	if err != nil {
		return fmt.Errorf("load emotions: %w", err)
	}

	userMsg, err := b.store.AppendMessage(ctx, conv.ID, user.ID, types.RoleUser, text)
	if err != nil {
		return fmt.Errorf("persist message: %w", err)
	}

	tc := b.engine.Analyze(ctx, engine.TurnInput{
		Message:           text,
		History:           history,
		PriorMessageCount: priorCount,
		CurrentStage:      stage,
		Memories:          memories,
		RecentEmotions:    recentEmotions,
	})

	reply := b.draftReply(ctx, stage, text, history, memories, tc)
	reply = engine.AppendConfirmation(reply, tc.Inference)

	if err := b.sender.SendMessage(ctx, chatID, reply); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	agentMsg, err := b.store.AppendMessage(ctx, conv.ID, user.ID, types.RoleAgent, reply)
	if err != nil {
		b.logger.Error("persist reply failed", "user", user.ID, "error", err)
	}
	if tc.Emotion != nil {
		rec := *tc.Emotion
		rec.UserID = user.ID
		rec.MessageID = agentMsg.ID
		if _, err := b.store.InsertEmotion(ctx, rec); err != nil {
			b.logger.Error("persist emotion failed", "user", user.ID, "error", err)
		}
	}
	if tc.Inference != nil {
		if err := b.store.InsertInference(ctx, user.ID, *tc.Inference); err != nil {
			b.logger.Error("persist inference failed", "user", user.ID, "error", err)
		}
		if tc.ConfirmationText != "" {
			b.setPending(user.ID, pendingSuggestion{
				suggestedStage:   tc.Inference.SuggestedStage,
				reason:           tc.Inference.Reasoning,
				triggerMessageID: userMsg.ID,
			})
		}
	}
	return nil
}

// draftReply asks the oracle for a reply in persona. The conversation
// window rides in the user prompt; the persona, memories and response
// guide ride in the system prompt.
func (b *Bot) draftReply(ctx context.Context, stage int, text string, history []types.Message, memories []types.MemoryFact, tc types.TurnContext) string {
	var prompt strings.Builder
	if len(history) > 0 {
		prompt.WriteString("최근 대화:\n")
		for _, m := range history {
			fmt.Fprintf(&prompt, "%s: %s\n", m.Role, m.Content)
		}
		prompt.WriteString("\n")
	}
	prompt.WriteString("사용자: " + text)

	reply, err := b.oracle.Complete(ctx, oracle.Request{
		System:      persona.DraftingPrompt(stage, memories, tc.Guide, tc.Emotion),
		User:        prompt.String(),
		Temperature: 0.8,
		MaxTokens:   1000,
	})
	if err != nil {
		b.logger.Warn("reply drafting failed", "error", err)
		return draftFallback
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return draftFallback
	}
	return reply
}

// commitTransition applies an accepted stage suggestion and records the
// transition. Regressions are allowed but logged at a higher level.
func (b *Bot) commitTransition(ctx context.Context, userID string, fromStage int, sg pendingSuggestion) (int, error) {
	if err := b.store.UpdateUserStage(ctx, userID, sg.suggestedStage); err != nil {
		return fromStage, fmt.Errorf("update stage: %w", err)
	}
	if _, err := b.store.InsertTransition(ctx, store.Transition{
		UserID:           userID,
		FromStage:        fromStage,
		ToStage:          sg.suggestedStage,
		TriggerMessageID: sg.triggerMessageID,
		InferenceReason:  sg.reason,
		Confirmed:        true,
		CreatedAt:        time.Now().UTC(),
	}); err != nil {
		b.logger.Error("persist transition failed", "user", userID, "error", err)
	}
	if sg.suggestedStage < fromStage {
		b.logger.Warn("relationship stage regressed",
			"user", userID, "from", fromStage, "to", sg.suggestedStage)
	} else {
		b.logger.Info("relationship stage advanced",
			"user", userID, "from", fromStage, "to", sg.suggestedStage)
	}
	return sg.suggestedStage, nil
}

func isAcceptance(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, marker := range acceptanceMarkers {
		if strings.Contains(trimmed, marker) {
			return true
		}
	}
	return false
}

func (b *Bot) takePending(userID string) (pendingSuggestion, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sg, ok := b.pending[userID]
	if ok {
		delete(b.pending, userID)
	}
	return sg, ok
}

func (b *Bot) setPending(userID string, sg pendingSuggestion) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[userID] = sg
}
