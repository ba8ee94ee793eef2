package types

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Relationship stages, ordinal 1-5.
const (
	StageFirstMeeting    = 1
	StageFriend          = 2
	StageBuddingInterest = 3
	StagePartner         = 4
	StageLongTermPartner = 5

	// DefaultStage is assigned to first-time users.
	DefaultStage = StageFriend
)

// ValidStage reports whether n is a known relationship stage.
func ValidStage(n int) bool {
	return n >= StageFirstMeeting && n <= StageLongTermPartner
}

// StageName returns the Korean display name for a stage.
func StageName(n int) string {
	switch n {
	case StageFirstMeeting:
		return "처음만남"
	case StageFriend:
		return "친구"
	case StageBuddingInterest:
		return "썸"
	case StagePartner:
		return "연인"
	case StageLongTermPartner:
		return "오래된연인"
	default:
		return "친구"
	}
}

// User is a persisted chat user.
type User struct {
	ID                string    `json:"id"`
	TelegramUserID    int64     `json:"telegram_user_id"`
	TelegramUsername  string    `json:"telegram_username,omitempty"`
	RelationshipStage int       `json:"relationship_stage"`
	CreatedAt         time.Time `json:"created_at"`
	LastActiveAt      time.Time `json:"last_active_at"`
}

// Conversation groups messages for one user. A conversation is active
// while EndedAt is nil.
type Conversation struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Message is one immutable conversation turn.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// MemoryFact is one remembered fact about a user, unique per (user, key).
type MemoryFact struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// PatternSummary is the deterministic per-turn conversation analysis.
// Recomputed on every analysis run, never persisted on its own.
type PatternSummary struct {
	IntimacyLevel    float64 `json:"intimacy_level"`    // 0-1, clamped
	EmotionalTone    string  `json:"emotional_tone"`    // formal|neutral|positive
	FrequencyPattern string  `json:"frequency_pattern"` // low|medium|high
	MessageLength    string  `json:"message_length"`    // short|medium|long
	TopicDepth       string  `json:"topic_depth"`       // surface|medium|deep
	TotalMessages    int     `json:"total_messages"`
	RecentActivity   int     `json:"recent_activity"`
}

// EmotionRecord is one classified emotional state, appended per inbound
// user message when classification succeeds.
type EmotionRecord struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	MessageID   string    `json:"message_id,omitempty"`
	EmotionType string    `json:"emotion_type"`
	Intensity   int       `json:"intensity"` // 1-10
	Context     string    `json:"context"`
	Keywords    []string  `json:"keywords"`
	Suggestion  string    `json:"suggestion"` // 공감|위로|격려|축하|경청|조언
	Confidence  string    `json:"confidence"` // low|medium|high
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// RelationshipInference is one append-only stage analysis result.
// The inference only proposes; the persisted stage is mutated through the
// explicit transition-commit path.
type RelationshipInference struct {
	CurrentStage            int            `json:"current_stage"`
	CurrentStageAppropriate bool           `json:"current_stage_appropriate"`
	SuggestedStage          int            `json:"suggested_stage"`
	Confidence              float64        `json:"confidence"`
	Reasoning               string         `json:"reasoning"`
	KeyIndicators           []string       `json:"key_indicators"`
	ShouldAskConfirmation   bool           `json:"should_ask_confirmation"`
	ConfirmationQuestion    string         `json:"confirmation_question,omitempty"`
	Patterns                PatternSummary `json:"patterns"`
	// AnalysisError records the fallback cause when oracle output was
	// rejected. Empty on a clean run.
	AnalysisError string `json:"analysis_error,omitempty"`
}

// ResponseGuide shapes the tone of the generated reply for the current
// emotional state. Ephemeral, recomputed each turn.
type ResponseGuide struct {
	Response       string   `json:"response"` // response directive
	Tone           string   `json:"tone"`
	Examples       []string `json:"examples"`
	AdditionalCare string   `json:"additional_care,omitempty"`
}

// TurnContext is the merged context bundle returned by the engine for one
// conversational turn.
type TurnContext struct {
	Emotion          *EmotionRecord         `json:"emotion,omitempty"`
	Guide            *ResponseGuide         `json:"guide,omitempty"`
	Inference        *RelationshipInference `json:"inference,omitempty"`
	ConfirmationText string                 `json:"confirmation_text,omitempty"`
}
