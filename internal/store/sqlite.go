package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dearie-ai/dearie/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Transition is one confirmed relationship stage change, kept for audit.
type Transition struct {
	ID               string
	UserID           string
	FromStage        int
	ToStage          int
	TriggerMessageID string
	InferenceReason  string
	Confirmed        bool
	CreatedAt        time.Time
}

// InferenceRow is a compact relationship inference row for dashboards.
type InferenceRow struct {
	ID             string
	UserID         string
	CurrentStage   int
	SuggestedStage int
	Confidence     float64
	Reasoning      string
	CreatedAt      time.Time
}

// EmotionRow is a compact emotion row for dashboards.
type EmotionRow struct {
	UserID      string
	EmotionType string
	Intensity   int
	Confidence  string
	CreatedAt   time.Time
}

// Stats summarizes database counters for admin dashboards.
type Stats struct {
	Users      int64
	Messages   int64
	Emotions   int64
	Inferences int64
}

// Store represents persistence operations consumed by the bot layer.
type Store interface {
	GetOrCreateUser(ctx context.Context, telegramUserID int64, username string) (types.User, error)
	GetUser(ctx context.Context, id string) (types.User, error)
	UpdateUserStage(ctx context.Context, userID string, stage int) error

	GetOrCreateActiveConversation(ctx context.Context, userID string) (types.Conversation, error)
	CloseIdleConversations(ctx context.Context, cutoff time.Time) (int64, error)

	AppendMessage(ctx context.Context, conversationID, userID string, role types.Role, content string) (types.Message, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]types.Message, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)

	UpsertMemory(ctx context.Context, userID, key, value string, confidence float64) (types.MemoryFact, error)
	UserMemories(ctx context.Context, userID string) ([]types.MemoryFact, error)

	InsertEmotion(ctx context.Context, rec types.EmotionRecord) (types.EmotionRecord, error)
	RecentEmotions(ctx context.Context, userID string, limit int) ([]types.EmotionRecord, error)

	InsertInference(ctx context.Context, userID string, inf types.RelationshipInference) error
	InsertTransition(ctx context.Context, tr Transition) (Transition, error)

	Close() error
}

// SQLiteStore is a SQLite-backed store.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenSQLite opens and initializes the SQLite store.
func OpenSQLite(ctx context.Context, dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	for _, stmt := range splitSQLStatements(schemaSQL) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run schema stmt: %w", err)
		}
	}
	return nil
}

func splitSQLStatements(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p+";")
	}
	return out
}

// GetOrCreateUser looks up a user by Telegram ID, creating the row with the
// default relationship stage on first contact. Existing users get their
// last_active_at refreshed.
func (s *SQLiteStore) GetOrCreateUser(ctx context.Context, telegramUserID int64, username string) (types.User, error) {
	now := time.Now().UTC()

	u, err := s.userByTelegramID(ctx, telegramUserID)
	if err == nil {
		if _, uerr := s.db.ExecContext(ctx,
			`UPDATE users SET last_active_at = ? WHERE id = ?`,
			formatTime(now), u.ID,
		); uerr != nil {
			return u, fmt.Errorf("touch user: %w", uerr)
		}
		u.LastActiveAt = now
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return types.User{}, err
	}

	u = types.User{
		ID:                uuid.NewString(),
		TelegramUserID:    telegramUserID,
		TelegramUsername:  username,
		RelationshipStage: types.DefaultStage,
		CreatedAt:         now,
		LastActiveAt:      now,
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (
		id, telegram_user_id, telegram_username, relationship_stage, created_at, last_active_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.TelegramUserID, u.TelegramUsername, u.RelationshipStage,
		formatTime(u.CreatedAt), formatTime(u.LastActiveAt),
	)
	if err != nil {
		return types.User{}, fmt.Errorf("insert user: %w", err)
	}
	s.logger.Info("created user", "telegram_user_id", telegramUserID, "username", username)
	return u, nil
}

func (s *SQLiteStore) userByTelegramID(ctx context.Context, telegramUserID int64) (types.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, telegram_user_id, telegram_username, relationship_stage, created_at, last_active_at
FROM users WHERE telegram_user_id = ? LIMIT 1`, telegramUserID)
	return scanUser(row)
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (types.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, telegram_user_id, telegram_username, relationship_stage, created_at, last_active_at
FROM users WHERE id = ? LIMIT 1`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (types.User, error) {
	var (
		u            types.User
		createdAt    string
		lastActiveAt string
	)
	err := row.Scan(&u.ID, &u.TelegramUserID, &u.TelegramUsername, &u.RelationshipStage, &createdAt, &lastActiveAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, ErrNotFound
		}
		return u, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	u.LastActiveAt = parseTime(lastActiveAt)
	return u, nil
}

// UpdateUserStage sets the persisted relationship stage.
func (s *SQLiteStore) UpdateUserStage(ctx context.Context, userID string, stage int) error {
	if !types.ValidStage(stage) {
		return fmt.Errorf("invalid relationship stage %d", stage)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET relationship_stage = ? WHERE id = ?`, stage, userID)
	if err != nil {
		return fmt.Errorf("update user stage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user stage rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOrCreateActiveConversation returns the newest conversation without an
// ended_at, creating one when none is active.
func (s *SQLiteStore) GetOrCreateActiveConversation(ctx context.Context, userID string) (types.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, title, started_at, ended_at
FROM conversations
WHERE user_id = ? AND ended_at IS NULL
ORDER BY started_at DESC LIMIT 1`, userID)

	conv, err := scanConversation(row)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return types.Conversation{}, err
	}

	now := time.Now().UTC()
	conv = types.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     "대화 " + now.Format("2006-01-02"),
		StartedAt: now,
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO conversations (id, user_id, title, started_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, formatTime(conv.StartedAt))
	if err != nil {
		return types.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	s.logger.Info("created conversation", "conversation", conv.ID, "user", userID)
	return conv, nil
}

func scanConversation(row *sql.Row) (types.Conversation, error) {
	var (
		conv      types.Conversation
		startedAt string
		endedAt   sql.NullString
	)
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &startedAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conv, ErrNotFound
		}
		return conv, fmt.Errorf("scan conversation: %w", err)
	}
	conv.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		conv.EndedAt = &t
	}
	return conv, nil
}

// CloseIdleConversations ends active conversations whose latest message is
// older than cutoff. Conversations with no messages age out by started_at.
func (s *SQLiteStore) CloseIdleConversations(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations
SET ended_at = ?
WHERE ended_at IS NULL
  AND COALESCE(
	(SELECT MAX(m.created_at) FROM messages m WHERE m.conversation_id = conversations.id),
	started_at
  ) <= ?`,
		formatTime(time.Now().UTC()), formatTime(cutoff.UTC()))
	if err != nil {
		return 0, fmt.Errorf("close idle conversations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close idle rows affected: %w", err)
	}
	return n, nil
}

// AppendMessage stores one conversation turn.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID, userID string, role types.Role, content string) (types.Message, error) {
	msg := types.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages (id, conversation_id, user_id, role, content, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.UserID, string(msg.Role), msg.Content, formatTime(msg.CreatedAt))
	if err != nil {
		return types.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// RecentMessages returns the last limit messages in chronological
// (oldest-first) order.
func (s *SQLiteStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]types.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, conversation_id, user_id, role, content, created_at
FROM messages
WHERE conversation_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]types.Message, 0, limit)
	for rows.Next() {
		var (
			msg       types.Message
			role      string
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = types.Role(role)
		msg.CreatedAt = parseTime(createdAt)
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers want chronological order.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (s *SQLiteStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// UpsertMemory writes a memory fact with last-write-wins semantics per
// (user, key).
func (s *SQLiteStore) UpsertMemory(ctx context.Context, userID, key, value string, confidence float64) (types.MemoryFact, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return types.MemoryFact{}, errors.New("memory key must not be empty")
	}
	if confidence <= 0 || confidence > 1 {
		confidence = 0.8
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO memories (user_id, key, value, confidence, last_updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_id, key) DO UPDATE SET
	value = excluded.value,
	confidence = excluded.confidence,
	last_updated_at = excluded.last_updated_at`,
		userID, key, value, confidence, formatTime(time.Now().UTC()))
	if err != nil {
		return types.MemoryFact{}, fmt.Errorf("upsert memory: %w", err)
	}
	return types.MemoryFact{Key: key, Value: value, Confidence: confidence}, nil
}

// UserMemories returns all memory facts for a user, most recently updated
// first.
func (s *SQLiteStore) UserMemories(ctx context.Context, userID string) ([]types.MemoryFact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, confidence
FROM memories
WHERE user_id = ?
ORDER BY last_updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var items []types.MemoryFact
	for rows.Next() {
		var m types.MemoryFact
		if err := rows.Scan(&m.Key, &m.Value, &m.Confidence); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// InsertEmotion appends one emotion record.
func (s *SQLiteStore) InsertEmotion(ctx context.Context, rec types.EmotionRecord) (types.EmotionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	keywords := rec.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return rec, fmt.Errorf("marshal keywords: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO user_emotions (
		id, user_id, message_id, emotion_type, intensity, context, keywords_json, suggestion, confidence, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.MessageID, rec.EmotionType, rec.Intensity,
		rec.Context, string(keywordsJSON), rec.Suggestion, rec.Confidence,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return rec, fmt.Errorf("insert emotion: %w", err)
	}
	return rec, nil
}

// RecentEmotions returns the last limit emotion records for a user,
// newest-first.
func (s *SQLiteStore) RecentEmotions(ctx context.Context, userID string, limit int) ([]types.EmotionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, message_id, emotion_type, intensity, context, keywords_json, suggestion, confidence, created_at
FROM user_emotions
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list emotions: %w", err)
	}
	defer rows.Close()

	items := make([]types.EmotionRecord, 0, limit)
	for rows.Next() {
		var (
			rec          types.EmotionRecord
			keywordsJSON string
			createdAt    string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.MessageID, &rec.EmotionType, &rec.Intensity,
			&rec.Context, &keywordsJSON, &rec.Suggestion, &rec.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scan emotion: %w", err)
		}
		if err := json.Unmarshal([]byte(keywordsJSON), &rec.Keywords); err != nil {
			rec.Keywords = nil
		}
		rec.CreatedAt = parseTime(createdAt)
		items = append(items, rec)
	}
	return items, rows.Err()
}

// InsertInference appends one relationship inference record (audit log).
func (s *SQLiteStore) InsertInference(ctx context.Context, userID string, inf types.RelationshipInference) error {
	analysisJSON, err := json.Marshal(inf)
	if err != nil {
		return fmt.Errorf("marshal inference: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO relationship_inferences (
		id, user_id, current_stage, suggested_stage, confidence, reasoning, analysis_json, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, inf.CurrentStage, inf.SuggestedStage,
		inf.Confidence, inf.Reasoning, string(analysisJSON),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("insert inference: %w", err)
	}
	return nil
}

// InsertTransition records one confirmed stage change.
func (s *SQLiteStore) InsertTransition(ctx context.Context, tr Transition) (Transition, error) {
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	confirmed := 0
	if tr.Confirmed {
		confirmed = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO relationship_transitions (
		id, user_id, from_stage, to_stage, trigger_message_id, inference_reason, confirmed, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.UserID, tr.FromStage, tr.ToStage, tr.TriggerMessageID,
		tr.InferenceReason, confirmed, formatTime(tr.CreatedAt),
	)
	if err != nil {
		return tr, fmt.Errorf("insert transition: %w", err)
	}
	return tr, nil
}

// Stats returns database counters for the admin dashboard.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&st.Users); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM messages`).Scan(&st.Messages); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM user_emotions`).Scan(&st.Emotions); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM relationship_inferences`).Scan(&st.Inferences); err != nil {
		return st, err
	}
	return st, nil
}

// RecentInferences returns compact inference rows in newest-first order.
func (s *SQLiteStore) RecentInferences(ctx context.Context, limit int) ([]InferenceRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, current_stage, suggested_stage, confidence, reasoning, created_at
FROM relationship_inferences
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list inferences: %w", err)
	}
	defer rows.Close()

	items := make([]InferenceRow, 0, limit)
	for rows.Next() {
		var (
			row       InferenceRow
			createdAt string
		)
		if err := rows.Scan(&row.ID, &row.UserID, &row.CurrentStage, &row.SuggestedStage,
			&row.Confidence, &row.Reasoning, &createdAt); err != nil {
			return nil, fmt.Errorf("scan inference row: %w", err)
		}
		row.CreatedAt = parseTime(createdAt)
		items = append(items, row)
	}
	return items, rows.Err()
}

// RecentEmotionEvents returns compact emotion rows across all users in
// newest-first order.
func (s *SQLiteStore) RecentEmotionEvents(ctx context.Context, limit int) ([]EmotionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, emotion_type, intensity, confidence, created_at
FROM user_emotions
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list emotion events: %w", err)
	}
	defer rows.Close()

	items := make([]EmotionRow, 0, limit)
	for rows.Next() {
		var (
			row       EmotionRow
			createdAt string
		)
		if err := rows.Scan(&row.UserID, &row.EmotionType, &row.Intensity, &row.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scan emotion row: %w", err)
		}
		row.CreatedAt = parseTime(createdAt)
		items = append(items, row)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
