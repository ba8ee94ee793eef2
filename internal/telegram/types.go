package telegram

// Update is one inbound event from the Bot API webhook. Only the message
// branch is handled; other update kinds decode with a nil Message and are
// ignored upstream.
type Update struct {
	UpdateID int64            `json:"update_id"`
	Message  *IncomingMessage `json:"message,omitempty"`
}

// IncomingMessage is the subset of the Bot API message object the bot
// consumes.
type IncomingMessage struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// User identifies the Telegram account behind a message.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat identifies where a message was sent.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}
