package bot

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/dearie-ai/dearie/internal/telegram"
)

// WebhookHandler decodes Telegram webhook posts and hands them to the bot.
// Processing errors are logged but answered with 200 so Telegram does not
// redeliver a poison update forever.
func WebhookHandler(b *Bot, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var upd telegram.Update
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			logger.Warn("webhook body rejected", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if err := b.HandleUpdate(r.Context(), upd); err != nil {
			logger.Error("update handling failed", "update_id", upd.UpdateID, "error", err)
		}
		w.WriteHeader(http.StatusOK)
	})
}
