package bot

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dearie-ai/dearie/internal/dedup"
)

func TestWebhookHandler(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	or := &scriptedOracle{responses: []string{happyEmotionJSON, "반가워!"}}
	sender := &recordingSender{}
	b := New(st, or, sender, dedup.NoopGuard{}, testLogger(), Options{})
	handler := WebhookHandler(b, testLogger())

	body := `{"update_id": 9, "message": {"message_id": 1, "from": {"id": 555, "first_name": "민수"}, "chat": {"id": 900}, "text": "안녕!"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "반가워!", sender.sent[0])
}

func TestWebhookHandlerRejectsBadRequests(t *testing.T) {
	t.Parallel()
	b := New(newFakeStore(), &scriptedOracle{}, &recordingSender{}, dedup.NoopGuard{}, testLogger(), Options{})
	handler := WebhookHandler(b, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
