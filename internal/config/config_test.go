package config

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestValidateRejectsBadWebhookPath(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.WebhookPath = "telegram/webhook"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected webhook_path validation error, got nil")
	}
}
