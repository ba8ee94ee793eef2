package engine

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/dearie-ai/dearie/internal/oracle"
)

// stubOracle is a deterministic oracle substitute for unit tests.
type stubOracle struct {
	response string
	err      error

	calls      int
	lastSystem string
	lastUser   string
}

func (s *stubOracle) Complete(_ context.Context, req oracle.Request) (string, error) {
	s.calls++
	s.lastSystem = req.System
	s.lastUser = req.User
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}
