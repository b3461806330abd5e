package http

import (
	"context"
	"log/slog"
)

// MapSession exposes the WebSocket session logic to external tests.
type MapSession struct{ s *mapSession }

func NewMapSession(ctx context.Context, deps *Dependencies, w interface {
	WriteMessage(int, []byte) error
}) *MapSession {
	return &MapSession{s: newMapSession(ctx, deps, w, slog.Default())}
}

func (m *MapSession) Handle(data []byte) { m.s.handle(data) }
func (m *MapSession) Wait()              { m.s.wait() }
