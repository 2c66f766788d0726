package sweeper_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/engine"
	"github.com/plutohub/hub/internal/sweeper"
)

type fakeSessionFinder struct {
	sessions []*domain.GameSession
}

func (f *fakeSessionFinder) FindExpirable(ctx context.Context, nowMillis int64, limit int) ([]*domain.GameSession, error) {
	return f.sessions, nil
}

type fakeExpirer struct {
	mu      sync.Mutex
	expired []string
}

func (f *fakeExpirer) Expire(ctx context.Context, sessionID string) (*engine.CancelOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, sessionID)
	return &engine.CancelOutcome{SessionID: sessionID}, nil
}

func (f *fakeExpirer) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.expired))
	copy(out, f.expired)
	return out
}

func TestSweeperExpiresDueSessions(t *testing.T) {
	finder := &fakeSessionFinder{sessions: []*domain.GameSession{
		{SessionID: "sess-1", Status: domain.SessionPending},
		{SessionID: "sess-2", Status: domain.SessionActive},
	}}
	expirer := &fakeExpirer{}

	s := sweeper.New(finder, expirer, nil, func() int64 { return time.Now().UnixMilli() })
	c, err := s.Start("*/1 * * * * *")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(expirer.snapshot()) >= 2 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	got := expirer.snapshot()
	if len(got) < 2 {
		t.Fatalf("expected both sessions expired, got %v", got)
	}
}
