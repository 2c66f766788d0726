// Package sweeper implements C10: a background task that finds expired
// PENDING/ACTIVE sessions and cancels them via the contract engine's
// Expire (§4.3.4). Grounded in the teacher's background-loop shape in
// cmd/api/main.go (a goroutine polling on a fixed cadence), upgraded from
// a bare time.Ticker to github.com/robfig/cron/v3 so the cadence is
// expressed declaratively and survives process restarts' worth of
// schedule drift the way a cron expression is meant to.
package sweeper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/plutohub/hub/internal/apperr"
	"github.com/plutohub/hub/internal/domain"
	"github.com/plutohub/hub/internal/engine"
)

// Expirer is the slice of the contract engine the sweeper depends on.
type Expirer interface {
	Expire(ctx context.Context, sessionID string) (*engine.CancelOutcome, error)
}

// SessionFinder is the slice of store.SessionStore the sweeper needs.
type SessionFinder interface {
	FindExpirable(ctx context.Context, nowMillis int64, limit int) ([]*domain.GameSession, error)
}

// batchLimit bounds how many sessions one sweep tick processes, so a
// large backlog cannot make a single tick run unboundedly long.
const batchLimit = 200

// Sweeper polls for expirable sessions every interval and expires them
// one at a time. The sweeper is advisory (§5): Settle independently
// re-checks expiresAt, so a missed or delayed sweep tick cannot cause an
// incorrect settlement, only a late refund.
type Sweeper struct {
	sessions SessionFinder
	engine   Expirer
	logger   *zap.Logger
	now      func() int64
}

func New(sessions SessionFinder, engine Expirer, logger *zap.Logger, nowMillis func() int64) *Sweeper {
	return &Sweeper{sessions: sessions, engine: engine, logger: logger, now: nowMillis}
}

// Start schedules the sweep on cronExpr (seconds-resolution, e.g.
// "*/15 * * * * *" for every 15s per §5's recommended cadence) and
// returns the running *cron.Cron so the caller can Stop it on shutdown.
func (s *Sweeper) Start(cronExpr string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(cronExpr, s.sweepOnce)
	if err != nil {
		return nil, fmt.Errorf("sweeper: schedule: %w", err)
	}
	c.Start()
	return c, nil
}

func (s *Sweeper) sweepOnce() {
	ctx := context.Background()
	sessions, err := s.sessions.FindExpirable(ctx, s.now(), batchLimit)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("sweeper: find expirable sessions failed", zap.Error(err))
		}
		return
	}

	for _, session := range sessions {
		if _, err := s.engine.Expire(ctx, session.SessionID); err != nil {
			if appErr, ok := err.(*apperr.Error); ok && (appErr.Code == apperr.CodeInvalidState || appErr.Code == apperr.CodeAlreadySettled) {
				// Already resolved by a concurrent Settle/Cancel; not an error.
				continue
			}
			if s.logger != nil {
				s.logger.Error("sweeper: expire failed", zap.String("sessionId", session.SessionID), zap.Error(err))
			}
			continue
		}
		if s.logger != nil {
			s.logger.Info("sweeper: expired session", zap.String("sessionId", session.SessionID))
		}
	}
}
