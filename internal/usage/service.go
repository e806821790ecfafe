package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/neuralscholar/search-proxy/internal/logger"
	"github.com/robfig/cron/v3"
)

const defaultDailyLimit = 10000

// Limits maps a mode name to its daily request cap.
type Limits map[string]int

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Used      int
	Remaining int
	ResetsAt  time.Time
}

// Service enforces per-user daily request limits.
type Service struct {
	store  Store
	limits Limits
	logger *logger.Logger
	now    func() time.Time
}

func NewService(store Store, limits Limits, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		limits: limits,
		logger: log.WithComponent("usage"),
		now:    time.Now,
	}
}

func (s *Service) limitFor(mode string) int {
	if limit, ok := s.limits[mode]; ok {
		return limit
	}
	return defaultDailyLimit
}

// counterKey separates sub-mode traffic so each tutoring mode has an
// independent daily budget.
func counterKey(mode, subMode string) string {
	if subMode != "" {
		return mode + ":" + subMode
	}
	return mode
}

// Allow admits the request and consumes one unit of quota, atomically.
// A denied decision consumes nothing.
func (s *Service) Allow(ctx context.Context, userID, mode, subMode string) (Decision, error) {
	now := s.now()
	limit := s.limitFor(mode)

	allowed, count, err := s.store.IncrementIfBelow(ctx, userID, counterKey(mode, subMode), Day(now), limit)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Allowed:   allowed,
		Limit:     limit,
		Used:      count,
		Remaining: limit - count,
		ResetsAt:  NextReset(now),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !allowed {
		s.logger.Info("request denied by daily limit",
			slog.String("user_id", userID),
			slog.String("mode", mode),
			slog.String("sub_mode", subMode),
			slog.Int("limit", limit))
	}
	return d, nil
}

// CheckLimit reports current quota without consuming any.
func (s *Service) CheckLimit(ctx context.Context, userID, mode, subMode string) (Decision, error) {
	now := s.now()
	limit := s.limitFor(mode)

	count, err := s.store.Count(ctx, userID, counterKey(mode, subMode), Day(now))
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Allowed:   count < limit,
		Limit:     limit,
		Used:      count,
		Remaining: limit - count,
		ResetsAt:  NextReset(now),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d, nil
}

// SchedulePurge registers a nightly job that drops counter rows older
// than retentionDays. The caller owns starting and stopping the cron.
func (s *Service) SchedulePurge(c *cron.Cron, retentionDays int) error {
	_, err := c.AddFunc("5 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		cutoff := Day(s.now().AddDate(0, 0, -retentionDays))
		removed, err := s.store.PurgeBefore(ctx, cutoff)
		if err != nil {
			s.logger.Error("usage purge failed", slog.String("error", err.Error()))
			return
		}
		s.logger.Info("purged stale usage counters",
			slog.String("cutoff", cutoff),
			slog.Int64("removed", removed))
	})
	return err
}
