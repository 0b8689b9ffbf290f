package service

import (
	"context"
	"fmt"

	"github.com/jaam8/messenger_poll_bot/internal/metrics"
	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type UserRepository interface {
	// Register inserts user if no record with the same ID exists and reports whether it did.
	Register(ctx context.Context, user *models.User) (bool, error)
	ListVerified(ctx context.Context) ([]string, error)
}

type IdentityService struct {
	r     UserRepository
	l     *zap.Logger
	m     *metrics.Metrics
	clock clockwork.Clock
}

func NewIdentityService(r UserRepository, l *zap.Logger, m *metrics.Metrics, clock clockwork.Clock) *IdentityService {
	return &IdentityService{
		r:     r,
		l:     l,
		m:     m,
		clock: clock,
	}
}

func (s *IdentityService) Register(ctx context.Context, userID string) (models.RegisterStatus, error) {
	created, err := s.r.Register(ctx, models.NewUser(userID, s.clock.Now()))
	if err != nil {
		s.m.Registrations.WithLabelValues("error").Inc()
		s.l.Error("failed to register user", zap.String("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("service: failed to register user: %w", err)
	}
	status := models.UserAlreadyExists
	if created {
		status = models.UserRegistered
	}
	s.m.Registrations.WithLabelValues(status.String()).Inc()
	s.l.Info("registration handled",
		zap.String("user_id", userID),
		zap.Stringer("status", status))
	return status, nil
}

func (s *IdentityService) ListVerifiedIdentifiers(ctx context.Context) ([]string, error) {
	ids, err := s.r.ListVerified(ctx)
	if err != nil {
		s.l.Error("failed to list verified users", zap.Error(err))
		return nil, fmt.Errorf("service: failed to list verified users: %w", err)
	}
	s.l.Debug("verified users", zap.Int("count", len(ids)))
	return ids, nil
}
