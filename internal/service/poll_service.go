package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaam8/messenger_poll_bot/internal/metrics"
	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type PollRepository interface {
	CreatePoll(ctx context.Context, poll *models.Poll) error
	GetPoll(ctx context.Context, pollID string) (*models.Poll, error)
	// RecordVote appends voterID to the option in one atomic step, refusing when the voter
	// already appears in any option or the poll has ended at now.
	RecordVote(ctx context.Context, pollID string, optionIdx int, voterID string, now time.Time) error
}

type PollService struct {
	r     PollRepository
	l     *zap.Logger
	m     *metrics.Metrics
	clock clockwork.Clock
}

func NewPollService(r PollRepository, l *zap.Logger, m *metrics.Metrics, clock clockwork.Clock) *PollService {
	return &PollService{
		r:     r,
		l:     l,
		m:     m,
		clock: clock,
	}
}

func (s *PollService) CreatePoll(ctx context.Context, question string, labels []string, lifetime time.Duration) (*models.Poll, error) {
	s.l.Debug("creating poll",
		zap.String("question", question),
		zap.Strings("options", labels),
		zap.Duration("lifetime", lifetime))
	if strings.TrimSpace(question) == "" {
		return nil, models.ErrQuestionIsEmpty
	}
	if len(labels) == 0 {
		return nil, models.ErrNotEnoughOptions
	}
	options := make([]models.Option, len(labels))
	for i, label := range labels {
		if strings.TrimSpace(label) == "" {
			return nil, models.ErrOptionIsEmpty
		}
		options[i] = models.Option{
			Label:  label,
			Voters: []string{},
		}
	}
	if lifetime <= 0 {
		lifetime = models.DefaultPollLifetime
	}

	now := s.clock.Now()
	poll := &models.Poll{
		ID:        newPollID(),
		Question:  question,
		Options:   options,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}
	if err := s.r.CreatePoll(ctx, poll); err != nil {
		s.l.Error("failed to create poll", zap.Error(err))
		return nil, fmt.Errorf("service: failed to create poll: %w", err)
	}
	s.m.PollsCreated.Inc()
	s.l.Info("poll created",
		zap.String("poll_id", poll.ID),
		zap.String("question", question),
		zap.Time("expires_at", poll.ExpiresAt))
	return poll, nil
}

func (s *PollService) GetPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	poll, err := s.r.GetPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, models.ErrPollNotFound) {
			return nil, err
		}
		s.l.Error("failed to get poll", zap.String("poll_id", pollID), zap.Error(err))
		return nil, fmt.Errorf("service: failed to get poll: %w", err)
	}
	return poll, nil
}

func (s *PollService) RecordVote(ctx context.Context, pollID string, optionIdx int, voterID string) error {
	err := s.r.RecordVote(ctx, pollID, optionIdx, voterID, s.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrPollNotFound),
			errors.Is(err, models.ErrOptionIsNotFound),
			errors.Is(err, models.ErrPollIsEnd),
			errors.Is(err, models.ErrVoteAlreadyExists):
			return err
		default:
			s.l.Error("failed to record vote", zap.Error(err))
			return fmt.Errorf("service: failed to record vote: %w", err)
		}
	}
	return nil
}

// Now is the clock used for expiry decisions.
func (s *PollService) Now() time.Time {
	return s.clock.Now()
}

func newPollID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
