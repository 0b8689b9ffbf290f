package service

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jaam8/messenger_poll_bot/internal/metrics"
	"github.com/jaam8/messenger_poll_bot/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const pollSpecSeparator = ";"

// Sender delivers outbound messages on the chat platform.
type Sender interface {
	SendText(ctx context.Context, recipientID, text string) error
	SendChoicePrompt(ctx context.Context, recipientID, prompt string, choices []models.Choice) error
}

type BroadcastService struct {
	identity *IdentityService
	polls    *PollService
	sender   Sender
	l        *zap.Logger
	m        *metrics.Metrics
	lifetime time.Duration
	workers  int
	limits   models.PromptLimits
}

func NewBroadcastService(identity *IdentityService, polls *PollService, sender Sender, l *zap.Logger, m *metrics.Metrics, lifetime time.Duration, workers int, limits models.PromptLimits) *BroadcastService {
	if workers < 1 {
		workers = 1
	}
	return &BroadcastService{
		identity: identity,
		polls:    polls,
		sender:   sender,
		l:        l,
		m:        m,
		lifetime: lifetime,
		workers:  workers,
		limits:   limits,
	}
}

func (s *BroadcastService) BroadcastText(ctx context.Context, message string) (models.Delivery, error) {
	recipients, err := s.identity.ListVerifiedIdentifiers(ctx)
	if err != nil {
		return models.Delivery{}, err
	}
	delivery := s.fanOut(ctx, "text", recipients, func(ctx context.Context, recipientID string) error {
		return s.sender.SendText(ctx, recipientID, message)
	})
	s.l.Info("text broadcast finished",
		zap.Int("recipients", delivery.Recipients),
		zap.Int("sent", delivery.Sent),
		zap.Int("failed", delivery.Failed))
	return delivery, nil
}

// BroadcastPoll creates the poll described by rawSpec once and prompts every verified user.
// Send failures never undo the poll.
func (s *BroadcastService) BroadcastPoll(ctx context.Context, rawSpec string) (*models.Poll, models.Delivery, error) {
	question, labels, err := ParsePollSpec(rawSpec)
	if err != nil {
		return nil, models.Delivery{}, err
	}
	if err = s.limits.Check(question, labels); err != nil {
		return nil, models.Delivery{}, err
	}
	poll, err := s.polls.CreatePoll(ctx, question, labels, s.lifetime)
	if err != nil {
		return nil, models.Delivery{}, err
	}

	choices := make([]models.Choice, len(poll.Options))
	for i, option := range poll.Options {
		choices[i] = models.Choice{
			Label:   option.Label,
			Payload: EncodePayload(poll.ID, i),
		}
	}

	recipients, err := s.identity.ListVerifiedIdentifiers(ctx)
	if err != nil {
		return poll, models.Delivery{}, err
	}
	delivery := s.fanOut(ctx, "poll", recipients, func(ctx context.Context, recipientID string) error {
		return s.sender.SendChoicePrompt(ctx, recipientID, poll.Question, choices)
	})
	s.l.Info("poll broadcast finished",
		zap.String("poll_id", poll.ID),
		zap.Int("recipients", delivery.Recipients),
		zap.Int("sent", delivery.Sent),
		zap.Int("failed", delivery.Failed))
	return poll, delivery, nil
}

func (s *BroadcastService) fanOut(ctx context.Context, kind string, recipients []string, send func(context.Context, string) error) models.Delivery {
	start := time.Now()
	defer func() {
		s.m.BroadcastDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	var sent, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, recipientID := range recipients {
		recipientID := recipientID
		g.Go(func() error {
			if err := send(ctx, recipientID); err != nil {
				failed.Add(1)
				s.m.Deliveries.WithLabelValues(kind, "failed").Inc()
				s.l.Warn("failed to deliver broadcast",
					zap.String("kind", kind),
					zap.String("recipient_id", recipientID),
					zap.Error(err))
				return nil
			}
			sent.Add(1)
			s.m.Deliveries.WithLabelValues(kind, "sent").Inc()
			return nil
		})
	}
	_ = g.Wait()

	return models.Delivery{
		Recipients: len(recipients),
		Sent:       int(sent.Load()),
		Failed:     int(failed.Load()),
	}
}

// ParsePollSpec splits "question;label1;...;labelN". Segments are trimmed.
func ParsePollSpec(rawSpec string) (string, []string, error) {
	parts := strings.Split(rawSpec, pollSpecSeparator)
	question := strings.TrimSpace(parts[0])
	if question == "" {
		return "", nil, models.ErrQuestionIsEmpty
	}
	if len(parts) < 2 {
		return "", nil, models.ErrNotEnoughOptions
	}
	labels := make([]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		label := strings.TrimSpace(part)
		if label == "" {
			return "", nil, models.ErrOptionIsEmpty
		}
		labels = append(labels, label)
	}
	return question, labels, nil
}
