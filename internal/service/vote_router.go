package service

import (
	"context"
	"errors"

	"github.com/jaam8/messenger_poll_bot/internal/metrics"
	"github.com/jaam8/messenger_poll_bot/internal/models"
	"go.uber.org/zap"
)

// VoteRouter turns postback payloads into registrations or votes.
type VoteRouter struct {
	identity *IdentityService
	polls    *PollService
	l        *zap.Logger
	m        *metrics.Metrics
}

func NewVoteRouter(identity *IdentityService, polls *PollService, l *zap.Logger, m *metrics.Metrics) *VoteRouter {
	return &VoteRouter{
		identity: identity,
		polls:    polls,
		l:        l,
		m:        m,
	}
}

func (r *VoteRouter) Route(ctx context.Context, senderID, payload string) models.Reply {
	if payload == WelcomePayload {
		return r.register(ctx, senderID)
	}

	pollID, idx, err := DecodePayload(payload)
	if err != nil {
		r.m.Votes.WithLabelValues("malformed").Inc()
		r.l.Warn("malformed payload", zap.String("user_id", senderID), zap.String("payload", payload))
		return models.Reply{Text: MsgInvalidPayload}
	}
	r.l.Debug("data for voting",
		zap.String("poll_id", pollID),
		zap.Int("option", idx),
		zap.String("user_id", senderID))

	poll, err := r.polls.GetPoll(ctx, pollID)
	if err != nil {
		return r.rejected(pollID, idx, senderID, err)
	}
	if !poll.HasOption(idx) {
		return r.rejected(pollID, idx, senderID, models.ErrOptionIsNotFound)
	}
	if poll.IsEnded(r.polls.Now()) {
		return r.rejected(pollID, idx, senderID, models.ErrPollIsEnd)
	}
	if poll.HasVoted(senderID) {
		return r.rejected(pollID, idx, senderID, models.ErrVoteAlreadyExists)
	}

	// the store repeats the last two checks atomically, a concurrent vote lands here as a rejection
	if err = r.polls.RecordVote(ctx, pollID, idx, senderID); err != nil {
		return r.rejected(pollID, idx, senderID, err)
	}
	r.m.Votes.WithLabelValues("recorded").Inc()
	r.l.Info("voted successfully",
		zap.String("poll_id", pollID),
		zap.String("user_id", senderID),
		zap.Int("option", idx))
	return models.Reply{Text: MsgThanksForVote}
}

func (r *VoteRouter) register(ctx context.Context, senderID string) models.Reply {
	status, err := r.identity.Register(ctx, senderID)
	if err != nil {
		return models.Reply{Text: MsgSomethingWrong}
	}
	if status == models.UserAlreadyExists {
		return models.Reply{Text: MsgAlreadyRegistered}
	}
	return models.Reply{Text: msgRegistered(senderID)}
}

func (r *VoteRouter) rejected(pollID string, idx int, senderID string, err error) models.Reply {
	fields := []zap.Field{
		zap.String("poll_id", pollID),
		zap.Int("option", idx),
		zap.String("user_id", senderID),
	}
	switch {
	case errors.Is(err, models.ErrPollNotFound):
		r.m.Votes.WithLabelValues("not_found").Inc()
		r.l.Warn("poll not found", fields...)
		return models.Reply{Text: MsgInvalidQuestion}
	case errors.Is(err, models.ErrOptionIsNotFound):
		r.m.Votes.WithLabelValues("invalid_option").Inc()
		r.l.Warn("option not found", fields...)
		return models.Reply{Text: MsgInvalidQuestion}
	case errors.Is(err, models.ErrPollIsEnd):
		r.m.Votes.WithLabelValues("expired").Inc()
		r.l.Info("vote after poll end", fields...)
		return models.Reply{Text: msgPollEnded(pollID)}
	case errors.Is(err, models.ErrVoteAlreadyExists):
		r.m.Votes.WithLabelValues("already_voted").Inc()
		r.l.Info("user has already answered", fields...)
		return models.Reply{Text: msgAlreadyAnswered(pollID)}
	default:
		r.m.Votes.WithLabelValues("error").Inc()
		r.l.Error("failed to vote", append(fields, zap.Error(err))...)
		return models.Reply{Text: MsgSomethingWrong}
	}
}
