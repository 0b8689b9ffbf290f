package tarantool

import (
	"context"
	"fmt"
	"time"

	"github.com/jaam8/messenger_poll_bot/internal/models"
	got "github.com/tarantool/go-tarantool"
	"go.uber.org/zap"
)

const pollsSpace = "polls"

type PollRepository struct {
	db *got.Connection
	l  *zap.Logger
}

func NewPollRepository(db *got.Connection, l *zap.Logger) *PollRepository {
	return &PollRepository{
		db: db,
		l:  l,
	}
}

func (r *PollRepository) CreatePoll(_ context.Context, poll *models.Poll) error {
	r.l.Debug("creating poll", zap.String("poll_id", poll.ID))
	options := make([]map[string]interface{}, len(poll.Options))
	for i, option := range poll.Options {
		voters := option.Voters
		if voters == nil {
			voters = []string{}
		}
		options[i] = map[string]interface{}{
			"label":  option.Label,
			"voters": voters,
		}
	}

	resp, err := r.db.Insert(pollsSpace, []interface{}{
		poll.ID,
		poll.Question,
		options,
		uint64(poll.CreatedAt.UnixMilli()),
		uint64(poll.ExpiresAt.UnixMilli()),
	})
	if err != nil {
		r.l.Debug("error inserting poll", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Any("resp", resp.Data),
		zap.String("error", resp.Error))
	return nil
}

func (r *PollRepository) GetPoll(_ context.Context, pollID string) (*models.Poll, error) {
	resp, err := r.db.Select(pollsSpace, "primary", 0, 1, got.IterEq, []interface{}{pollID})
	if err != nil {
		r.l.Debug("failed to select poll", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Any("resp", resp.Data),
		zap.String("error", resp.Error))
	if len(resp.Data) == 0 {
		r.l.Debug("poll not found", zap.String("poll_id", pollID))
		return nil, models.ErrPollNotFound
	}
	tuple, ok := resp.Data[0].([]interface{})
	if !ok {
		r.l.Debug("unexpected data type", zap.Any("data", resp.Data))
		return nil, models.ErrFailedToProcessData
	}
	return decodePoll(tuple)
}

func (r *PollRepository) RecordVote(_ context.Context, pollID string, optionIdx int, voterID string, now time.Time) error {
	resp, err := r.db.Eval(voteScript, []interface{}{pollID, optionIdx, voterID, now.UnixMilli()})
	if err != nil {
		r.l.Debug("failed to record vote", zap.Error(err))
		return fmt.Errorf("repository: database eval error: %w", err)
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Any("resp", resp.Data),
		zap.String("error", resp.Error))
	if len(resp.Data) == 0 {
		return models.ErrFailedToProcessData
	}
	status, _ := resp.Data[0].(string)
	switch status {
	case voteOK:
		return nil
	case voteNotFound:
		return models.ErrPollNotFound
	case voteInvalidOption:
		return models.ErrOptionIsNotFound
	case voteExpired:
		return models.ErrPollIsEnd
	case voteAlreadyVoted:
		return models.ErrVoteAlreadyExists
	default:
		r.l.Debug("unexpected vote status", zap.Any("status", resp.Data[0]))
		return models.ErrFailedToProcessData
	}
}
