package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaam8/messenger_poll_bot/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const pollsCollection = "questions"

type PollRepository struct {
	coll *mongo.Collection
	l    *zap.Logger
}

func NewPollRepository(db *mongo.Database, l *zap.Logger) *PollRepository {
	return &PollRepository{
		coll: db.Collection(pollsCollection),
		l:    l,
	}
}

func (r *PollRepository) CreatePoll(ctx context.Context, poll *models.Poll) error {
	doc := poll.Clone()
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		r.l.Debug("error inserting poll", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
	r.l.Debug("mongodb response", zap.Any("inserted_id", res.InsertedID))
	return nil
}

func (r *PollRepository) GetPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	var poll models.Poll
	err := r.coll.FindOne(ctx, bson.M{"_id": pollID}).Decode(&poll)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.l.Debug("poll not found", zap.String("poll_id", pollID))
			return nil, models.ErrPollNotFound
		}
		r.l.Debug("failed to find poll", zap.Error(err))
		return nil, fmt.Errorf("repository: database find error: %w", err)
	}
	return &poll, nil
}

// RecordVote pushes the voter with a single conditional update. The filter only matches
// while the poll is open, the option exists and no option holds the voter yet.
func (r *PollRepository) RecordVote(ctx context.Context, pollID string, optionIdx int, voterID string, now time.Time) error {
	if optionIdx < 0 {
		return models.ErrOptionIsNotFound
	}
	optionPath := fmt.Sprintf("options.%d", optionIdx)
	filter := bson.M{
		"_id":            pollID,
		"expires_at":     bson.M{"$gt": now},
		"options.voters": bson.M{"$ne": voterID},
		optionPath:       bson.M{"$exists": true},
	}
	update := bson.M{"$push": bson.M{optionPath + ".voters": voterID}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		r.l.Debug("failed to push vote", zap.Error(err))
		return fmt.Errorf("repository: database update error: %w", err)
	}
	r.l.Debug("mongodb response",
		zap.Int64("matched", res.MatchedCount),
		zap.Int64("modified", res.ModifiedCount))
	if res.MatchedCount == 1 {
		return nil
	}
	return r.explainRejected(ctx, pollID, optionIdx, voterID, now)
}

// explainRejected reads the poll after a filtered update matched nothing to tell why.
func (r *PollRepository) explainRejected(ctx context.Context, pollID string, optionIdx int, voterID string, now time.Time) error {
	poll, err := r.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	switch {
	case !poll.HasOption(optionIdx):
		return models.ErrOptionIsNotFound
	case poll.IsEnded(now):
		return models.ErrPollIsEnd
	case poll.HasVoted(voterID):
		return models.ErrVoteAlreadyExists
	default:
		return fmt.Errorf("repository: vote was not applied: %w", models.ErrFailedToProcessData)
	}
}
