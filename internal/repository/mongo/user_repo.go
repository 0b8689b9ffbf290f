package mongo

import (
	"context"
	"fmt"

	"github.com/jaam8/messenger_poll_bot/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const usersCollection = "users"

type UserRepository struct {
	coll *mongo.Collection
	l    *zap.Logger
}

func NewUserRepository(db *mongo.Database, l *zap.Logger) *UserRepository {
	return &UserRepository{
		coll: db.Collection(usersCollection),
		l:    l,
	}
}

// Register upserts on _id with $setOnInsert, so an existing record is never modified.
func (r *UserRepository) Register(ctx context.Context, user *models.User) (bool, error) {
	update := bson.M{"$setOnInsert": bson.M{
		"verified":   user.Verified,
		"lab":        user.Lab,
		"cwi":        user.Cwi,
		"created_at": user.CreatedAt,
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": user.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		// two concurrent upserts on the same _id: the loser sees a duplicate key
		if mongo.IsDuplicateKeyError(err) {
			r.l.Debug("user inserted concurrently", zap.String("user_id", user.ID))
			return false, nil
		}
		r.l.Debug("failed to upsert user", zap.Error(err))
		return false, fmt.Errorf("repository: database upsert error: %w", err)
	}
	r.l.Debug("mongodb response",
		zap.Int64("matched", res.MatchedCount),
		zap.Int64("upserted", res.UpsertedCount))
	return res.UpsertedCount == 1, nil
}

func (r *UserRepository) ListVerified(ctx context.Context) ([]string, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"verified": true}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		r.l.Debug("failed to find verified users", zap.Error(err))
		return nil, fmt.Errorf("repository: database find error: %w", err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("repository: failed to decode users: %w", err)
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids, nil
}
