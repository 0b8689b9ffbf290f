package tarantool

import (
	"context"
	"fmt"

	"github.com/jaam8/messenger_poll_bot/internal/models"
	got "github.com/tarantool/go-tarantool"
	"go.uber.org/zap"
)

const usersSpace = "users"

type UserRepository struct {
	db *got.Connection
	l  *zap.Logger
}

func NewUserRepository(db *got.Connection, l *zap.Logger) *UserRepository {
	return &UserRepository{
		db: db,
		l:  l,
	}
}

func (r *UserRepository) Register(_ context.Context, user *models.User) (bool, error) {
	resp, err := r.db.Eval(registerScript, []interface{}{
		user.ID,
		user.Lab,
		user.Cwi,
		user.CreatedAt.UnixMilli(),
	})
	if err != nil {
		r.l.Debug("failed to register user", zap.Error(err))
		return false, fmt.Errorf("repository: database eval error: %w", err)
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Any("resp", resp.Data),
		zap.String("error", resp.Error))
	if len(resp.Data) == 0 {
		return false, models.ErrFailedToProcessData
	}
	created, ok := resp.Data[0].(bool)
	if !ok {
		r.l.Debug("unexpected type for register result", zap.Any("result", resp.Data[0]))
		return false, models.ErrFailedToProcessData
	}
	return created, nil
}

func (r *UserRepository) ListVerified(_ context.Context) ([]string, error) {
	resp, err := r.db.Eval(verifiedScript, []interface{}{})
	if err != nil {
		r.l.Debug("failed to list verified users", zap.Error(err))
		return nil, fmt.Errorf("repository: database eval error: %w", err)
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Int("rows", len(resp.Data)),
		zap.String("error", resp.Error))
	return decodeIDs(resp.Data)
}
