// Package memory keeps users and polls in process memory. It backs tests and STORAGE=memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jaam8/messenger_poll_bot/internal/models"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*models.User)}
}

func (r *UserRepository) Register(_ context.Context, user *models.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return false, nil
	}
	u := *user
	r.users[user.ID] = &u
	return true, nil
}

func (r *UserRepository) ListVerified(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.users))
	for id, user := range r.users {
		if user.Verified {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SetVerified flips the verification flag. Verification happens outside the bot, this
// exists for tests and local runs.
func (r *UserRepository) SetVerified(userID string, verified bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return false
	}
	user.Verified = verified
	return true
}

func (r *UserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

type PollRepository struct {
	mu    sync.Mutex
	polls map[string]*models.Poll
}

func NewPollRepository() *PollRepository {
	return &PollRepository{polls: make(map[string]*models.Poll)}
}

func (r *PollRepository) CreatePoll(_ context.Context, poll *models.Poll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls[poll.ID] = poll.Clone()
	return nil
}

func (r *PollRepository) GetPoll(_ context.Context, pollID string) (*models.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	poll, ok := r.polls[pollID]
	if !ok {
		return nil, models.ErrPollNotFound
	}
	return poll.Clone(), nil
}

func (r *PollRepository) RecordVote(_ context.Context, pollID string, optionIdx int, voterID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	poll, ok := r.polls[pollID]
	if !ok {
		return models.ErrPollNotFound
	}
	if !poll.HasOption(optionIdx) {
		return models.ErrOptionIsNotFound
	}
	if poll.IsEnded(now) {
		return models.ErrPollIsEnd
	}
	if poll.HasVoted(voterID) {
		return models.ErrVoteAlreadyExists
	}
	poll.Options[optionIdx].Voters = append(poll.Options[optionIdx].Voters, voterID)
	return nil
}
