package models

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

var (
	ErrPollIsEnd           = errors.New("poll is end")
	ErrPollNotFound        = errors.New("poll is not found")
	ErrFailedToProcessData = errors.New("failed to process data")
	ErrOptionIsEmpty       = errors.New("option is empty")
	ErrNotEnoughOptions    = errors.New("poll needs at least one option")
	ErrQuestionIsEmpty     = errors.New("question is empty")
	ErrOptionIsNotFound    = errors.New("option is not found")
	ErrVoteAlreadyExists   = errors.New("your vote already written")
	ErrMalformedPayload    = errors.New("malformed postback payload")
	ErrQuestionIsTooLong   = errors.New("question is too long")
	ErrOptionIsTooLong     = errors.New("option is too long")
)

// DefaultPollLifetime is how long a poll accepts votes after creation.
const DefaultPollLifetime = 24 * time.Hour

// PromptLimits caps question and option length in characters. Zero means unlimited.
type PromptLimits struct {
	MaxQuestion int
	MaxOption   int
}

// Check reports the first question or label that a platform would refuse to render.
func (l PromptLimits) Check(question string, labels []string) error {
	if l.MaxQuestion > 0 && utf8.RuneCountInString(question) > l.MaxQuestion {
		return fmt.Errorf("%w (max %d characters)", ErrQuestionIsTooLong, l.MaxQuestion)
	}
	if l.MaxOption > 0 {
		for _, label := range labels {
			if utf8.RuneCountInString(label) > l.MaxOption {
				return fmt.Errorf("%w: %q (max %d characters)", ErrOptionIsTooLong, label, l.MaxOption)
			}
		}
	}
	return nil
}

type Poll struct {
	ID       string `json:"id"       bson:"_id"`
	Question string `json:"question" bson:"question"`
	// Options: the slice index is the option id used in postback payloads
	Options   []Option  `json:"options"    bson:"options"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

type Option struct {
	Label  string   `json:"label"  bson:"label"`
	Voters []string `json:"voters" bson:"voters"`
}

// HasOption reports whether idx addresses an existing option.
func (p *Poll) HasOption(idx int) bool {
	return idx >= 0 && idx < len(p.Options)
}

// HasVoted reports whether voterID is present in any option of the poll.
func (p *Poll) HasVoted(voterID string) bool {
	for _, option := range p.Options {
		for _, voter := range option.Voters {
			if voter == voterID {
				return true
			}
		}
	}
	return false
}

// IsEnded reports whether the poll no longer accepts votes at now.
func (p *Poll) IsEnded(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Labels returns option labels in index order.
func (p *Poll) Labels() []string {
	labels := make([]string, len(p.Options))
	for i, option := range p.Options {
		labels[i] = option.Label
	}
	return labels
}

// Clone returns a deep copy so callers never share voter slices with a store.
func (p *Poll) Clone() *Poll {
	c := *p
	c.Options = make([]Option, len(p.Options))
	for i, option := range p.Options {
		voters := make([]string, len(option.Voters))
		copy(voters, option.Voters)
		c.Options[i] = Option{Label: option.Label, Voters: voters}
	}
	return &c
}
