package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jaam8/messenger_poll_bot/internal/models"
	"go.uber.org/zap"
)

const (
	broadcastPrefix = "!"
	pollPrefix      = "?"
)

// CommandInterpreter handles free text. Only the operator may broadcast.
type CommandInterpreter struct {
	broadcasts *BroadcastService
	l          *zap.Logger
	operatorID string
	contactURL string
}

func NewCommandInterpreter(broadcasts *BroadcastService, l *zap.Logger, operatorID, contactURL string) *CommandInterpreter {
	return &CommandInterpreter{
		broadcasts: broadcasts,
		l:          l,
		operatorID: operatorID,
		contactURL: contactURL,
	}
}

func (c *CommandInterpreter) Interpret(ctx context.Context, senderID, text string) models.Reply {
	if c.operatorID == "" || senderID != c.operatorID {
		return models.Reply{Text: msgNotAccepting(c.contactURL)}
	}

	switch {
	case strings.HasPrefix(text, broadcastPrefix):
		message := strings.TrimPrefix(text, broadcastPrefix)
		if strings.TrimSpace(message) == "" {
			return models.Reply{Text: MsgEmptyBroadcast}
		}
		c.l.Info("operator broadcast", zap.String("message", message))
		delivery, err := c.broadcasts.BroadcastText(ctx, message)
		if err != nil {
			return models.Reply{Text: MsgSomethingWrong}
		}
		return models.Reply{Text: msgBroadcastSent(delivery.Sent, delivery.Recipients)}
	case strings.HasPrefix(text, pollPrefix):
		spec := strings.TrimPrefix(text, pollPrefix)
		c.l.Info("operator poll", zap.String("spec", spec))
		poll, delivery, err := c.broadcasts.BroadcastPoll(ctx, spec)
		if err != nil {
			if isSpecError(err) {
				c.l.Warn("invalid poll spec", zap.String("spec", spec), zap.Error(err))
				return models.Reply{Text: msgPollRejected(err)}
			}
			if poll != nil {
				return models.Reply{Text: msgPollUndelivered(poll.ID)}
			}
			return models.Reply{Text: MsgSomethingWrong}
		}
		return models.Reply{Text: msgPollSent(poll.ID, delivery.Sent, delivery.Recipients)}
	default:
		return models.Reply{Text: msgNotAccepting(c.contactURL)}
	}
}

func isSpecError(err error) bool {
	for _, target := range []error{
		models.ErrQuestionIsEmpty,
		models.ErrNotEnoughOptions,
		models.ErrOptionIsEmpty,
		models.ErrQuestionIsTooLong,
		models.ErrOptionIsTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
