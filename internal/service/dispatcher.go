package service

import (
	"context"

	"github.com/jaam8/messenger_poll_bot/internal/models"
	"go.uber.org/zap"
)

// Dispatcher routes an inbound message to the vote router or the command interpreter.
type Dispatcher struct {
	router      *VoteRouter
	interpreter *CommandInterpreter
	l           *zap.Logger
}

func NewDispatcher(router *VoteRouter, interpreter *CommandInterpreter, l *zap.Logger) *Dispatcher {
	return &Dispatcher{
		router:      router,
		interpreter: interpreter,
		l:           l,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg models.Message) models.Reply {
	switch {
	case msg.Postback:
		d.l.Debug("postback", zap.String("sender_id", msg.SenderID), zap.String("payload", msg.Payload))
		return d.router.Route(ctx, msg.SenderID, msg.Payload)
	case msg.Text != "":
		d.l.Debug("text message", zap.String("sender_id", msg.SenderID))
		return d.interpreter.Interpret(ctx, msg.SenderID, msg.Text)
	default:
		d.l.Debug("unsupported message kind ignored", zap.String("sender_id", msg.SenderID))
		return models.Reply{}
	}
}

// Kind labels msg for metrics and logs.
func Kind(msg models.Message) string {
	switch {
	case msg.Postback:
		return "postback"
	case msg.Text != "":
		return "text"
	default:
		return "other"
	}
}
