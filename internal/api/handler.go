package api

import (
	"context"
	"sync"

	"github.com/jaam8/messenger_poll_bot/internal/metrics"
	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/jaam8/messenger_poll_bot/internal/service"
	"go.uber.org/zap"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, msg models.Message) models.Reply
}

// Config carries the per-platform secrets the handlers check inbound requests against.
type Config struct {
	Platform     string
	VerifyToken  string
	AppSecret    string
	ActionSecret string
}

type Handler struct {
	d      Dispatcher
	sender service.Sender
	l      *zap.Logger
	m      *metrics.Metrics
	cfg    Config

	// background tracks webhook batches still being processed after the response
	background sync.WaitGroup
}

func New(d Dispatcher, sender service.Sender, l *zap.Logger, m *metrics.Metrics, cfg Config) *Handler {
	return &Handler{
		d:      d,
		sender: sender,
		l:      l,
		m:      m,
		cfg:    cfg,
	}
}

// HandleMessage dispatches msg and delivers the reply, if any, through the sender.
func (h *Handler) HandleMessage(ctx context.Context, msg models.Message) {
	reply := h.process(ctx, msg)
	h.deliver(ctx, msg.SenderID, reply)
}

// handleBatch processes msgs in order after the request has been answered.
func (h *Handler) handleBatch(ctx context.Context, msgs []models.Message) {
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		for _, msg := range msgs {
			h.HandleMessage(ctx, msg)
		}
	}()
}

// Drain waits for in-flight webhook batches or until ctx is done.
func (h *Handler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) process(ctx context.Context, msg models.Message) models.Reply {
	kind := service.Kind(msg)
	h.m.WebhookMessages.WithLabelValues(h.cfg.Platform, kind).Inc()
	h.l.Info("new request for the bot",
		zap.String("platform", h.cfg.Platform),
		zap.String("kind", kind),
		zap.String("sender_id", msg.SenderID))
	return h.d.Dispatch(ctx, msg)
}

func (h *Handler) deliver(ctx context.Context, senderID string, reply models.Reply) {
	if reply.Empty() {
		return
	}
	recipientID := reply.To(senderID)
	if err := h.sender.SendText(ctx, recipientID, reply.Text); err != nil {
		h.l.Error("failed to send reply",
			zap.String("recipient_id", recipientID),
			zap.Error(err))
	}
}
