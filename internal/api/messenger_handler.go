package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jaam8/messenger_poll_bot/internal/messenger"
	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "OK"})
}

// VerifyWebhook answers the Messenger subscription handshake.
func (h *Handler) VerifyWebhook(c echo.Context) error {
	challenge, ok := messenger.VerifyChallenge(h.cfg.VerifyToken,
		c.QueryParam("hub.mode"),
		c.QueryParam("hub.verify_token"),
		c.QueryParam("hub.challenge"))
	if !ok {
		h.l.Warn("webhook verification rejected", zap.String("mode", c.QueryParam("hub.mode")))
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	}
	h.l.Info("webhook verified")
	return c.String(http.StatusOK, challenge)
}

// ReceiveWebhook checks the signature, acknowledges the batch and processes every
// messaging item in the background. Meta redelivers events that are not answered in time.
func (h *Handler) ReceiveWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if h.cfg.AppSecret == "" || !messenger.ValidSignature(h.cfg.AppSecret, body, c.Request().Header.Get(messenger.SignatureHeader)) {
		h.l.Warn("webhook signature mismatch")
		return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
	}

	var event models.WebhookEvent
	if err = json.Unmarshal(body, &event); err != nil {
		h.l.Warn("error unmarshalling webhook event", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event")
	}

	var msgs []models.Message
	for _, entry := range event.Entry {
		for _, element := range entry.Messaging {
			if element.Sender.ID == "" {
				continue
			}
			msgs = append(msgs, element.ToMessage())
		}
	}
	if len(msgs) > 0 {
		h.handleBatch(context.WithoutCancel(c.Request().Context()), msgs)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Message Processed"})
}
