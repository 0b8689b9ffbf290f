package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jaam8/messenger_poll_bot/internal/mattermost"
	"github.com/labstack/echo/v4"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
)

// PostAction receives Mattermost button presses. The reply to the voter is returned as
// ephemeral text, replies addressed to someone else go through the sender.
func (h *Handler) PostAction(c echo.Context) error {
	var req model.PostActionIntegrationRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		h.l.Warn("error unmarshalling action request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action request")
	}
	msg, ok := mattermost.MessageFromAction(&req, h.cfg.ActionSecret)
	if !ok {
		h.l.Warn("action request rejected", zap.String("user_id", req.UserId))
		return echo.NewHTTPError(http.StatusForbidden, "invalid action request")
	}

	ctx := context.WithoutCancel(c.Request().Context())
	reply := h.process(ctx, msg)
	resp := model.PostActionIntegrationResponse{}
	if !reply.Empty() {
		if recipientID := reply.To(msg.SenderID); recipientID != msg.SenderID {
			h.deliver(ctx, msg.SenderID, reply)
		} else {
			resp.EphemeralText = reply.Text
		}
	}
	return c.JSON(http.StatusOK, resp)
}
