package mattermost

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"strings"

	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/jaam8/messenger_poll_bot/internal/service"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
)

// StartCommand registers the sender, like the Messenger "Get Started" button.
const StartCommand = "start"

// Handler consumes one inbound message.
type Handler func(ctx context.Context, msg models.Message)

// Listen forwards direct messages posted to the bot until ctx is done or the socket closes.
func Listen(ctx context.Context, events <-chan *model.WebSocketEvent, botID string, l *zap.Logger, handle Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				l.Warn("websocket event channel closed")
				return
			}
			if event == nil || event.EventType() != model.WebsocketEventPosted {
				continue
			}
			l.Debug("new message", zap.String("event", event.EventType()))
			msg, ok := MessageFromEvent(event.GetData(), botID, l)
			if !ok {
				continue
			}
			handle(ctx, msg)
		}
	}
}

// MessageFromEvent converts a "posted" event in a direct channel. Posts by the bot itself
// and posts in other channel types are skipped.
func MessageFromEvent(data map[string]interface{}, botID string, l *zap.Logger) (models.Message, bool) {
	if channelType, _ := data["channel_type"].(string); channelType != string(model.ChannelTypeDirect) {
		return models.Message{}, false
	}
	raw, ok := data["post"].(string)
	if !ok {
		l.Error("post is missing in event")
		return models.Message{}, false
	}
	post := &model.Post{}
	if err := json.Unmarshal([]byte(raw), post); err != nil {
		l.Error("error unmarshalling post", zap.Error(err))
		return models.Message{}, false
	}
	if post.UserId == botID {
		return models.Message{}, false
	}

	text := strings.TrimSpace(post.Message)
	if strings.EqualFold(text, StartCommand) {
		return models.Message{SenderID: post.UserId, Postback: true, Payload: service.WelcomePayload}, true
	}
	return models.Message{SenderID: post.UserId, Text: text}, true
}

// MessageFromAction converts a button press delivered to the integration URL. Requests
// without the shared secret in their context are refused.
func MessageFromAction(req *model.PostActionIntegrationRequest, secret string) (models.Message, bool) {
	if req == nil || req.UserId == "" || secret == "" {
		return models.Message{}, false
	}
	got, _ := req.Context[SecretKey].(string)
	if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		return models.Message{}, false
	}
	payload, ok := req.Context[PayloadKey].(string)
	if !ok {
		return models.Message{}, false
	}
	return models.Message{SenderID: req.UserId, Postback: true, Payload: payload}, true
}
