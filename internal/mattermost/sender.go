// Package mattermost runs the bot on a Mattermost server: direct messages out,
// websocket posts and interactive button actions in.
package mattermost

import (
	"context"
	"fmt"
	"sync"

	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
)

const (
	// PayloadKey is the integration context key that carries a choice payload.
	PayloadKey = "payload"
	// SecretKey carries the shared action secret. Mattermost keeps integration context
	// server side, so only the server can echo it back.
	SecretKey = "secret"
)

type Config struct {
	URL          string `yaml:"MM_URL"           env:"MM_URL"`
	WsURL        string `yaml:"MM_WS_URL"        env:"MM_WS_URL"`
	BotToken     string `yaml:"BOT_TOKEN"        env:"BOT_TOKEN"`
	ActionURL    string `yaml:"MM_ACTION_URL"    env:"MM_ACTION_URL"`
	ActionSecret string `yaml:"MM_ACTION_SECRET" env:"MM_ACTION_SECRET"`
}

type Sender struct {
	client       *model.Client4
	botID        string
	actionURL    string
	actionSecret string
	l            *zap.Logger

	mu       sync.Mutex
	channels map[string]string
}

func NewSender(client *model.Client4, botID, actionURL, actionSecret string, l *zap.Logger) *Sender {
	return &Sender{
		client:       client,
		botID:        botID,
		actionURL:    actionURL,
		actionSecret: actionSecret,
		l:            l,
		channels:     make(map[string]string),
	}
}

func (s *Sender) SendText(_ context.Context, recipientID, text string) error {
	channelID, err := s.directChannel(recipientID)
	if err != nil {
		return err
	}
	return s.createPost(&model.Post{ChannelId: channelID, Message: text})
}

func (s *Sender) SendChoicePrompt(_ context.Context, recipientID, prompt string, choices []models.Choice) error {
	channelID, err := s.directChannel(recipientID)
	if err != nil {
		return err
	}
	actions := make([]*model.PostAction, len(choices))
	for i, choice := range choices {
		actions[i] = &model.PostAction{
			Id:   fmt.Sprintf("option%d", i),
			Type: model.PostActionTypeButton,
			Name: choice.Label,
			Integration: &model.PostActionIntegration{
				URL:     s.actionURL,
				Context: map[string]interface{}{
					PayloadKey: choice.Payload,
					SecretKey:  s.actionSecret,
				},
			},
		}
	}
	post := &model.Post{ChannelId: channelID}
	post.AddProp("attachments", []*model.SlackAttachment{{
		Text:    prompt,
		Actions: actions,
	}})
	return s.createPost(post)
}

func (s *Sender) createPost(post *model.Post) error {
	created, resp, err := s.client.CreatePost(post)
	if err != nil {
		return fmt.Errorf("mattermost: create post: %w", err)
	}
	s.l.Debug("send new message",
		zap.String("channel_id", created.ChannelId),
		zap.Int("status_code", resp.StatusCode))
	return nil
}

func (s *Sender) directChannel(userID string) (string, error) {
	s.mu.Lock()
	channelID, ok := s.channels[userID]
	s.mu.Unlock()
	if ok {
		return channelID, nil
	}
	channel, _, err := s.client.CreateDirectChannel(s.botID, userID)
	if err != nil {
		return "", fmt.Errorf("mattermost: direct channel with %s: %w", userID, err)
	}
	s.mu.Lock()
	s.channels[userID] = channel.Id
	s.mu.Unlock()
	return channel.Id, nil
}
