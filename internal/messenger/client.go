// Package messenger talks to the Messenger Send API and checks webhook signatures.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Send API limits for one button template.
const (
	maxButtons      = 3
	maxButtonTitle  = 20
	maxTemplateText = 640
	// chunkSuffix is the widest range marker appended to a split prompt.
	chunkSuffix = " (999-999)"
)

// PromptLimits bounds poll text so that every chunk of a choice prompt fits one template.
func PromptLimits() models.PromptLimits {
	return models.PromptLimits{
		MaxQuestion: maxTemplateText - len(chunkSuffix),
		MaxOption:   maxButtonTitle,
	}
}

type Config struct {
	AccessToken string        `yaml:"ACCESS_TOKEN"         env:"ACCESS_TOKEN"`
	VerifyToken string        `yaml:"VERIFY_TOKEN"         env:"VERIFY_TOKEN"`
	AppSecret   string        `yaml:"MESSENGER_APP_SECRET" env:"MESSENGER_APP_SECRET"`
	GraphURL    string        `yaml:"GRAPH_URL"            env:"GRAPH_URL"            env-default:"https://graph.facebook.com/v19.0"`
	SendRate    float64       `yaml:"SEND_RATE"            env:"SEND_RATE"            env-default:"40"`
	Timeout     time.Duration `yaml:"SEND_TIMEOUT"         env:"SEND_TIMEOUT"         env-default:"10s"`
}

type Client struct {
	token    string
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	l        *zap.Logger
}

func NewClient(cfg Config, l *zap.Logger) *Client {
	limit := rate.Inf
	burst := 1
	if cfg.SendRate > 0 {
		limit = rate.Limit(cfg.SendRate)
		burst = int(cfg.SendRate)
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{
		token:    cfg.AccessToken,
		endpoint: cfg.GraphURL + "/me/messages",
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "messenger-send",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				l.Warn("circuit breaker state changed",
					zap.String("component", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		}),
		l: l,
	}
}

type sendRequest struct {
	Recipient     recipient   `json:"recipient"`
	MessagingType string      `json:"messaging_type"`
	Message       sendMessage `json:"message"`
}

type recipient struct {
	ID string `json:"id"`
}

type sendMessage struct {
	Text       string      `json:"text,omitempty"`
	Attachment *attachment `json:"attachment,omitempty"`
}

type attachment struct {
	Type    string          `json:"type"`
	Payload templatePayload `json:"payload"`
}

type templatePayload struct {
	TemplateType string   `json:"template_type"`
	Text         string   `json:"text"`
	Buttons      []button `json:"buttons"`
}

type button struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	return c.send(ctx, sendRequest{
		Recipient:     recipient{ID: recipientID},
		MessagingType: "UPDATE",
		Message:       sendMessage{Text: text},
	})
}

// SendChoicePrompt sends postback buttons. Templates hold at most three buttons, longer
// option lists continue in follow-up templates.
func (c *Client) SendChoicePrompt(ctx context.Context, recipientID, prompt string, choices []models.Choice) error {
	for start := 0; start < len(choices); start += maxButtons {
		end := min(start+maxButtons, len(choices))
		buttons := make([]button, 0, end-start)
		for _, choice := range choices[start:end] {
			buttons = append(buttons, button{Type: "postback", Title: choice.Label, Payload: choice.Payload})
		}
		text := prompt
		if start > 0 {
			text = fmt.Sprintf("%s (%d-%d)", prompt, start+1, end)
		}
		err := c.send(ctx, sendRequest{
			Recipient:     recipient{ID: recipientID},
			MessagingType: "UPDATE",
			Message: sendMessage{Attachment: &attachment{
				Type: "template",
				Payload: templatePayload{
					TemplateType: "button",
					Text:         text,
					Buttons:      buttons,
				},
			}},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, req sendRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("messenger: rate limiter: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("messenger: json marshal error: %w", err)
	}
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("messenger: send api unavailable: %w", err)
		}
		return err
	}
	c.l.Debug("message sent", zap.String("recipient_id", req.Recipient.ID))
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) error {
	u := c.endpoint + "?access_token=" + url.QueryEscape(c.token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messenger: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("messenger: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("messenger: send api status %d: %s (code %d)", resp.StatusCode, apiErr.Error.Message, apiErr.Error.Code)
	}
	return fmt.Errorf("messenger: send api status %d: %s", resp.StatusCode, string(raw))
}
