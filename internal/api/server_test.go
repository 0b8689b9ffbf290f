package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jaam8/messenger_poll_bot/internal/mattermost"
	"github.com/jaam8/messenger_poll_bot/internal/metrics"
	"github.com/jaam8/messenger_poll_bot/internal/messenger"
	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/mattermost/mattermost-server/v6/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDispatcher struct {
	mu    sync.Mutex
	seen  []models.Message
	reply func(models.Message) models.Reply
	// release, when set, holds every dispatch until it is closed
	release chan struct{}
}

func (d *stubDispatcher) Dispatch(_ context.Context, msg models.Message) models.Reply {
	if d.release != nil {
		<-d.release
	}
	d.mu.Lock()
	d.seen = append(d.seen, msg)
	d.mu.Unlock()
	if d.reply == nil {
		return models.Reply{}
	}
	return d.reply(msg)
}

func (d *stubDispatcher) messages() []models.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Message(nil), d.seen...)
}

type sentText struct {
	Recipient string
	Text      string
}

type stubSender struct {
	mu    sync.Mutex
	texts []sentText
}

func (s *stubSender) SendText(_ context.Context, recipientID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, sentText{Recipient: recipientID, Text: text})
	return nil
}

func (s *stubSender) SendChoicePrompt(context.Context, string, string, []models.Choice) error {
	return nil
}

func (s *stubSender) sent() []sentText {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentText(nil), s.texts...)
}

const (
	testAppSecret    = "app-secret"
	testActionSecret = "action-secret"
	testOperatorID   = "6423084651147559"
)

type testServer struct {
	srv        *Server
	dispatcher *stubDispatcher
	sender     *stubSender
	metrics    *metrics.Metrics
}

func newTestServer(t *testing.T, platform string) *testServer {
	t.Helper()
	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	d := &stubDispatcher{}
	s := &stubSender{}
	h := New(d, s, zap.NewNop(), m, Config{
		Platform:     platform,
		VerifyToken:  "verify-me",
		AppSecret:    testAppSecret,
		ActionSecret: testActionSecret,
	})
	srv := NewServer(h, reg, zap.NewNop())
	if platform == "mattermost" {
		srv.EnableMattermostActions()
	} else {
		srv.EnableMessengerWebhook()
	}
	return &testServer{srv: srv, dispatcher: d, sender: s, metrics: m}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

// drain waits for webhook batches handled after the response.
func (ts *testServer) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.srv.h.Drain(ctx))
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/messaging", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(messenger.SignatureHeader, sign(testAppSecret, body))
	return req
}

func actionRequest(t *testing.T, userID string, values map[string]interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(model.PostActionIntegrationRequest{UserId: userID, Context: values})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/mattermost/actions", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

const webhookBody = `{"object":"page","entry":[{"id":"page","time":1,"messaging":[
	{"sender":{"id":"u1"},"recipient":{"id":"page"},"postback":{"title":"Get Started","payload":"WELCOME_MESSAGE"}},
	{"sender":{"id":"u2"},"recipient":{"id":"page"},"message":{"mid":"m1","text":"hello"}}
]}]}`

const forgedBroadcast = `{"object":"page","entry":[{"messaging":[
	{"sender":{"id":"` + testOperatorID + `"},"message":{"text":"!spam"}}
]}]}`

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "messenger")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"OK"}`, rec.Body.String())
}

func TestVerifyWebhook(t *testing.T) {
	ts := newTestServer(t, "messenger")

	rec := ts.do(httptest.NewRequest(http.MethodGet,
		"/messaging?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1158201444", rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet,
		"/messaging?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1158201444", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReceiveWebhook_ProcessesEveryItem(t *testing.T) {
	ts := newTestServer(t, "messenger")
	ts.dispatcher.reply = func(msg models.Message) models.Reply {
		return models.Reply{Text: "ack " + msg.SenderID}
	}

	rec := ts.do(webhookRequest(webhookBody))
	ts.drain(t)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Message Processed"}`, rec.Body.String())
	assert.Equal(t, []models.Message{
		{SenderID: "u1", Postback: true, Payload: "WELCOME_MESSAGE"},
		{SenderID: "u2", Text: "hello"},
	}, ts.dispatcher.messages())
	assert.Equal(t, []sentText{{"u1", "ack u1"}, {"u2", "ack u2"}}, ts.sender.sent())
	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.WebhookMessages.WithLabelValues("messenger", "postback")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.WebhookMessages.WithLabelValues("messenger", "text")))
}

func TestReceiveWebhook_RespondsBeforeDispatchFinishes(t *testing.T) {
	ts := newTestServer(t, "messenger")
	ts.dispatcher.release = make(chan struct{})

	responded := make(chan int, 1)
	go func() {
		responded <- ts.do(webhookRequest(webhookBody)).Code
	}()

	select {
	case code := <-responded:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(time.Second):
		close(ts.dispatcher.release)
		t.Fatal("webhook response waited for dispatch")
	}
	assert.Empty(t, ts.dispatcher.messages())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ts.srv.h.Drain(ctx), context.DeadlineExceeded)

	close(ts.dispatcher.release)
	ts.drain(t)
	assert.Len(t, ts.dispatcher.messages(), 2)
}

func TestShutdown_DrainsWebhookBatches(t *testing.T) {
	ts := newTestServer(t, "messenger")
	ts.dispatcher.release = make(chan struct{})

	rec := ts.do(webhookRequest(webhookBody))
	require.Equal(t, http.StatusOK, rec.Code)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(ts.dispatcher.release)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.srv.Shutdown(ctx))
	assert.Len(t, ts.dispatcher.messages(), 2)
}

func TestReceiveWebhook_ReplyToOtherRecipient(t *testing.T) {
	ts := newTestServer(t, "messenger")
	ts.dispatcher.reply = func(models.Message) models.Reply {
		return models.Reply{Text: "forwarded", Recipient: "operator"}
	}
	body := `{"object":"page","entry":[{"messaging":[{"sender":{"id":"u2"},"message":{"text":"x"}}]}]}`

	rec := ts.do(webhookRequest(body))
	ts.drain(t)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []sentText{{"operator", "forwarded"}}, ts.sender.sent())
}

func TestReceiveWebhook_EmptyReplySendsNothing(t *testing.T) {
	ts := newTestServer(t, "messenger")

	rec := ts.do(webhookRequest(webhookBody))
	ts.drain(t)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, ts.dispatcher.messages(), 2)
	assert.Empty(t, ts.sender.sent())
}

func TestReceiveWebhook_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, "messenger")

	rec := ts.do(webhookRequest("{"))
	ts.drain(t)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.dispatcher.messages())
}

func TestReceiveWebhook_Signature(t *testing.T) {
	tests := []struct {
		name      string
		signature string
	}{
		{"unsigned", ""},
		{"malformed", "sha256=00"},
		{"wrong secret", sign("guess", forgedBroadcast)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, "messenger")
			req := httptest.NewRequest(http.MethodPost, "/messaging", strings.NewReader(forgedBroadcast))
			if tt.signature != "" {
				req.Header.Set(messenger.SignatureHeader, tt.signature)
			}

			rec := ts.do(req)
			ts.drain(t)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Empty(t, ts.dispatcher.messages())
		})
	}
}

func TestReceiveWebhook_RejectedWithoutAppSecret(t *testing.T) {
	reg := metrics.NewRegistry()
	d := &stubDispatcher{}
	h := New(d, &stubSender{}, zap.NewNop(), metrics.New(reg), Config{Platform: "messenger", VerifyToken: "verify-me"})
	srv := NewServer(h, reg, zap.NewNop())
	srv.EnableMessengerWebhook()

	req := httptest.NewRequest(http.MethodPost, "/messaging", strings.NewReader(forgedBroadcast))
	req.Header.Set(messenger.SignatureHeader, sign("", forgedBroadcast))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, d.messages())
}

func TestMattermostMode_HasNoMessengerWebhook(t *testing.T) {
	ts := newTestServer(t, "mattermost")

	req := httptest.NewRequest(http.MethodPost, "/messaging", strings.NewReader(forgedBroadcast))
	req.Header.Set(messenger.SignatureHeader, sign(testAppSecret, forgedBroadcast))
	rec := ts.do(req)
	ts.drain(t)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, ts.dispatcher.messages())
}

func TestPostAction(t *testing.T) {
	ts := newTestServer(t, "mattermost")
	ts.dispatcher.reply = func(models.Message) models.Reply {
		return models.Reply{Text: "Thank you for your vote."}
	}

	rec := ts.do(actionRequest(t, "u1", map[string]interface{}{
		mattermost.PayloadKey: "abc.0",
		mattermost.SecretKey:  testActionSecret,
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.PostActionIntegrationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Thank you for your vote.", resp.EphemeralText)
	assert.Equal(t, []models.Message{{SenderID: "u1", Postback: true, Payload: "abc.0"}}, ts.dispatcher.messages())
	assert.Empty(t, ts.sender.sent())
}

func TestPostAction_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{"missing payload", map[string]interface{}{mattermost.SecretKey: testActionSecret}},
		{"missing secret", map[string]interface{}{mattermost.PayloadKey: "abc.0"}},
		{"wrong secret", map[string]interface{}{mattermost.PayloadKey: "abc.0", mattermost.SecretKey: "guess"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, "mattermost")

			rec := ts.do(actionRequest(t, "u1", tt.values))

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Empty(t, ts.dispatcher.messages())
		})
	}
}

func TestPostAction_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, "mattermost")

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/mattermost/actions", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.dispatcher.messages())
}

func TestMessengerMode_HasNoActionEndpoint(t *testing.T) {
	ts := newTestServer(t, "messenger")

	rec := ts.do(actionRequest(t, "u1", map[string]interface{}{
		mattermost.PayloadKey: "abc.0",
		mattermost.SecretKey:  testActionSecret,
	}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, ts.dispatcher.messages())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, "messenger")
	ts.metrics.PollsCreated.Inc()

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pollbot_polls_created_total 1")
}
