package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jaam8/messenger_poll_bot/internal/metrics"
	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/jaam8/messenger_poll_bot/internal/repository/memory"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testOperatorID = "6423084651147559"

var errSendFailed = errors.New("send failed")

type sentText struct {
	Recipient string
	Text      string
}

type sentPrompt struct {
	Recipient string
	Prompt    string
	Choices   []models.Choice
}

// fakeSender records outbound traffic and fails for the recipients in failFor.
type fakeSender struct {
	mu      sync.Mutex
	texts   []sentText
	prompts []sentPrompt
	failFor map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]bool)}
}

func (s *fakeSender) SendText(_ context.Context, recipientID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[recipientID] {
		return errSendFailed
	}
	s.texts = append(s.texts, sentText{Recipient: recipientID, Text: text})
	return nil
}

func (s *fakeSender) SendChoicePrompt(_ context.Context, recipientID, prompt string, choices []models.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[recipientID] {
		return errSendFailed
	}
	s.prompts = append(s.prompts, sentPrompt{Recipient: recipientID, Prompt: prompt, Choices: choices})
	return nil
}

func (s *fakeSender) getTexts() []sentText {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentText, len(s.texts))
	copy(out, s.texts)
	return out
}

func (s *fakeSender) getPrompts() []sentPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentPrompt, len(s.prompts))
	copy(out, s.prompts)
	return out
}

type testEnv struct {
	users       *memory.UserRepository
	polls       *memory.PollRepository
	clock       clockwork.FakeClock
	sender      *fakeSender
	metrics     *metrics.Metrics
	identity    *IdentityService
	pollService *PollService
	broadcasts  *BroadcastService
	router      *VoteRouter
	interpreter *CommandInterpreter
	dispatcher  *Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := zap.NewNop()
	env := &testEnv{
		users:   memory.NewUserRepository(),
		polls:   memory.NewPollRepository(),
		clock:   clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		sender:  newFakeSender(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	env.identity = NewIdentityService(env.users, l, env.metrics, env.clock)
	env.pollService = NewPollService(env.polls, l, env.metrics, env.clock)
	env.broadcasts = NewBroadcastService(env.identity, env.pollService, env.sender, l, env.metrics, models.DefaultPollLifetime, 4, models.PromptLimits{})
	env.router = NewVoteRouter(env.identity, env.pollService, l, env.metrics)
	env.interpreter = NewCommandInterpreter(env.broadcasts, l, testOperatorID, "https://m.me/operator")
	env.dispatcher = NewDispatcher(env.router, env.interpreter, l)
	return env
}

// addVerified registers and verifies the given users.
func (e *testEnv) addVerified(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := e.identity.Register(context.Background(), id)
		require.NoError(t, err)
		require.True(t, e.users.SetVerified(id, true))
	}
}

func (e *testEnv) createPoll(t *testing.T, labels ...string) *models.Poll {
	t.Helper()
	poll, err := e.pollService.CreatePoll(context.Background(), "Color?", labels, models.DefaultPollLifetime)
	require.NoError(t, err)
	return poll
}

func (e *testEnv) storedPoll(t *testing.T, pollID string) *models.Poll {
	t.Helper()
	poll, err := e.polls.GetPoll(context.Background(), pollID)
	require.NoError(t, err)
	return poll
}

func totalVotes(poll *models.Poll) int {
	var n int
	for _, option := range poll.Options {
		n += len(option.Voters)
	}
	return n
}
