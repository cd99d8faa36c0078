package slack

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/benchdesk/internal/announce"
)

// --- Mock Slack client ---

type mockSlackClient struct {
	mu       sync.Mutex
	authResp *slackapi.AuthTestResponse
	authErr  error
	posted   []postedMessage
	postErrs []error // consumed one per PostMessage call
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

func newMockSlackClient() *mockSlackClient {
	return &mockSlackClient{
		authResp: &slackapi.AuthTestResponse{UserID: "U_BOT_123"},
	}
}

func (m *mockSlackClient) AuthTest() (*slackapi.AuthTestResponse, error) {
	return m.authResp, m.authErr
}

func (m *mockSlackClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.postErrs) > 0 {
		err := m.postErrs[0]
		m.postErrs = m.postErrs[1:]
		if err != nil {
			return "", "", err
		}
	}
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1234567890.123456", nil
}

func (m *mockSlackClient) postedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posted)
}

func connected(t *testing.T, client *mockSlackClient, channel string) *Adapter {
	t.Helper()
	a, err := New(AdapterOpts{ChannelID: channel, Client: client})
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background()))
	return a
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(AdapterOpts{})
	assert.EqualError(t, err, "slack: bot token is required")

	_, err = New(AdapterOpts{BotToken: "xoxb-test"})
	assert.NoError(t, err)
}

func TestConnect_CapturesBotUser(t *testing.T) {
	a := connected(t, newMockSlackClient(), "C1")
	assert.Equal(t, "U_BOT_123", a.BotUserID())
	// Second connect is a no-op.
	assert.NoError(t, a.Connect(context.Background()))
}

func TestConnect_AuthError(t *testing.T) {
	client := newMockSlackClient()
	client.authErr = fmt.Errorf("invalid_auth")
	a, err := New(AdapterOpts{Client: client})
	require.NoError(t, err)
	assert.ErrorContains(t, a.Connect(context.Background()), "slack: auth test: invalid_auth")
}

func TestConnect_AfterClose(t *testing.T) {
	a, err := New(AdapterOpts{Client: newMockSlackClient()})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.ErrorContains(t, a.Connect(context.Background()), "already closed")
}

func TestSend_NotConnected(t *testing.T) {
	a, err := New(AdapterOpts{Client: newMockSlackClient(), ChannelID: "C1"})
	require.NoError(t, err)
	assert.EqualError(t, a.Send(context.Background(), announce.OutboundMessage{Text: "hi"}), "slack: not connected")
}

func TestSend_DefaultAndExplicitChannel(t *testing.T) {
	client := newMockSlackClient()
	a := connected(t, client, "C_DEFAULT")

	require.NoError(t, a.Send(context.Background(), announce.OutboundMessage{Text: "one"}))
	require.NoError(t, a.Send(context.Background(), announce.OutboundMessage{ChannelID: "C_OTHER", Text: "two"}))

	require.Equal(t, 2, client.postedCount())
	assert.Equal(t, "C_DEFAULT", client.posted[0].channelID)
	assert.Equal(t, "C_OTHER", client.posted[1].channelID)
}

func TestSend_NoChannel(t *testing.T) {
	a := connected(t, newMockSlackClient(), "")
	assert.EqualError(t, a.Send(context.Background(), announce.OutboundMessage{Text: "x"}), "slack: no channel specified")
}

func TestSend_RetriesRateLimit(t *testing.T) {
	client := newMockSlackClient()
	client.postErrs = []error{&slackapi.RateLimitedError{RetryAfter: time.Millisecond}, nil}
	a := connected(t, client, "C1")

	require.NoError(t, a.Send(context.Background(), announce.OutboundMessage{Text: "x"}))
	assert.Equal(t, 1, client.postedCount())
}

func TestSend_GivesUpAfterMaxRetries(t *testing.T) {
	client := newMockSlackClient()
	for i := 0; i <= maxRetries; i++ {
		client.postErrs = append(client.postErrs, &slackapi.RateLimitedError{RetryAfter: time.Millisecond})
	}
	a := connected(t, client, "C1")

	err := a.Send(context.Background(), announce.OutboundMessage{Text: "x"})
	assert.ErrorContains(t, err, "slack: post message")
	assert.Zero(t, client.postedCount())
}

func TestSend_NonRateLimitErrorNotRetried(t *testing.T) {
	client := newMockSlackClient()
	client.postErrs = []error{fmt.Errorf("channel_not_found"), nil}
	a := connected(t, client, "C1")

	err := a.Send(context.Background(), announce.OutboundMessage{Text: "x"})
	assert.ErrorContains(t, err, "channel_not_found")
	assert.Zero(t, client.postedCount())
}

func TestRetryOnRateLimit_ContextCancelled(t *testing.T) {
	a := connected(t, newMockSlackClient(), "C1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.retryOnRateLimit(ctx, func() error {
		return &slackapi.RateLimitedError{RetryAfter: time.Hour}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildMessageOptions(t *testing.T) {
	assert.Len(t, buildMessageOptions(announce.OutboundMessage{Text: "plain"}), 1)

	withEvents := announce.OutboundMessage{
		Text:   "fallback",
		Events: []announce.FormattedEvent{{Title: "Job card 41 created"}},
	}
	assert.Len(t, buildMessageOptions(withEvents), 2)

	withEvents.Text = ""
	assert.Len(t, buildMessageOptions(withEvents), 1)
}

func TestEventToAttachment(t *testing.T) {
	att := eventToAttachment(announce.FormattedEvent{
		Title: "Job card 41 created",
		Body:  "Job card submitted successfully and email sent!",
		Color: announce.ColorSuccess,
		Fields: []announce.Field{
			{Name: "Client", Value: "Grace Hopper", Short: true},
			{Name: "Problem", Value: "Does not boot"},
		},
	})

	assert.Equal(t, "Job card 41 created", att.Title)
	assert.Equal(t, "Job card 41 created", att.Fallback)
	assert.Equal(t, "#36a64f", att.Color)
	require.Len(t, att.Fields, 2)
	assert.Equal(t, slackapi.AttachmentField{Title: "Client", Value: "Grace Hopper", Short: true}, att.Fields[0])
	assert.False(t, att.Fields[1].Short)
}
