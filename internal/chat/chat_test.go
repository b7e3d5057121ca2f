package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowdesk/internal/dispatch"
	"flowdesk/internal/prompt"
	"flowdesk/internal/types"
)

// blockingDispatcher holds every Send until released, so tests can observe
// the in-flight state.
type blockingDispatcher struct {
	payload types.Payload
	err     error
	gate    chan struct{}
	mu      sync.Mutex
	reqs    []dispatch.Request
}

func newBlockingDispatcher(p types.Payload, err error) *blockingDispatcher {
	return &blockingDispatcher{payload: p, err: err, gate: make(chan struct{})}
}

func (d *blockingDispatcher) Send(_ context.Context, req dispatch.Request) (types.Payload, error) {
	d.mu.Lock()
	d.reqs = append(d.reqs, req)
	d.mu.Unlock()
	<-d.gate
	return d.payload, d.err
}

// instantDispatcher replies immediately.
type instantDispatcher struct {
	payload types.Payload
	err     error
	lastReq dispatch.Request
}

func (d *instantDispatcher) Send(_ context.Context, req dispatch.Request) (types.Payload, error) {
	d.lastReq = req
	return d.payload, d.err
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestSendAppendsBothSides(t *testing.T) {
	d := &instantDispatcher{payload: types.Payload{Intent: types.IntentExplain, Text: "answer"}}
	c := New(d, zap.NewNop(), fixedClock())

	task := types.NewTask("learn indexes")
	msg, err := c.Send(context.Background(), "explain b-trees", prompt.Freeform, task, nil, types.StateShallow)
	require.NoError(t, err)

	assert.Equal(t, types.RoleAssistant, msg.Role)
	assert.Equal(t, "answer", msg.Payload.Text)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	assert.Equal(t, "explain b-trees", msgs[0].Payload.Text)
	assert.Equal(t, task.ID, msgs[0].TaskID)
	assert.Equal(t, types.StatusOK, c.Status())
}

func TestSendRejectsConcurrentDispatch(t *testing.T) {
	d := newBlockingDispatcher(types.Payload{Intent: types.IntentGeneral, Text: "ok"}, nil)
	c := New(d, zap.NewNop(), fixedClock())
	task := types.NewTask("t")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Send(context.Background(), "first", prompt.Freeform, task, nil, types.StateShallow)
		assert.NoError(t, err)
	}()

	require.Eventually(t, c.Busy, time.Second, time.Millisecond)

	_, err := c.Send(context.Background(), "second", prompt.Freeform, task, nil, types.StateShallow)
	assert.ErrorIs(t, err, dispatch.ErrBusy)

	// The rejected send must not leave a stray user message.
	assert.Len(t, c.Messages(), 1)

	close(d.gate)
	<-done
	assert.Len(t, c.Messages(), 2)
	assert.False(t, c.Busy())
}

func TestSendTagsReplyWithSendTimeTask(t *testing.T) {
	d := newBlockingDispatcher(types.Payload{Intent: types.IntentGeneral, Text: "late reply"}, nil)
	c := New(d, zap.NewNop(), fixedClock())

	first := types.Task{ID: "task-1", Text: "first"}
	second := types.Task{ID: "task-2", Text: "second"}

	done := make(chan types.ChatMessage, 1)
	go func() {
		msg, err := c.Send(context.Background(), "q", prompt.Freeform, first, nil, types.StateShallow)
		assert.NoError(t, err)
		done <- msg
	}()

	require.Eventually(t, c.Busy, time.Second, time.Millisecond)
	c.SwitchContext(second)
	close(d.gate)

	msg := <-done
	assert.Equal(t, "task-1", msg.TaskID, "reply belongs to the task active at send time")
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	c := New(&instantDispatcher{}, zap.NewNop(), fixedClock())

	_, err := c.Send(context.Background(), "   ", prompt.Freeform, types.NewTask("t"), nil, types.StateShallow)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, c.Messages())
}

func TestSendNoCredentialUsesFallback(t *testing.T) {
	d := &instantDispatcher{err: dispatch.ErrNoCredential}
	c := New(d, zap.NewNop(), fixedClock())

	task := types.NewTask("build the cache")
	msg, err := c.Send(context.Background(), "write some code for it", prompt.Structured, task, nil, types.StateShallow)
	require.NoError(t, err)

	assert.Equal(t, types.IntentCode, msg.Payload.Intent)
	assert.NotNil(t, msg.Payload.Code)
	assert.Equal(t, types.StatusNoKey, c.Status())
}

func TestSendStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ApiStatus
	}{
		{"success", nil, types.StatusOK},
		{"no credential", dispatch.ErrNoCredential, types.StatusNoKey},
		{"rate limited", &dispatch.RateLimitError{RetryAfter: time.Second}, types.StatusRateLimit},
		{"http failure", &dispatch.HTTPError{Status: 500, Body: "boom"}, types.StatusError},
		{"unparsable reply", &dispatch.ParseError{Snippet: "???"}, types.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &instantDispatcher{payload: types.Payload{Intent: types.IntentGeneral, Text: "ok"}, err: tt.err}
			c := New(d, zap.NewNop(), fixedClock())

			_, err := c.Send(context.Background(), "hi", prompt.Freeform, types.NewTask("t"), nil, types.StateShallow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Status())
		})
	}
}

func TestSendDispatchFailureServesFallback(t *testing.T) {
	d := &instantDispatcher{err: &dispatch.HTTPError{Status: 503, Body: "down"}}
	c := New(d, zap.NewNop(), fixedClock())

	msg, err := c.Send(context.Background(), "explain this concept", prompt.Freeform, types.NewTask("t"), nil, types.StateShallow)
	require.NoError(t, err)

	// The offline responder still answers with a schema-complete payload.
	assert.Equal(t, types.IntentExplain, msg.Payload.Intent)
	assert.NotEmpty(t, msg.Payload.Concepts)
	assert.Equal(t, types.StatusError, c.Status())
}

func TestSendContractSelectsMode(t *testing.T) {
	d := &instantDispatcher{payload: types.Payload{Intent: types.IntentGeneral, Text: "ok"}}
	c := New(d, zap.NewNop(), fixedClock())
	task := types.NewTask("t")

	_, err := c.Send(context.Background(), "chip text", prompt.Structured, task, nil, types.StateShallow)
	require.NoError(t, err)
	assert.Equal(t, dispatch.Structured, d.lastReq.Mode)

	_, err = c.Send(context.Background(), "typed text", prompt.Freeform, task, nil, types.StateShallow)
	require.NoError(t, err)
	assert.Equal(t, dispatch.Freeform, d.lastReq.Mode)
}

func TestSendHistoryExcludesCurrentMessage(t *testing.T) {
	d := &instantDispatcher{payload: types.Payload{Intent: types.IntentGeneral, Text: "ok"}}
	c := New(d, zap.NewNop(), fixedClock())
	task := types.NewTask("t")

	_, err := c.Send(context.Background(), "first", prompt.Freeform, task, nil, types.StateShallow)
	require.NoError(t, err)
	assert.Empty(t, d.lastReq.History)

	_, err = c.Send(context.Background(), "second", prompt.Freeform, task, nil, types.StateShallow)
	require.NoError(t, err)
	// prior user message and assistant reply, but not the message being sent
	assert.Len(t, d.lastReq.History, 2)
	assert.Equal(t, "second", d.lastReq.UserText)
}

func TestWelcomeAndSwitchMessages(t *testing.T) {
	c := New(&instantDispatcher{}, zap.NewNop(), fixedClock())

	w := c.Welcome(types.Task{ID: "a", Text: "ship it"})
	assert.Equal(t, types.RoleAssistant, w.Role)
	assert.Contains(t, w.Payload.Text, "ship it")

	s := c.SwitchContext(types.Task{ID: "b", Text: "next thing"})
	assert.Contains(t, s.Payload.Text, "next thing")
	assert.Equal(t, "b", s.TaskID)

	assert.Len(t, c.Messages(), 2)
}

func TestStatusStartsUnknown(t *testing.T) {
	c := New(&instantDispatcher{}, zap.NewNop(), fixedClock())
	assert.Equal(t, types.StatusUnknown, c.Status())
}
