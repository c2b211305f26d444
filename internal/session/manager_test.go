package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"amzaki/internal/llm"
	"amzaki/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type reply struct {
	text string
	err  error
}

// fakeClient returns scripted replies in order and records every prompt.
// When gate is set, each call blocks until a value is received from it.
type fakeClient struct {
	mu      sync.Mutex
	prompts []string
	replies []reply
	gate    chan struct{}
	noKey   bool
}

func (c *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	var r reply
	if len(c.replies) > 0 {
		r = c.replies[0]
		c.replies = c.replies[1:]
	} else {
		r = reply{text: "ok"}
	}
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.text, r.err
}

func (c *fakeClient) HasCredential() bool {
	return !c.noKey
}

func (c *fakeClient) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.prompts))
	copy(out, c.prompts)
	return out
}

type event struct {
	role    Role
	text    string
	status  bool
	isState bool
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) OnMessage(role Role, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{role: role, text: text})
}

func (n *recordingNotifier) OnStatusChange(sending bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{status: sending, isState: true})
}

func (n *recordingNotifier) snapshot() []event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]event, len(n.events))
	copy(out, n.events)
	return out
}

func (n *recordingNotifier) messages(role Role) []string {
	var out []string
	for _, e := range n.snapshot() {
		if !e.isState && e.role == role {
			out = append(out, e.text)
		}
	}
	return out
}

func newTestManager(client llm.Client) (*Manager, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewManager(Options{Client: client, Notifier: notifier}), notifier
}

func exchange(t *testing.T, m *Manager, text string) Result {
	t.Helper()
	done, err := m.Submit(context.Background(), text)
	require.NoError(t, err)
	select {
	case res := <-done:
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("exchange %q did not complete", text)
		return Result{}
	}
}

func TestSubmit_FreshSessionSendsInputVerbatim(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: "hi"}}}
	m, notifier := newTestManager(client)

	res := exchange(t, m, "hello")

	require.NoError(t, res.Err)
	assert.Equal(t, "hi", res.Text)
	assert.Equal(t, []string{"hello"}, client.calls())

	history := m.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Text)
	assert.Equal(t, RoleAssistant, history[1].Role)
	assert.Equal(t, "hi", history[1].Text)

	assert.Equal(t, []event{
		{role: RoleUser, text: "hello"},
		{status: true, isState: true},
		{role: RoleAssistant, text: "hi"},
		{status: false, isState: true},
	}, notifier.snapshot())
	assert.Equal(t, StatusIdle, m.Status())
}

func TestSubmit_WithInstructions(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(client)
	m.SetSystemInstructions("be terse")

	res := exchange(t, m, "2+2?")
	require.NoError(t, res.Err)

	prompts := client.calls()
	require.Len(t, prompts, 1)
	assert.True(t, strings.HasPrefix(prompts[0], "be terse"), prompts[0])
	lines := strings.Split(prompts[0], "\n")
	assert.Equal(t, "User: 2+2?", lines[len(lines)-1])
}

func TestSubmit_PromptExcludesCurrentTurn(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: "a1"}, {text: "a2"}}}
	m, _ := newTestManager(client)
	m.SetSystemInstructions("sys")

	exchange(t, m, "q1")
	exchange(t, m, "q2")

	prompts := client.calls()
	require.Len(t, prompts, 2)
	assert.Equal(t, "sys\n\nPrevious conversation:\nUser: q1\nAssistant: a1\n\nUser: q2", prompts[1])
}

func TestSubmit_TrimsAndRejectsEmptyInput(t *testing.T) {
	client := &fakeClient{}
	m, notifier := newTestManager(client)

	for _, in := range []string{"", "   ", "\n\t"} {
		done, err := m.Submit(context.Background(), in)
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Nil(t, done)
	}
	assert.Empty(t, client.calls())
	assert.Empty(t, notifier.snapshot())
	assert.Zero(t, len(m.History()))

	exchange(t, m, "  padded  ")
	assert.Equal(t, "padded", m.History()[0].Text)
}

func TestSubmit_RejectedWhileSending(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	m, _ := newTestManager(client)
	m.SetSystemInstructions("keep me")

	done, err := m.Submit(context.Background(), "first")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(client.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusSending, m.Status())

	before := len(m.History())
	second, err := m.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrAlreadySending)
	assert.Nil(t, second)
	assert.Equal(t, before, len(m.History()))
	assert.Equal(t, "keep me", m.SystemInstructions())
	assert.Len(t, client.calls(), 1)

	assert.ErrorIs(t, m.Clear(), ErrAlreadySending)
	assert.Equal(t, before, len(m.History()))

	close(client.gate)
	res := <-done
	require.NoError(t, res.Err)
	assert.Equal(t, StatusIdle, m.Status())

	exchange(t, m, "third")
	assert.Len(t, client.calls(), 2)
}

func TestSubmit_ConcurrentSubmissionsAdmitOne(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	m, _ := newTestManager(client)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []<-chan Result
		rejected int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			done, err := m.Submit(context.Background(), fmt.Sprintf("msg %d", n))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rejected++
				return
			}
			accepted = append(accepted, done)
		}(i)
	}
	wg.Wait()

	require.Len(t, accepted, 1)
	assert.Equal(t, 15, rejected)

	close(client.gate)
	<-accepted[0]
	assert.Len(t, m.History(), 2)
}

// holdingNotifier blocks inside the first matching callback until release
// is closed.
type holdingNotifier struct {
	recordingNotifier
	holdStatus  bool
	holdNotice  bool
	entered     chan struct{}
	release     chan struct{}
	enteredOnce sync.Once
}

func newHoldingNotifier() *holdingNotifier {
	return &holdingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
}

func (n *holdingNotifier) hold() {
	first := false
	n.enteredOnce.Do(func() { first = true })
	if first {
		close(n.entered)
		<-n.release
	}
}

func (n *holdingNotifier) OnMessage(role Role, text string) {
	n.recordingNotifier.OnMessage(role, text)
	if n.holdNotice && role == RoleNotice {
		n.hold()
	}
}

func (n *holdingNotifier) OnStatusChange(sending bool) {
	n.recordingNotifier.OnStatusChange(sending)
	if n.holdStatus && !sending {
		n.hold()
	}
}

func TestSubmit_IdleNotifiedBeforeNextAdmission(t *testing.T) {
	notifier := newHoldingNotifier()
	notifier.holdStatus = true
	m := NewManager(Options{Client: &fakeClient{}, Notifier: notifier})

	done, err := m.Submit(context.Background(), "first")
	require.NoError(t, err)

	select {
	case <-notifier.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("idle notification never sent")
	}

	second, err := m.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrAlreadySending)
	assert.Nil(t, second)
	assert.Equal(t, StatusSending, m.Status())

	close(notifier.release)
	<-done
	assert.Equal(t, StatusIdle, m.Status())

	exchange(t, m, "third")

	var statuses []bool
	for _, e := range notifier.snapshot() {
		if e.isState {
			statuses = append(statuses, e.status)
		}
	}
	assert.Equal(t, []bool{true, false, true, false}, statuses)
}

func TestSubmit_RateLimitedKeepsUserTurnOnly(t *testing.T) {
	rateLimited := &llm.Error{Kind: llm.KindRateLimited, Status: 429, Message: "quota exceeded"}
	client := &fakeClient{replies: []reply{{text: "hi"}, {err: rateLimited}}}
	m, notifier := newTestManager(client)

	exchange(t, m, "hello")
	before := len(m.History())

	res := exchange(t, m, "again")
	require.Error(t, res.Err)
	assert.Empty(t, res.Text)
	assert.ErrorIs(t, res.Err, llm.ErrRateLimited)

	history := m.History()
	require.Len(t, history, before+1)
	last := history[len(history)-1]
	assert.Equal(t, RoleUser, last.Role)
	assert.Equal(t, "again", last.Text)

	notices := notifier.messages(RoleNotice)
	require.NotEmpty(t, notices)
	assert.Contains(t, notices[len(notices)-1], rateLimitMessage)

	events := notifier.snapshot()
	assert.Equal(t, event{status: false, isState: true}, events[len(events)-1])
	assert.Equal(t, StatusIdle, m.Status())
}

func TestSubmit_ErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"bad request", &llm.Error{Kind: llm.KindBadRequest, Status: 400, Message: "API key not valid"}, badRequestMessage},
		{"empty", &llm.Error{Kind: llm.KindEmptyResponse, Message: "no text"}, emptyReplyMessage},
		{"unknown", &llm.Error{Kind: llm.KindUnknown, Message: "socket closed by peer"}, "socket closed by peer"},
		{"unclassified", errors.New("boom"), "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeClient{replies: []reply{{err: tc.err}}}
			m, notifier := newTestManager(client)

			res := exchange(t, m, "hello")
			require.Error(t, res.Err)

			notices := notifier.messages(RoleNotice)
			require.Len(t, notices, 1)
			assert.True(t, strings.HasPrefix(notices[0], errorPrefix), notices[0])
			assert.Contains(t, notices[0], tc.want)
			assert.Empty(t, notifier.messages(RoleAssistant))
		})
	}
}

func TestSubmit_FailedTurnStaysInContext(t *testing.T) {
	client := &fakeClient{replies: []reply{{err: &llm.Error{Kind: llm.KindRateLimited}}, {text: "ok"}}}
	m, _ := newTestManager(client)
	m.SetSystemInstructions("sys")

	exchange(t, m, "lost?")
	exchange(t, m, "retry")

	prompts := client.calls()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "User: lost?")
}

func TestSubmit_HistoryCapsAtLimit(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(client)

	for i := 1; i <= 4; i++ {
		client.mu.Lock()
		client.replies = append(client.replies, reply{text: fmt.Sprintf("a%d", i)})
		client.mu.Unlock()

		exchange(t, m, fmt.Sprintf("q%d", i))
		assert.LessOrEqual(t, len(m.History()), HistoryLimit)
	}

	history := m.History()
	require.Len(t, history, HistoryLimit)
	var texts []string
	for _, turn := range history {
		texts = append(texts, turn.Text)
	}
	assert.Equal(t, []string{"q2", "a2", "q3", "a3", "q4", "a4"}, texts)
}

func TestSubmit_RequestTimeout(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	notifier := &recordingNotifier{}
	m := NewManager(Options{Client: client, Notifier: notifier, RequestTimeout: 20 * time.Millisecond})

	res := exchange(t, m, "slow")
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, StatusIdle, m.Status())
	assert.Len(t, m.History(), 1)
}

func TestSubmit_RetryPolicyRetriesRateLimitOnly(t *testing.T) {
	client := &fakeClient{replies: []reply{
		{err: &llm.Error{Kind: llm.KindRateLimited}},
		{text: "finally"},
	}}
	m := NewManager(Options{
		Client: client,
		Retry: retry.Policy{
			MaxAttempts: 3,
			Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
		},
	})

	res := exchange(t, m, "hello")
	require.NoError(t, res.Err)
	assert.Equal(t, "finally", res.Text)
	assert.Len(t, client.calls(), 2)

	client.mu.Lock()
	client.replies = []reply{{err: &llm.Error{Kind: llm.KindBadRequest}}}
	client.mu.Unlock()

	res = exchange(t, m, "again")
	assert.ErrorIs(t, res.Err, llm.ErrBadRequest)
	assert.Len(t, client.calls(), 3)
}

func TestSubmit_PanickingClientIsReported(t *testing.T) {
	m, notifier := newTestManager(panicClient{})

	res := exchange(t, m, "hello")
	require.Error(t, res.Err)
	assert.Equal(t, llm.KindUnknown, llm.KindOf(res.Err))
	assert.Len(t, notifier.messages(RoleNotice), 1)
	assert.Equal(t, StatusIdle, m.Status())
}

type panicClient struct{}

func (panicClient) Complete(context.Context, string) (string, error) {
	panic("exploded")
}

func TestClear_PreservesInstructions(t *testing.T) {
	m, notifier := newTestManager(&fakeClient{})
	m.SetSystemInstructions("be terse")
	exchange(t, m, "hello")

	require.NoError(t, m.Clear())
	assert.Empty(t, m.History())
	assert.Equal(t, "be terse", m.SystemInstructions())

	notices := notifier.messages(RoleNotice)
	require.NotEmpty(t, notices)
	assert.Equal(t, WelcomeMessage, notices[len(notices)-1])
}

func TestClear_ReportsClearingStatus(t *testing.T) {
	notifier := newHoldingNotifier()
	notifier.holdNotice = true
	m := NewManager(Options{Client: &fakeClient{}, Notifier: notifier})

	cleared := make(chan error, 1)
	go func() { cleared <- m.Clear() }()

	select {
	case <-notifier.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("welcome notice never sent")
	}
	assert.Equal(t, StatusClearing, m.Status())
	assert.Equal(t, "clearing", m.Snapshot().Status)
	_, err := m.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrAlreadySending)

	close(notifier.release)
	require.NoError(t, <-cleared)
	assert.Equal(t, StatusIdle, m.Status())
}

func TestClear_CanResetInstructions(t *testing.T) {
	m := NewManager(Options{Client: &fakeClient{}, ClearResetsInstructions: true})
	m.SetSystemInstructions("be terse")
	exchange(t, m, "hello")

	require.NoError(t, m.Clear())
	assert.Empty(t, m.History())
	assert.Empty(t, m.SystemInstructions())
}

func TestWelcome_ReportsMissingCredentialOnce(t *testing.T) {
	m, notifier := newTestManager(&fakeClient{noKey: true})
	m.Welcome()

	notices := notifier.messages(RoleNotice)
	require.Len(t, notices, 2)
	assert.Equal(t, WelcomeMessage, notices[0])
	assert.Equal(t, missingKeyNotice, notices[1])

	m2, notifier2 := newTestManager(&fakeClient{})
	m2.Welcome()
	assert.Equal(t, []string{WelcomeMessage}, notifier2.messages(RoleNotice))
}

func TestSetSystemInstructions_AppliesToNextSubmit(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	m, _ := newTestManager(client)

	done, err := m.Submit(context.Background(), "first")
	require.NoError(t, err)
	m.SetSystemInstructions("now formal")
	close(client.gate)
	<-done

	exchange(t, m, "second")
	prompts := client.calls()
	require.Len(t, prompts, 2)
	assert.Equal(t, "first", prompts[0])
	assert.True(t, strings.HasPrefix(prompts[1], "now formal"))
}

func TestSnapshot(t *testing.T) {
	m, _ := newTestManager(&fakeClient{})
	m.SetSystemInstructions("sys")
	exchange(t, m, "hello")

	snap := m.Snapshot()
	assert.Equal(t, m.ID(), snap.ID)
	assert.Equal(t, "idle", snap.Status)
	assert.Equal(t, "sys", snap.Instructions)
	assert.Len(t, snap.History, 2)
}

func TestWait(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	m, _ := newTestManager(client)

	_, err := m.Submit(context.Background(), "hello")
	require.NoError(t, err)
	close(client.gate)
	m.Wait()
	assert.Equal(t, StatusIdle, m.Status())
	assert.Len(t, m.History(), 2)
}
