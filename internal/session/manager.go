package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"amzaki/internal/llm"
	"amzaki/internal/retry"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

var (
	ErrEmptyInput     = errors.New("empty input")
	ErrAlreadySending = errors.New("a request is already in flight")
)

// Status is the manager's position in the request cycle.
type Status int32

const (
	StatusIdle Status = iota
	StatusSending
	StatusClearing
)

func (s Status) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusClearing:
		return "clearing"
	}
	return "idle"
}

// Result is the outcome of one submitted message: Text on success, Err on
// failure, never both.
type Result struct {
	Text string
	Err  error
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Instructions string `json:"instructions"`
	History      []Turn `json:"history"`
}

type Options struct {
	Client   llm.Client
	Notifier Notifier
	Logger   *slog.Logger
	// RequestTimeout bounds a single exchange including retries. Zero disables it.
	RequestTimeout time.Duration
	// ClearResetsInstructions makes Clear drop the instructions too.
	ClearResetsInstructions bool
	// Retry is the caller-side retry policy. The zero value never retries.
	Retry retry.Policy
}

// Manager runs the request cycle Idle -> Sending -> Completed|Failed -> Idle.
// At most one request is in flight: the single semaphore slot is taken by
// Submit and Clear and released by the request worker.
type Manager struct {
	id          string
	client      llm.Client
	notifier    Notifier
	logger      *slog.Logger
	timeout     time.Duration
	clearResets bool
	retry       retry.Policy

	state  *State
	slot   *semaphore.Weighted
	status atomic.Int32
	wg     sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	id := uuid.NewString()
	logger := opts.Logger
	if logger != nil {
		logger = logger.With(slog.String("session_id", id))
	}
	return &Manager{
		id:          id,
		client:      opts.Client,
		notifier:    notifier,
		logger:      logger,
		timeout:     opts.RequestTimeout,
		clearResets: opts.ClearResetsInstructions,
		retry:       opts.Retry,
		state:       NewState(HistoryLimit),
		slot:        semaphore.NewWeighted(1),
	}
}

func (m *Manager) ID() string {
	return m.id
}

func (m *Manager) Status() Status {
	return Status(m.status.Load())
}

// Welcome emits the greeting notice, plus a warning when the client reports
// that no credential is configured.
func (m *Manager) Welcome() {
	m.notifier.OnMessage(RoleNotice, WelcomeMessage)
	if c, ok := m.client.(interface{ HasCredential() bool }); ok && !c.HasCredential() {
		m.notifier.OnMessage(RoleNotice, missingKeyNotice)
		if m.logger != nil {
			m.logger.Warn("api key is missing, completions will fail")
		}
	}
}

// Submit starts one exchange. It returns ErrEmptyInput for blank input and
// ErrAlreadySending while another exchange is in flight; in both cases
// nothing changes. On acceptance the user turn is recorded immediately and
// the returned channel receives exactly one Result.
func (m *Manager) Submit(ctx context.Context, userInput string) (<-chan Result, error) {
	text := strings.TrimSpace(userInput)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if !m.slot.TryAcquire(1) {
		return nil, ErrAlreadySending
	}
	m.status.Store(int32(StatusSending))

	prompt := BuildPrompt(text, m.state.Instructions(), m.state.Window(PromptWindow))
	m.state.Append(NewTurn(RoleUser, text))

	m.notifier.OnMessage(RoleUser, text)
	m.notifier.OnStatusChange(true)

	done := make(chan Result, 1)
	m.wg.Add(1)
	go m.run(ctx, uuid.NewString(), prompt, done)
	return done, nil
}

func (m *Manager) run(ctx context.Context, requestID string, prompt string, done chan<- Result) {
	defer m.wg.Done()

	logger := m.logger
	if logger != nil {
		logger = logger.With(slog.String("request_id", requestID))
	}
	start := time.Now()

	reply, err := m.complete(ctx, prompt, logger)

	var res Result
	if err != nil {
		res = Result{Err: err}
		if logger != nil {
			logger.Error("completion failed",
				slog.String("kind", llm.KindOf(err).String()),
				slog.Duration("duration", time.Since(start)),
				slog.String("error", err.Error()))
		}
		m.notifier.OnMessage(RoleNotice, UserMessage(err))
	} else {
		res = Result{Text: reply}
		m.state.Append(NewTurn(RoleAssistant, reply))
		if logger != nil {
			logger.Info("completion succeeded",
				slog.Int("history", m.state.Len()),
				slog.Duration("duration", time.Since(start)))
		}
		m.notifier.OnMessage(RoleAssistant, reply)
	}

	// The slot is held until the idle notification is out, so a following
	// Submit cannot report sending before this request reports idle.
	m.notifier.OnStatusChange(false)
	m.status.Store(int32(StatusIdle))
	m.slot.Release(1)

	done <- res
	close(done)
}

func (m *Manager) complete(ctx context.Context, prompt string, logger *slog.Logger) (reply string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reply = ""
			err = &llm.Error{Kind: llm.KindUnknown, Message: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	if m.client == nil {
		return "", &llm.Error{Kind: llm.KindUnknown, Message: "no completion client configured"}
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	err = retry.Do(ctx, m.retry, logger, retryRateLimited, func(ctx context.Context) error {
		text, err := m.client.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		reply = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// retryRateLimited only retries throttled requests; every other failure is
// surfaced to the user right away.
func retryRateLimited(err error) (bool, string) {
	if llm.KindOf(err) == llm.KindRateLimited {
		return true, "rate limit"
	}
	return false, ""
}

// SetSystemInstructions replaces the instructions used by the next Submit.
func (m *Manager) SetSystemInstructions(text string) {
	m.state.SetInstructions(text)
	if m.logger != nil {
		m.logger.Debug("system instructions updated", slog.Int("chars", len(text)))
	}
}

func (m *Manager) SystemInstructions() string {
	return m.state.Instructions()
}

// Clear empties the history and re-emits the greeting. It is refused with
// ErrAlreadySending while an exchange is in flight.
func (m *Manager) Clear() error {
	if !m.slot.TryAcquire(1) {
		return ErrAlreadySending
	}
	m.status.Store(int32(StatusClearing))
	defer func() {
		m.status.Store(int32(StatusIdle))
		m.slot.Release(1)
	}()

	m.state.Reset(m.clearResets)
	if m.logger != nil {
		m.logger.Info("history cleared", slog.Bool("instructions_cleared", m.clearResets))
	}
	m.notifier.OnMessage(RoleNotice, WelcomeMessage)
	return nil
}

// History returns a copy of the stored turns.
func (m *Manager) History() []Turn {
	return m.state.History()
}

func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		ID:           m.id,
		Status:       m.Status().String(),
		Instructions: m.state.Instructions(),
		History:      m.state.History(),
	}
}

// Wait blocks until the in-flight request, if any, has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
