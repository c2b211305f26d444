package session

// Notifier is the UI side of the session. Calls arrive from the submitting
// goroutine and from request workers, so implementations must be safe for
// concurrent use and must not block for long.
type Notifier interface {
	OnMessage(role Role, text string)
	OnStatusChange(sending bool)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) OnMessage(Role, string) {}
func (NopNotifier) OnStatusChange(bool)    {}
