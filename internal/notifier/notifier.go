package notifier

import (
	"context"
	"sync"

	"auction-engine/utils"
)

// Notifier delivers a message to a set of recipients. The lifecycle engine
// treats delivery as fire-and-forget: implementations log failures themselves
// and must never block a state transition on delivery.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, body string)
}

// Directory resolves the broadcast recipient list for auction announcements.
type Directory interface {
	BroadcastList(ctx context.Context) ([]string, error)
}

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development and tests; production wires a real delivery channel.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, recipients []string, subject, body string) {
	utils.Info("notification requested", map[string]any{
		"recipients": len(recipients),
		"subject":    subject,
		"body":       body,
	})
}

// StaticDirectory is a fixed, concurrency-safe recipient list.
type StaticDirectory struct {
	mu     sync.RWMutex
	emails []string
}

func NewStaticDirectory(emails ...string) *StaticDirectory {
	return &StaticDirectory{emails: emails}
}

func (d *StaticDirectory) BroadcastList(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.emails...), nil
}

// Add registers another recipient for broadcast announcements
func (d *StaticDirectory) Add(email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, email)
}
