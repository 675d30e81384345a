// Package notify defines the one-way notification contract the core
// calls out to when an operator needs to know something happened that
// it could not fully resolve on its own — e.g. a rollback with no
// recorded previous version. Per spec §9's "cyclic references" note,
// the core only owns this interface; a concrete dispatcher (Slack,
// email, pager) is an external collaborator. The shape is modeled on
// github.com/slack-go/slack's WebhookMessage, so a Slack adapter drops
// straight in without reshaping Message.
package notify

import "context"

// Severity classifies a notification for routing by a concrete
// adapter (e.g. only paging on SeverityCritical).
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message is the payload handed to a Notifier. Fields carries
// structured context (workload, slot, reason, ...) the way
// slack.Attachment.Fields does.
type Message struct {
	Severity Severity
	Title    string
	Text     string
	Fields   map[string]string
}

// Notifier is the contract the core depends on. It never depends on a
// concrete delivery mechanism.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Noop discards every message. It's the default Notifier wherever none
// is configured, so callers never need a nil check.
type Noop struct{}

func (Noop) Notify(context.Context, Message) error { return nil }
