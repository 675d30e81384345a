package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts Messages to an incoming webhook URL. It's the
// one concrete Notifier Headwind ships, since spec §9 names Slack as
// the example external collaborator; anything else (email, pager) is
// a separate adapter implementing the same interface.
type SlackNotifier struct {
	WebhookURL string
}

var severityColor = map[Severity]string{
	SeverityInfo:     "#2eb886",
	SeverityWarning:  "#daa038",
	SeverityCritical: "#a30200",
}

func (s SlackNotifier) Notify(ctx context.Context, msg Message) error {
	fields := make([]slack.AttachmentField, 0, len(msg.Fields))
	for k, v := range msg.Fields {
		fields = append(fields, slack.AttachmentField{Title: k, Value: v, Short: true})
	}

	payload := &slack.WebhookMessage{
		Attachments: []slack.Attachment{
			{
				Color:  severityColor[msg.Severity],
				Title:  msg.Title,
				Text:   msg.Text,
				Fields: fields,
			},
		},
	}

	if err := slack.PostWebhookContext(ctx, s.WebhookURL, payload); err != nil {
		return fmt.Errorf("posting slack notification: %w", err)
	}
	return nil
}
