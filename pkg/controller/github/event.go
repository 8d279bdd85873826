// Package github converts GitHub webhook deliveries into domain events.
package github

import (
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
)

// NewWebhookEvent parses a webhook payload of eventType. Event types that cannot change
// a timeline are returned as model.EventTypeUnknown with no repository.
func NewWebhookEvent(eventType, deliveryID string, body []byte, receivedAt time.Time) (*model.WebhookEvent, error) {
	payload, err := github.ParseWebHook(eventType, body)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid webhook payload", goerr.V("event_type", eventType))
	}

	event := &model.WebhookEvent{
		ID:         deliveryID,
		Type:       model.WebhookEventType(eventType),
		ReceivedAt: receivedAt,
		RawPayload: body,
	}

	switch e := payload.(type) {
	case *github.PullRequestEvent:
		event.Action = e.GetAction()
		event.Repository = e.GetRepo().GetFullName()
		event.DefaultBranch = e.GetRepo().GetDefaultBranch()
		event.Sender = e.GetSender().GetLogin()
	case *github.ReleaseEvent:
		event.Action = e.GetAction()
		event.Repository = e.GetRepo().GetFullName()
		event.DefaultBranch = e.GetRepo().GetDefaultBranch()
		event.Sender = e.GetSender().GetLogin()
	case *github.PushEvent:
		event.Ref = e.GetRef()
		event.Repository = e.GetRepo().GetFullName()
		event.DefaultBranch = e.GetRepo().GetDefaultBranch()
		if event.DefaultBranch == "" {
			event.DefaultBranch = e.GetRepo().GetMasterBranch()
		}
		event.Sender = e.GetSender().GetLogin()
	default:
		event.Type = model.EventTypeUnknown
		return event, nil
	}

	if event.Repository == "" {
		return nil, goerr.New("missing repository in webhook payload",
			goerr.V("event_type", eventType),
			goerr.V("delivery_id", deliveryID),
		)
	}

	return event, nil
}
