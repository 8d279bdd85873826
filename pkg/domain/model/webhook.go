package model

import (
	"strings"
	"time"
)

// WebhookEventType represents the type of webhook event received
type WebhookEventType string

const (
	EventTypePullRequest WebhookEventType = "pull_request"
	EventTypeRelease     WebhookEventType = "release"
	EventTypePush        WebhookEventType = "push"
	EventTypeUnknown     WebhookEventType = "unknown"
)

// WebhookEvent represents a webhook event received from GitHub
type WebhookEvent struct {
	ID            string           // Retrieved from X-GitHub-Delivery header
	Type          WebhookEventType // Retrieved from X-GitHub-Event header
	Action        string           // Event action (e.g., closed, published)
	Repository    string           // Repository full name (owner/name)
	Ref           string           // Pushed ref, push events only
	DefaultBranch string           // Default branch of the repository, if reported
	Sender        string           // Sender username
	ReceivedAt    time.Time        // Time when the event was received
	RawPayload    []byte           // Raw JSON payload
}

// IsSupportedEvent reports whether the event can change a repository timeline
func (e *WebhookEvent) IsSupportedEvent() bool {
	switch e.Type {
	case EventTypePullRequest:
		// merged PRs and edited titles change merge attribution
		return e.Action == "closed" || e.Action == "edited"
	case EventTypeRelease:
		switch e.Action {
		case "published", "released", "edited", "deleted", "unpublished":
			return true
		}
		return false
	case EventTypePush:
		return true
	default:
		return false
	}
}

// TouchesDefaultBranch reports whether a push event updated the default branch. Events
// that do not report the default branch are assumed to touch it.
func (e *WebhookEvent) TouchesDefaultBranch() bool {
	if e.Type != EventTypePush || e.DefaultBranch == "" {
		return true
	}
	if strings.HasPrefix(e.Ref, "refs/tags/") {
		return true
	}
	return strings.TrimPrefix(e.Ref, "refs/heads/") == e.DefaultBranch
}
