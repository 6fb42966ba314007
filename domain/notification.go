package domain

import (
	"encoding/json"
	"fmt"
)

// NotificationType discriminates live-connection event payloads.
type NotificationType string

const (
	// NotificationConnectionEstablished greets a freshly registered connection.
	NotificationConnectionEstablished NotificationType = "connection_established"
	// NotificationFeedProcessed reports completion of an initial feed ingestion.
	NotificationFeedProcessed NotificationType = "feed_processed"
	// NotificationNewArticles reports new articles after a refresh.
	NotificationNewArticles NotificationType = "new_articles"
	// NotificationImportCompleted reports the outcome of a bulk import.
	NotificationImportCompleted NotificationType = "import_completed"
	// NotificationError reports a terminal job failure to its initiator.
	NotificationError NotificationType = "error"
	// NotificationPong answers a client heartbeat. Not a data event.
	NotificationPong NotificationType = "pong"
)

// Notification is the closed set of event payloads pushed over live
// connections. Construct values through the New* helpers; MarshalJSON is the
// single serialization boundary and rejects unknown types.
type Notification struct {
	Type      NotificationType
	Message   string
	FeedID    int64
	Count     int
	Succeeded int
	Failed    int
}

// NewConnectionEstablished builds the greeting sent right after a successful
// websocket handshake.
func NewConnectionEstablished() Notification {
	return Notification{
		Type:    NotificationConnectionEstablished,
		Message: "connected to the live notification service",
	}
}

// NewFeedProcessed builds the summary for a completed initial ingestion.
func NewFeedProcessed(feedID int64, feedTitle string, newCount int) Notification {
	msg := fmt.Sprintf("feed %q added successfully", feedTitle)
	if newCount > 0 {
		msg += fmt.Sprintf(", %d new articles fetched", newCount)
	} else {
		msg += ", no new articles yet"
	}
	return Notification{
		Type:    NotificationFeedProcessed,
		Message: msg,
		FeedID:  feedID,
	}
}

// NewNewArticles builds the per-subscriber refresh summary.
func NewNewArticles(feedID int64, feedTitle string, count int) Notification {
	return Notification{
		Type:    NotificationNewArticles,
		Message: fmt.Sprintf("%d new articles published in %q", count, feedTitle),
		FeedID:  feedID,
		Count:   count,
	}
}

// NewImportCompleted builds the bulk-import summary.
func NewImportCompleted(succeeded, failed int) Notification {
	return Notification{
		Type:      NotificationImportCompleted,
		Message:   fmt.Sprintf("subscription import completed: %d succeeded, %d failed", succeeded, failed),
		Succeeded: succeeded,
		Failed:    failed,
	}
}

// NewErrorNotification builds a generic failure report.
func NewErrorNotification(message string) Notification {
	return Notification{
		Type:    NotificationError,
		Message: message,
	}
}

// NewPong answers a heartbeat ping.
func NewPong() Notification {
	return Notification{Type: NotificationPong}
}

// MarshalJSON serializes the notification with a type discriminator,
// emitting only the fields that belong to each variant.
func (n Notification) MarshalJSON() ([]byte, error) {
	switch n.Type {
	case NotificationConnectionEstablished, NotificationError:
		return json.Marshal(struct {
			Type    NotificationType `json:"type"`
			Message string           `json:"message"`
		}{n.Type, n.Message})
	case NotificationFeedProcessed:
		return json.Marshal(struct {
			Type    NotificationType `json:"type"`
			Message string           `json:"message"`
			FeedID  int64            `json:"feed_id"`
		}{n.Type, n.Message, n.FeedID})
	case NotificationNewArticles:
		return json.Marshal(struct {
			Type    NotificationType `json:"type"`
			Message string           `json:"message"`
			FeedID  int64            `json:"feed_id"`
			Count   int              `json:"count"`
		}{n.Type, n.Message, n.FeedID, n.Count})
	case NotificationImportCompleted:
		return json.Marshal(struct {
			Type      NotificationType `json:"type"`
			Message   string           `json:"message"`
			Succeeded int              `json:"succeeded"`
			Failed    int              `json:"failed"`
		}{n.Type, n.Message, n.Succeeded, n.Failed})
	case NotificationPong:
		return json.Marshal(struct {
			Type NotificationType `json:"type"`
		}{n.Type})
	default:
		return nil, fmt.Errorf("unknown notification type: %q", n.Type)
	}
}
