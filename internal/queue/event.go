// Package queue defines the rating events exchanged over RabbitMQ together
// with their publisher and the audit-log consumer.
package queue

import "time"

// RatingSubmittedEvent is published after a rating is created or updated.
// It carries enough information for downstream consumers to log or notify
// without querying the primary database.
type RatingSubmittedEvent struct {
	RatingID    string    `json:"ratingId"`
	StoreID     string    `json:"storeId"`
	StoreName   string    `json:"storeName"`
	UserID      string    `json:"userId"`
	UserEmail   string    `json:"userEmail"`
	RatingValue int       `json:"ratingValue"`
	Created     bool      `json:"created"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Action returns "created" or "updated".
func (e RatingSubmittedEvent) Action() string {
	if e.Created {
		return "created"
	}
	return "updated"
}
