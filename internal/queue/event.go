// Package queue defines message payloads exchanged over the message broker
// and the consumer that delivers them.
package queue

// DefaultMailQueue is the durable queue carrying outbound mail.
const DefaultMailQueue = "mail.outbound"

// MailMessage is published when the API needs an email delivered, e.g. a
// confirmation code.  It carries everything the consumer needs, so no
// database access is required to send it.
type MailMessage struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	QueuedAt string `json:"queued_at"`
}
