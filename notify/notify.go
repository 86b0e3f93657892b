package notify

import (
	"github.com/sirupsen/logrus"
)

// Message is a fully resolved notification: the engine materializes
// recipient, subject and body before handing it over; delivery, retry
// and recipient override policy belong to the transport.
type Message struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

var SendFunc = Send

// Send is the default transport: it only logs the message. A real mail
// transport replaces SendFunc at startup.
func Send(m *Message) error {
	logrus.WithFields(logrus.Fields{
		"recipient": m.Recipient,
		"subject":   m.Subject,
	}).Info("message sent")
	return nil
}
