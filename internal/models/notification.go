package models

// Recipient identifies one delivery target of a notification intent. UserID
// drives the realtime push channel; Email drives mail delivery. Either may be
// empty.
type Recipient struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

// PushEvent is the realtime payload published to a recipient's channel.
type PushEvent struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	ResourceID string `json:"resourceId,omitempty"`
}

// NotificationIntent is an outbound fan-out request emitted by the core:
// "notify recipient set R with message M, and push event E". Delivery is the
// dispatcher's concern; failure of one recipient never affects the others or
// the mutation that triggered the intent.
type NotificationIntent struct {
	Recipients []Recipient `json:"recipients"`
	Subject    string      `json:"subject"`
	HTMLBody   string      `json:"htmlBody"`
	Push       *PushEvent  `json:"push,omitempty"`
}
