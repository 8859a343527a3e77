package notify

// Type discriminates push notifications at the receiving device.
// These values are contract-bearing; the mobile clients switch on them.
type Type string

const (
	TypeCall       Type = "call"
	TypeMissedCall Type = "missedCall"
)

// Payload is the data half of a call push notification.
// Field names are part of the wire contract with the clients.
type Payload struct {
	Type        Type   `json:"type"`
	CallID      string `json:"callId"`
	CallerID    string `json:"callerId"`
	ChannelName string `json:"channelName"`
	IsAudioOnly bool   `json:"isAudioOnly"`
}

// Notification is a localized, ready-to-deliver push message.
type Notification struct {
	Payload Payload `json:"payload"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
}
