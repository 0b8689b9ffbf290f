package models

// WebhookEvent is the body Messenger posts to the webhook endpoint.
type WebhookEvent struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID        string             `json:"id"`
	Time      int64              `json:"time"`
	Messaging []MessagingElement `json:"messaging"`
}

type MessagingElement struct {
	Sender    Participant      `json:"sender"`
	Recipient Participant      `json:"recipient"`
	Timestamp int64            `json:"timestamp"`
	Postback  *PostbackContent `json:"postback,omitempty"`
	Message   *MessageContent  `json:"message,omitempty"`
}

type Participant struct {
	ID string `json:"id"`
}

type PostbackContent struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type MessageContent struct {
	Mid  string `json:"mid"`
	Text string `json:"text"`
}

// Message is a platform independent inbound message.
// Exactly one of Payload or Text is set for supported kinds; both are empty otherwise.
type Message struct {
	SenderID string
	Payload  string
	Text     string
	Postback bool
}

func (e MessagingElement) ToMessage() Message {
	msg := Message{SenderID: e.Sender.ID}
	switch {
	case e.Postback != nil:
		msg.Postback = true
		msg.Payload = e.Postback.Payload
	case e.Message != nil:
		msg.Text = e.Message.Text
	}
	return msg
}

// Choice is one button of a choice prompt.
type Choice struct {
	Label   string
	Payload string
}

// Reply is the response produced for an inbound message.
// An empty Recipient means the reply goes back to the sender; empty Text means nothing is sent.
type Reply struct {
	Text      string
	Recipient string
}

func (r Reply) Empty() bool {
	return r.Text == ""
}

func (r Reply) To(senderID string) string {
	if r.Recipient != "" {
		return r.Recipient
	}
	return senderID
}

// Delivery summarises one broadcast fan-out.
type Delivery struct {
	Recipients int
	Sent       int
	Failed     int
}
