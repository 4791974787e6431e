package model

// MessageKind distinguishes the two outbound message shapes.
type MessageKind string

const (
	KindText            MessageKind = "text"
	KindImageAttachment MessageKind = "image_attachment"
)

// OutboundMessage is what a turn hands back to the transport.
type OutboundMessage struct {
	Kind    MessageKind `json:"kind"`
	Content string      `json:"content,omitempty"`
	URL     string      `json:"url,omitempty"`
}

func TextMessage(content string) OutboundMessage {
	return OutboundMessage{Kind: KindText, Content: content}
}

func ImageMessage(url string) OutboundMessage {
	return OutboundMessage{Kind: KindImageAttachment, URL: url}
}
