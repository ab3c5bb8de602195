package hub

import "github.com/gofiber/websocket/v2"

// Kind says what a broadcast carries. The two camview streams never mix
// kinds: /ws/status sends Status and /ws/frames sends Frame.
type Kind uint8

const (
	Status Kind = iota // encoded JSON document
	Frame              // JPEG preview bytes
)

func (k Kind) String() string {
	if k == Frame {
		return "frame"
	}
	return "status"
}

// frameType is the websocket opcode used to send k.
func (k Kind) frameType() int {
	if k == Frame {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Message is one broadcast. Payload is shared by every client and must
// not be modified after Broadcast.
type Message struct {
	Kind    Kind
	Payload []byte
}

// StatusMessage wraps an already encoded JSON document.
func StatusMessage(doc []byte) Message { return Message{Kind: Status, Payload: doc} }

// FrameMessage wraps an encoded JPEG.
func FrameMessage(jpeg []byte) Message { return Message{Kind: Frame, Payload: jpeg} }
