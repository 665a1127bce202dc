package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type messageType string

const (
	messageTypeOffer     messageType = "offer"
	messageTypeAnswer    messageType = "answer"
	messageTypeCandidate messageType = "candidate"
	messageTypePing      messageType = "ping"

	// Server-originated only.
	messageTypePong     messageType = "pong"
	messageTypeUserList messageType = "user-list"
)

var (
	errMalformedMessage = errors.New("malformed message")
	errUnknownType      = errors.New("unknown message type")
)

// message is the client-facing signaling envelope. Payload is an opaque
// string (SDP or an ICE candidate encoded as text); the relay never
// interprets it.
type message struct {
	Type    messageType `json:"type"`
	From    string      `json:"from,omitempty"`
	To      string      `json:"to,omitempty"`
	Payload string      `json:"payload,omitempty"`
}

// parseMessage decodes a single inbound frame. Decoding is strict: unknown
// fields, trailing data, non-object frames, and non-string payloads are all
// malformed. Field presence (from/to) is validated by the caller so it can
// distinguish drop reasons.
func parseMessage(data []byte) (message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg message
	if err := dec.Decode(&msg); err != nil {
		return message{}, errMalformedMessage
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return message{}, errMalformedMessage
	}

	switch msg.Type {
	case messageTypeOffer, messageTypeAnswer, messageTypeCandidate, messageTypePing:
		return msg, nil
	default:
		return message{}, fmt.Errorf("%w: %q", errUnknownType, msg.Type)
	}
}

// isRouted reports whether the message is addressed to a peer (as opposed to
// ping, which the server answers itself).
func (m message) isRouted() bool {
	return m.Type != messageTypePing
}

func encodeMessage(m message) ([]byte, error) {
	return json.Marshal(m)
}

var pongFrame = []byte(`{"type":"pong"}`)

// userListMessage is broadcast to every open session whenever registry
// membership changes.
type userListMessage struct {
	Type    messageType `json:"type"`
	Payload []string    `json:"payload"`
}

func encodeUserList(usernames []string) ([]byte, error) {
	if usernames == nil {
		usernames = []string{}
	}
	return json.Marshal(userListMessage{Type: messageTypeUserList, Payload: usernames})
}
