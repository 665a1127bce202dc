package signaling

import (
	"errors"
	"testing"
)

func TestParseMessage_AcceptsSignalTypes(t *testing.T) {
	for _, raw := range []string{
		`{"type":"offer","from":"a","to":"b","payload":"v=0"}`,
		`{"type":"answer","from":"b","to":"a","payload":"v=0"}`,
		`{"type":"candidate","from":"a","to":"b","payload":"candidate:1"}`,
		`{"type":"ping"}`,
	} {
		if _, err := parseMessage([]byte(raw)); err != nil {
			t.Fatalf("parseMessage(%s): %v", raw, err)
		}
	}
}

func TestParseMessage_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"not json",
		"[]",
		`"offer"`,
		`{"type":"offer","from":"a","to":"b"}{"type":"ping"}`,
		`{"type":"offer","from":"a","to":"b","extra":true}`,
		`{"type":"offer","from":"a","to":"b","payload":{"sdp":"v=0"}}`,
		`{"type":"candidate","from":"a","to":"b","payload":["candidate:1"]}`,
		`{"type":"offer","from":"a","to":"b","payload":42}`,
	} {
		_, err := parseMessage([]byte(raw))
		if err == nil {
			t.Fatalf("parseMessage(%q): expected error", raw)
		}
		if errors.Is(err, errUnknownType) {
			t.Fatalf("parseMessage(%q): got unknown-type, want malformed", raw)
		}
	}
}

func TestParseMessage_RejectsUnknownType(t *testing.T) {
	for _, raw := range []string{
		`{"type":"pong"}`,
		`{"type":"user-list","payload":["a"]}`,
		`{"type":"subscribe"}`,
		`{"type":""}`,
	} {
		if _, err := parseMessage([]byte(raw)); !errors.Is(err, errUnknownType) {
			t.Fatalf("parseMessage(%q): err=%v, want errUnknownType", raw, err)
		}
	}
}

func TestEncodeMessage_OmitsEmptyFields(t *testing.T) {
	data, err := encodeMessage(message{Type: messageTypePing})
	if err != nil {
		t.Fatalf("encodeMessage: %v", err)
	}
	if got, want := string(data), `{"type":"ping"}`; got != want {
		t.Fatalf("encoded=%s, want %s", got, want)
	}
}

func TestEncodeUserList(t *testing.T) {
	data, err := encodeUserList([]string{"alice", "receiver-1"})
	if err != nil {
		t.Fatalf("encodeUserList: %v", err)
	}
	if got, want := string(data), `{"type":"user-list","payload":["alice","receiver-1"]}`; got != want {
		t.Fatalf("encoded=%s, want %s", got, want)
	}

	data, err = encodeUserList(nil)
	if err != nil {
		t.Fatalf("encodeUserList(nil): %v", err)
	}
	if got, want := string(data), `{"type":"user-list","payload":[]}`; got != want {
		t.Fatalf("encoded=%s, want %s", got, want)
	}
}
