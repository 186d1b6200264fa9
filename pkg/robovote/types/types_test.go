package types

import "testing"

func TestTopic_Valid(t *testing.T) {
	for _, topic := range Catalog {
		if !topic.Valid() {
			t.Fatalf("expected catalog member %q to be valid", topic)
		}
	}
	if Topic("SpinAround").Valid() {
		t.Fatalf("expected a topic outside the fixed catalog to be invalid")
	}
}

func TestMessage_WithSenderRewritesEnvelope(t *testing.T) {
	msg := Message{
		Type:       KindAction,
		SenderID:   1,
		SenderHost: "old-host",
		SenderPort: 1111,
	}
	out := msg.WithSender(2, "new-host", 2222)

	if out.SenderID != 2 || out.SenderHost != "new-host" || out.SenderPort != 2222 {
		t.Fatalf("expected envelope rewritten to the new sender, got %+v", out)
	}
	if msg.SenderID != 1 {
		t.Fatalf("expected WithSender to leave the receiver unmodified, got %+v", msg)
	}
}

func TestMessage_Sender(t *testing.T) {
	msg := Message{SenderID: 3, SenderHost: "h", SenderPort: 9}
	id, host, port := msg.Sender()
	if id != 3 || host != "h" || port != 9 {
		t.Fatalf("unexpected Sender() result: %d %s %d", id, host, port)
	}
}

func TestEndpoint_String(t *testing.T) {
	e := Endpoint{Host: "localhost", Port: 8001}
	if e.String() != "localhost:8001" {
		t.Fatalf("expected localhost:8001, got %q", e.String())
	}
}
