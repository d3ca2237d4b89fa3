package transport

import (
	"os"
	"testing"

	"meetcore/saver"
)

// fakeClient records every Message sent to it, standing in for a wsClient
// or grpcClient without a live socket.
type fakeClient struct {
	sent []Message
}

func (f *fakeClient) Send(msg Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeClient) Close() error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return &Server{
		ConfigDir: t.TempDir(),
		clients:   make(map[client]bool),
	}
}

func TestHandleUnknownCommandRepliesError(t *testing.T) {
	s := newTestServer(t)
	c := &fakeClient{}
	s.handle(c.Send, Message{Type: "not_a_real_command"})

	if len(c.sent) != 1 || c.sent[0].Type != "error" {
		t.Fatalf("expected one error reply, got %+v", c.sent)
	}
}

func TestHandleRecordingPreferencesRoundTrip(t *testing.T) {
	s := newTestServer(t)
	c := &fakeClient{}

	prefs := saver.Preferences{OutputDir: "/tmp/out", AutoSave: false, Format: "mp3"}
	s.handle(c.Send, Message{Type: "set_recording_preferences", Preferences: &prefs})
	s.handle(c.Send, Message{Type: "get_recording_preferences"})

	if len(c.sent) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(c.sent))
	}
	got := c.sent[1].Preferences
	if got == nil || got.OutputDir != prefs.OutputDir || got.AutoSave != prefs.AutoSave {
		t.Fatalf("preferences did not round-trip: %+v", got)
	}
}

func TestHandleGetRecordingPreferencesDefaultsWhenUnset(t *testing.T) {
	s := newTestServer(t)
	s.ConfigDir = os.TempDir() + "/meetcore-transport-test-missing"
	c := &fakeClient{}

	s.handle(c.Send, Message{Type: "get_recording_preferences"})

	if len(c.sent) != 1 || c.sent[0].Preferences == nil {
		t.Fatalf("expected default preferences reply, got %+v", c.sent)
	}
}

func TestBroadcastSkipsRemovedClients(t *testing.T) {
	s := newTestServer(t)
	c := &fakeClient{}
	s.addClient(c)
	s.removeClient(c)

	s.broadcast(Message{Type: "recording-stopped"})

	if len(c.sent) != 0 {
		t.Fatalf("expected no messages after removal, got %+v", c.sent)
	}
}
