package messages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kpawlak/taskgrid/internal/common"
	"github.com/kpawlak/taskgrid/internal/logging"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// fakeEncryptor marshals the payload without encrypting so tests can read
// it back, and treats any username not in keys as having no registered key.
type fakeEncryptor struct {
	keys map[string]string
}

func (f *fakeEncryptor) RegisteredKey(ctx context.Context, username string) (string, error) {
	key, ok := f.keys[username]
	if !ok {
		return "", common.ErrorKeyMissing
	}
	return key, nil
}

func (f *fakeEncryptor) EncryptResponse(ctx context.Context, username string, payload any) ([]byte, error) {
	if _, ok := f.keys[username]; !ok {
		return nil, common.ErrorKeyMissing
	}
	return json.Marshal(payload)
}

func newTestManager(usernames ...string) *Manager {
	keys := make(map[string]string)
	for _, u := range usernames {
		keys[u] = "key-" + u
	}
	return NewManager(&fakeEncryptor{keys: keys}, nopLogger{})
}

func TestSend_SelfSendRejected(t *testing.T) {
	m := newTestManager("alice")
	err := m.Send(context.Background(), "alice", "hi me", "alice")
	if !errors.Is(err, common.ErrorSelfSend) {
		t.Fatalf("want ErrorSelfSend, got %v", err)
	}
}

func TestSend_UnavailableRecipient(t *testing.T) {
	m := newTestManager("alice")
	err := m.Send(context.Background(), "nobody", "hello", "alice")
	if !errors.Is(err, common.ErrorRecipientUnavailable) {
		t.Fatalf("want ErrorRecipientUnavailable, got %v", err)
	}
}

func TestSendReceive_FIFOAndDestructive(t *testing.T) {
	ctx := context.Background()
	m := newTestManager("alice", "bob")

	for i := 0; i < 3; i++ {
		if err := m.Send(ctx, "bob", fmt.Sprintf("msg-%d", i), "alice"); err != nil {
			t.Fatalf("Send error: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		sealed, ok := m.Receive("bob")
		if !ok {
			t.Fatalf("message %d missing", i)
		}
		var payload envelopePayload
		if err := json.Unmarshal(sealed, &payload); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}
		if payload.Message != fmt.Sprintf("msg-%d", i) {
			t.Fatalf("out of order: want msg-%d, got %s", i, payload.Message)
		}
		if payload.From != "alice" {
			t.Fatalf("want sender alice, got %s", payload.From)
		}
	}

	// Drained: no redelivery.
	if _, ok := m.Receive("bob"); ok {
		t.Fatal("inbox must be empty after draining")
	}
}

func TestReceive_EmptyInbox(t *testing.T) {
	m := newTestManager("alice")
	if _, ok := m.Receive("alice"); ok {
		t.Fatal("want empty inbox")
	}
}

func TestInboxes_Independent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager("alice", "bob", "carol")

	if err := m.Send(ctx, "bob", "for bob", "alice"); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if _, ok := m.Receive("carol"); ok {
		t.Fatal("carol's inbox must be empty")
	}
	if _, ok := m.Receive("bob"); !ok {
		t.Fatal("bob's message missing")
	}
}

func TestSendReceive_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager("alice", "bob")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Send(ctx, "bob", fmt.Sprintf("msg-%d", i), "alice")
		}(i)
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := m.Receive("bob"); !ok {
			break
		}
		received++
	}
	if received != 20 {
		t.Fatalf("want 20 messages, got %d", received)
	}
}
