// Package messages implements the encrypted user-to-user inbox. Messages
// are encrypted to the recipient's registered public key at send time, so
// the server only ever stores ciphertext, and are delivered in FIFO order
// exactly once.
package messages

import (
	"context"
	"errors"
	"sync"

	"github.com/kpawlak/taskgrid/internal/common"
	"github.com/kpawlak/taskgrid/internal/logging"
)

// envelopePayload is the plaintext sealed for the recipient.
type envelopePayload struct {
	Message string `json:"message"`
	From    string `json:"from"`
}

// Encryptor seals a JSON payload for a user's registered key. Implemented
// by security.Manager.
type Encryptor interface {
	EncryptResponse(ctx context.Context, username string, payload any) ([]byte, error)
	RegisteredKey(ctx context.Context, username string) (string, error)
}

// Manager holds one in-memory inbox per user. Inboxes do not survive a
// restart; the flow is a live drop-box, not durable mail.
type Manager struct {
	encryptor Encryptor
	logger    logging.Logger

	mu      sync.Mutex
	inboxes map[string][][]byte
}

func NewManager(encryptor Encryptor, logger logging.Logger) *Manager {
	return &Manager{
		encryptor: encryptor,
		logger:    logger,
		inboxes:   make(map[string][][]byte),
	}
}

// Send seals content for toUser and appends it to the tail of their inbox.
// Sending to yourself is rejected with common.ErrorSelfSend. A recipient
// that does not exist or has never registered a key yields
// common.ErrorRecipientUnavailable; the two cases are indistinguishable to
// the sender on purpose.
func (m *Manager) Send(ctx context.Context, toUser, content, fromUser string) error {
	if toUser == fromUser {
		return common.ErrorSelfSend
	}

	if _, err := m.encryptor.RegisteredKey(ctx, toUser); err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorKeyMissing) {
			return common.ErrorRecipientUnavailable
		}
		return common.ErrorInternal
	}

	sealed, err := m.encryptor.EncryptResponse(ctx, toUser, envelopePayload{
		Message: content,
		From:    fromUser,
	})
	if err != nil {
		return common.ErrorInternal
	}

	m.mu.Lock()
	m.inboxes[toUser] = append(m.inboxes[toUser], sealed)
	m.mu.Unlock()

	return nil
}

// Receive pops the oldest sealed message from the user's inbox. The second
// return value is false when the inbox is empty. There is no peek and no
// redelivery: a popped message is gone.
func (m *Manager) Receive(user string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.inboxes[user]
	if len(queue) == 0 {
		return nil, false
	}

	head := queue[0]
	if len(queue) == 1 {
		delete(m.inboxes, user)
	} else {
		m.inboxes[user] = queue[1:]
	}

	return head, true
}
