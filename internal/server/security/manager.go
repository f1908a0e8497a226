// Package security contains the account and session-security logic of the
// server: registration, credential verification with per-address lockout,
// token issuance and validation, and the public-key registry used to
// encrypt every authenticated response to its recipient.
package security

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kpawlak/taskgrid/internal/common"
	"github.com/kpawlak/taskgrid/internal/cryptox"
	"github.com/kpawlak/taskgrid/internal/logging"
	"github.com/kpawlak/taskgrid/internal/server/auth"
	"github.com/kpawlak/taskgrid/internal/server/bruteforce"
	"github.com/kpawlak/taskgrid/internal/server/config"
	"github.com/kpawlak/taskgrid/internal/server/events"
	"github.com/kpawlak/taskgrid/internal/server/models"
	"github.com/kpawlak/taskgrid/internal/server/repositories/repomanager"
)

// tokenResponse is the plaintext of the login envelope before encryption.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Manager implements registration, login and token validation.
//
// Login deliberately collapses every credential failure (unknown user,
// wrong password, bad signature) into common.ErrorUnauthorized so that
// responses never reveal whether a username exists.
type Manager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	guard       *bruteforce.Guard
	publisher   events.Publisher
	logger      logging.Logger

	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	tokenIssuer                 string
	tokenAudience               string
	adminUsername               string

	// keys caches the normalized public key of every user seen this
	// process lifetime, keyed by username. The database copy survives
	// restarts; the cache only skips a query on the hot path.
	mu   sync.RWMutex
	keys map[string]string
}

// NewManager constructs a Manager using repositories and server config.
func NewManager(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	guard *bruteforce.Guard, publisher events.Publisher, logger logging.Logger) *Manager {
	return &Manager{
		db:                          db,
		repomanager:                 m,
		guard:                       guard,
		publisher:                   publisher,
		logger:                      logger,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		tokenIssuer:                 cfg.TokenIssuer,
		tokenAudience:               cfg.TokenAudience,
		adminUsername:               cfg.AdminUsername,
		keys:                        make(map[string]string),
	}
}

// Register creates a new account with the given username and password.
// A taken username yields common.ErrorConflict.
func (s *Manager) Register(ctx context.Context, username, password string) error {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return common.ErrorInternal
	}

	repo := s.repomanager.Users(s.db)
	user := &models.User{Username: username, PasswordHash: hash}
	if _, err := repo.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return common.ErrorConflict
		}
		return fmt.Errorf("error creating user: %w", err)
	}

	if err := s.publisher.PublishRegistration(ctx, events.RegistrationEvent{
		Username:  username,
		Timestamp: time.Now(),
	}); err != nil {
		s.logger.Warn(ctx, "failed to publish registration event", "error", err)
	}

	return nil
}

// Login verifies the credentials and, on success, registers the presented
// public key, appends a login record, mints an access token and returns it
// encrypted to that key.
//
// addr is the client's source address and keys the brute-force counter:
// after the configured number of failures inside the window the address is
// locked out and Login returns a bruteforce.LockoutError before any
// credential check happens. A successful login clears the counter.
//
// signature, when non-empty, must be a base64 RSA-PSS signature of the
// username made with the private half of publicKey. It proves possession
// of the key the responses will be encrypted to.
func (s *Manager) Login(ctx context.Context, username, password, publicKey, signature, addr string) ([]byte, error) {
	if err := s.guard.Check(ctx, addr); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.failAttempt(ctx, addr)
		}
		return nil, common.ErrorInternal
	}

	if !cryptox.VerifyPassword(password, user.PasswordHash) {
		return nil, s.failAttempt(ctx, addr)
	}

	normalized := cryptox.NormalizePublicKey(publicKey)
	if _, err := cryptox.ParseRSAPublicKey(normalized); err != nil {
		return nil, common.ErrorInvalidKey
	}

	if signature != "" && !cryptox.VerifySignature(normalized, []byte(username), signature) {
		return nil, s.failAttempt(ctx, addr)
	}

	if err := s.guard.Reset(ctx, addr); err != nil {
		s.logger.Warn(ctx, "failed to reset login attempts", "error", err)
	}

	s.storeKey(ctx, username, normalized)

	if err := s.repomanager.ActiveSessions(s.db).Append(ctx, username, addr); err != nil {
		s.logger.Warn(ctx, "failed to record login session", "username", username, "error", err)
	}

	token, err := auth.GenerateToken(username, s.jwtSecret, auth.TokenOptions{
		TTL:      s.accessTokenValidityDuration,
		Issuer:   s.tokenIssuer,
		Audience: s.tokenAudience,
		Admin:    username == s.adminUsername,
	})
	if err != nil {
		return nil, common.ErrorInternal
	}

	if err := s.publisher.PublishLogin(ctx, events.LoginEvent{
		Username:  username,
		Address:   addr,
		Timestamp: time.Now(),
	}); err != nil {
		s.logger.Warn(ctx, "failed to publish login event", "error", err)
	}

	return s.EncryptResponse(ctx, username, tokenResponse{
		AccessToken: token,
		TokenType:   common.TokenType,
	})
}

// ValidateToken parses and verifies a bearer token and returns its claims.
// Every failure mode collapses to common.ErrorUnauthorized.
func (s *Manager) ValidateToken(tokenString string) (*auth.Claims, error) {
	claims, err := auth.ParseToken(tokenString, s.jwtSecret, s.tokenIssuer, s.tokenAudience)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	return claims, nil
}

// EncryptResponse marshals payload to JSON and encrypts it to the public
// key registered for username. A user that has never logged in this
// deployment has no key and gets common.ErrorKeyMissing.
func (s *Manager) EncryptResponse(ctx context.Context, username string, payload any) ([]byte, error) {
	key, err := s.RegisteredKey(ctx, username)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return cryptox.EncryptForRecipient(key, plaintext)
}

// RegisteredKey returns the normalized public key registered for username,
// consulting the in-process cache first and the database second. It returns
// common.ErrorKeyMissing when the user exists but never presented a key,
// and common.ErrorNotFound for an unknown user.
func (s *Manager) RegisteredKey(ctx context.Context, username string) (string, error) {
	s.mu.RLock()
	key, ok := s.keys[username]
	s.mu.RUnlock()
	if ok {
		return key, nil
	}

	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", common.ErrorInternal
	}
	if !user.PublicKey.Valid || user.PublicKey.String == "" {
		return "", common.ErrorKeyMissing
	}

	s.mu.Lock()
	s.keys[username] = user.PublicKey.String
	s.mu.Unlock()

	return user.PublicKey.String, nil
}

// failAttempt records one failed login for addr and returns the generic
// unauthorized error. A store failure is logged but never changes the
// outcome the client sees.
func (s *Manager) failAttempt(ctx context.Context, addr string) error {
	if err := s.guard.RecordFailure(ctx, addr); err != nil {
		s.logger.Warn(ctx, "failed to record login attempt", "error", err)
	}
	return common.ErrorUnauthorized
}

// storeKey updates the cache and persists the key. Persistence failure is
// tolerated: the cached copy serves this process and the next login
// persists again.
func (s *Manager) storeKey(ctx context.Context, username, key string) {
	s.mu.Lock()
	s.keys[username] = key
	s.mu.Unlock()

	if err := s.repomanager.Users(s.db).UpdatePublicKey(ctx, username, key); err != nil {
		s.logger.Warn(ctx, "failed to persist public key", "username", username, "error", err)
	}
}
