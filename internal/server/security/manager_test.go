package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/json"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/kpawlak/taskgrid/internal/common"
	"github.com/kpawlak/taskgrid/internal/cryptox"
	"github.com/kpawlak/taskgrid/internal/dbx"
	"github.com/kpawlak/taskgrid/internal/logging"
	"github.com/kpawlak/taskgrid/internal/server/auth"
	"github.com/kpawlak/taskgrid/internal/server/bruteforce"
	"github.com/kpawlak/taskgrid/internal/server/config"
	"github.com/kpawlak/taskgrid/internal/server/events"
	"github.com/kpawlak/taskgrid/internal/server/models"
	activesessionsrepo "github.com/kpawlak/taskgrid/internal/server/repositories/activesessions"
	broadcastsrepo "github.com/kpawlak/taskgrid/internal/server/repositories/broadcasts"
	"github.com/kpawlak/taskgrid/internal/server/repositories/repomanager"
	usersrepo "github.com/kpawlak/taskgrid/internal/server/repositories/users"
)

// --- helpers ---

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getOut *models.User
	getErr error

	updatedKeys map[string]string
	updateErr   error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeUsersRepo) UpdatePublicKey(ctx context.Context, username, key string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updatedKeys == nil {
		f.updatedKeys = make(map[string]string)
	}
	f.updatedKeys[username] = key
	return nil
}

type fakeSessionsRepo struct {
	appended  []models.ActiveSession
	appendErr error
}

func (f *fakeSessionsRepo) Append(ctx context.Context, username, ipAddress string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, models.ActiveSession{Username: username, IPAddress: ipAddress})
	return nil
}

func (f *fakeSessionsRepo) ListLatest(ctx context.Context) ([]models.ActiveSession, error) {
	return f.appended, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	s *fakeSessionsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) ActiveSessions(db dbx.DBTX) activesessionsrepo.Repository {
	return m.s
}
func (m *fakeRepoManager) Broadcasts(db dbx.DBTX) broadcastsrepo.Repository { return nil }

var _ repomanager.RepositoryManager = (*fakeRepoManager)(nil)

func genTestKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey error: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey error: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return priv, string(pemBytes)
}

func decryptEnvelope(t *testing.T, priv *rsa.PrivateKey, ciphertext []byte) tokenResponse {
	t.Helper()
	plain, err := cryptox.DecryptForRecipient(priv, ciphertext)
	if err != nil {
		t.Fatalf("DecryptForRecipient error: %v", err)
	}
	var resp tokenResponse
	if err := json.Unmarshal(plain, &resp); err != nil {
		t.Fatalf("unmarshalling envelope: %v", err)
	}
	return resp
}

func newManager(t *testing.T, rm repomanager.RepositoryManager, limit int) *Manager {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		TokenIssuer:                 "taskgrid",
		AdminUsername:               "admin",
	}
	guard := bruteforce.NewGuard(bruteforce.NewMemoryStore(), limit, 5*time.Minute)
	return NewManager(nil, rm, cfg, guard, events.NopPublisher{}, nopLogger{})
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := cryptox.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	return h
}

// --- tests ---

func TestRegister_Success(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{createOut: &models.User{ID: "u1", Username: "alice"}}}
	s := newManager(t, rm, 5)

	if err := s.Register(context.Background(), "alice", "pass123"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
}

func TestRegister_Conflict(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{createErr: common.ErrorConflict}}
	s := newManager(t, rm, 5)

	err := s.Register(context.Background(), "alice", "pass123")
	if !errors.Is(err, common.ErrorConflict) {
		t.Fatalf("want ErrorConflict, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	priv, pubPEM := genTestKeyPair(t)

	users := &fakeUsersRepo{getOut: &models.User{
		ID:           "u1",
		Username:     "alice",
		PasswordHash: hashOf(t, "pass123"),
	}}
	sessions := &fakeSessionsRepo{}
	rm := &fakeRepoManager{u: users, s: sessions}
	s := newManager(t, rm, 5)

	ciphertext, err := s.Login(context.Background(), "alice", "pass123", pubPEM, "", "203.0.113.7")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	resp := decryptEnvelope(t, priv, ciphertext)
	if resp.TokenType != common.TokenType {
		t.Fatalf("want token_type %q, got %q", common.TokenType, resp.TokenType)
	}

	claims, err := auth.ParseToken(resp.AccessToken, []byte("k"), "taskgrid", "")
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("want subject alice, got %q", claims.Subject)
	}
	if claims.Admin {
		t.Fatal("alice must not get the admin claim")
	}

	if users.updatedKeys["alice"] == "" {
		t.Fatal("public key was not persisted")
	}
	if len(sessions.appended) != 1 || sessions.appended[0].IPAddress != "203.0.113.7" {
		t.Fatalf("login session not recorded: %+v", sessions.appended)
	}
}

func TestLogin_AdminClaim(t *testing.T) {
	priv, pubPEM := genTestKeyPair(t)

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{
			ID:           "u2",
			Username:     "admin",
			PasswordHash: hashOf(t, "rootpass"),
		}},
		s: &fakeSessionsRepo{},
	}
	s := newManager(t, rm, 5)

	ciphertext, err := s.Login(context.Background(), "admin", "rootpass", pubPEM, "", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	resp := decryptEnvelope(t, priv, ciphertext)
	claims, err := auth.ParseToken(resp.AccessToken, []byte("k"), "taskgrid", "")
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if !claims.Admin {
		t.Fatal("admin login must carry the admin claim")
	}
}

func TestLogin_UnknownUserIsGeneric(t *testing.T) {
	_, pubPEM := genTestKeyPair(t)

	rm := &fakeRepoManager{u: &fakeUsersRepo{getErr: common.ErrorNotFound}, s: &fakeSessionsRepo{}}
	s := newManager(t, rm, 5)

	_, err := s.Login(context.Background(), "ghost", "whatever", pubPEM, "", "10.0.0.1")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want generic ErrorUnauthorized, got %v", err)
	}
}

func TestLogin_WrongPasswordThenLockout(t *testing.T) {
	_, pubPEM := genTestKeyPair(t)

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{
			Username:     "alice",
			PasswordHash: hashOf(t, "correct"),
		}},
		s: &fakeSessionsRepo{},
	}
	s := newManager(t, rm, 2)

	for i := 0; i < 2; i++ {
		_, err := s.Login(context.Background(), "alice", "wrong", pubPEM, "", "10.0.0.9")
		if !errors.Is(err, common.ErrorUnauthorized) {
			t.Fatalf("attempt %d: want ErrorUnauthorized, got %v", i, err)
		}
	}

	// The address is now locked out even with the right password.
	_, err := s.Login(context.Background(), "alice", "correct", pubPEM, "", "10.0.0.9")
	if !errors.Is(err, common.ErrorTooManyAttempts) {
		t.Fatalf("want ErrorTooManyAttempts, got %v", err)
	}

	var lockout *bruteforce.LockoutError
	if !errors.As(err, &lockout) || lockout.RetryAfter <= 0 {
		t.Fatalf("want LockoutError with positive RetryAfter, got %v", err)
	}
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	priv, pubPEM := genTestKeyPair(t)
	_ = priv

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{
			Username:     "alice",
			PasswordHash: hashOf(t, "correct"),
		}},
		s: &fakeSessionsRepo{},
	}
	s := newManager(t, rm, 2)

	if _, err := s.Login(context.Background(), "alice", "wrong", pubPEM, "", "10.0.0.5"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
	if _, err := s.Login(context.Background(), "alice", "correct", pubPEM, "", "10.0.0.5"); err != nil {
		t.Fatalf("Login error: %v", err)
	}

	// Counter cleared: one more failure does not lock the address.
	if _, err := s.Login(context.Background(), "alice", "wrong", pubPEM, "", "10.0.0.5"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized after reset, got %v", err)
	}
}

func TestLogin_BadSignatureIsGeneric(t *testing.T) {
	_, pubPEM := genTestKeyPair(t)

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{
			Username:     "alice",
			PasswordHash: hashOf(t, "pass123"),
		}},
		s: &fakeSessionsRepo{},
	}
	s := newManager(t, rm, 5)

	_, err := s.Login(context.Background(), "alice", "pass123", pubPEM, "bm90LWEtc2lnbmF0dXJl", "10.0.0.1")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized for bad signature, got %v", err)
	}
}

func TestLogin_InvalidKeyRejected(t *testing.T) {
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{
			Username:     "alice",
			PasswordHash: hashOf(t, "pass123"),
		}},
		s: &fakeSessionsRepo{},
	}
	s := newManager(t, rm, 5)

	_, err := s.Login(context.Background(), "alice", "pass123", "not a key", "", "10.0.0.1")
	if !errors.Is(err, common.ErrorInvalidKey) {
		t.Fatalf("want ErrorInvalidKey, got %v", err)
	}
}

func TestValidateToken_CollapsesToUnauthorized(t *testing.T) {
	s := newManager(t, &fakeRepoManager{}, 5)

	if _, err := s.ValidateToken("garbage"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}

	expired, err := auth.GenerateToken("alice", []byte("k"), auth.TokenOptions{TTL: -time.Minute, Issuer: "taskgrid"})
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := s.ValidateToken(expired); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized for expired token, got %v", err)
	}
}

func TestEncryptResponse_PayloadLargerThanModulus(t *testing.T) {
	priv, pubPEM := genTestKeyPair(t)

	rm := &fakeRepoManager{u: &fakeUsersRepo{getOut: &models.User{
		Username:  "dave",
		PublicKey: sql.NullString{String: pubPEM, Valid: true},
	}}}
	s := newManager(t, rm, 5)

	// A sessions or history listing grows well past what a single OAEP
	// block to a 2048-bit key can carry.
	rows := make([]map[string]string, 40)
	for i := range rows {
		rows[i] = map[string]string{"username": "dave", "ip_address": "10.0.0.1"}
	}

	ciphertext, err := s.EncryptResponse(context.Background(), "dave", rows)
	if err != nil {
		t.Fatalf("EncryptResponse error: %v", err)
	}

	plain, err := cryptox.DecryptForRecipient(priv, ciphertext)
	if err != nil {
		t.Fatalf("DecryptForRecipient error: %v", err)
	}
	var got []map[string]string
	if err := json.Unmarshal(plain, &got); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("want %d rows, got %d", len(rows), len(got))
	}
}

func TestEncryptResponse_KeyMissing(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{getOut: &models.User{Username: "bob"}}}
	s := newManager(t, rm, 5)

	_, err := s.EncryptResponse(context.Background(), "bob", map[string]string{"x": "y"})
	if !errors.Is(err, common.ErrorKeyMissing) {
		t.Fatalf("want ErrorKeyMissing, got %v", err)
	}
}

func TestRegisteredKey_FallsBackToDatabase(t *testing.T) {
	_, pubPEM := genTestKeyPair(t)

	rm := &fakeRepoManager{u: &fakeUsersRepo{getOut: &models.User{
		Username:  "carol",
		PublicKey: sql.NullString{String: pubPEM, Valid: true},
	}}}
	s := newManager(t, rm, 5)

	key, err := s.RegisteredKey(context.Background(), "carol")
	if err != nil {
		t.Fatalf("RegisteredKey error: %v", err)
	}
	if key != pubPEM {
		t.Fatal("want the database key")
	}

	// Second call is served from the cache even if the repo now errors.
	rm.u.getErr = errors.New("db down")
	if _, err := s.RegisteredKey(context.Background(), "carol"); err != nil {
		t.Fatalf("cached RegisteredKey error: %v", err)
	}
}
