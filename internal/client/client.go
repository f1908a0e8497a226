// Package client implements the command-line client: RSA key management,
// the HTTP API wrapper that opens encrypted response envelopes, and a
// solver for the arithmetic tasks the server hands out.
package client

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kpawlak/taskgrid/internal/common"
	"github.com/kpawlak/taskgrid/internal/cryptox"
)

// Client talks to the taskgrid server. Authenticated responses arrive as
// {"encrypted": "<b64>"} sealed to the client's public key; Client opens
// them transparently with the private key it logged in with.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	privateKey   *rsa.PrivateKey
	publicKeyPEM string
	token        string
}

func New(baseURL string, privateKey *rsa.PrivateKey, publicKeyPEM string) *Client {
	return &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		privateKey:   privateKey,
		publicKeyPEM: publicKeyPEM,
	}
}

// Register creates an account. A taken username is reported as
// common.ErrorConflict.
func (c *Client) Register(ctx context.Context, username, password string) error {
	status, body, err := c.post(ctx, "/register", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}

	switch status {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return common.ErrorConflict
	default:
		return apiError(status, body)
	}
}

// Login authenticates, proves possession of the private key with an
// RSA-PSS signature over the username, opens the encrypted token envelope
// and stores the bearer token for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	digest := sha256.Sum256([]byte(username))
	sig, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, digest[:], nil)
	if err != nil {
		return fmt.Errorf("signing challenge: %w", err)
	}

	status, body, err := c.post(ctx, "/login", map[string]string{
		"username":   username,
		"password":   password,
		"public_key": c.publicKeyPEM,
		"signature":  base64.StdEncoding.EncodeToString(sig),
	})
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusTooManyRequests:
		return common.ErrorTooManyAttempts
	default:
		return apiError(status, body)
	}

	var envelope struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := c.openEnvelope(body, &envelope); err != nil {
		return err
	}
	if envelope.AccessToken == "" {
		return fmt.Errorf("login response carried no token")
	}

	c.token = envelope.AccessToken
	return nil
}

// Ping checks the authenticated channel end to end.
func (c *Client) Ping(ctx context.Context) error {
	status, body, err := c.post(ctx, "/ping", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError(status, body)
	}

	var payload struct {
		Message string `json:"message"`
	}
	return c.openEnvelope(body, &payload)
}

// Task fetches the caller's outstanding arithmetic task and returns its
// two operands. The expected sum never travels over the wire.
func (c *Client) Task(ctx context.Context) (a, b int, err error) {
	status, body, err := c.get(ctx, "/task")
	if err != nil {
		return 0, 0, err
	}
	if status != http.StatusOK {
		return 0, 0, apiError(status, body)
	}

	var payload struct {
		A int `json:"a"`
		B int `json:"b"`
	}
	if err := c.openEnvelope(body, &payload); err != nil {
		return 0, 0, err
	}
	return payload.A, payload.B, nil
}

// SubmitResult answers the outstanding task and returns the verdict.
func (c *Client) SubmitResult(ctx context.Context, result int) (string, error) {
	status, body, err := c.post(ctx, "/result", map[string]int{"result": result})
	if err != nil {
		return "", err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", common.ErrorNoActiveTask
	default:
		return "", apiError(status, body)
	}

	var payload struct {
		Result string `json:"result"`
	}
	if err := c.openEnvelope(body, &payload); err != nil {
		return "", err
	}
	return payload.Result, nil
}

// BroadcastTask fetches the newest shared task.
func (c *Client) BroadcastTask(ctx context.Context) (id, content string, err error) {
	status, body, err := c.get(ctx, "/broadcast/task")
	if err != nil {
		return "", "", err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", "", common.ErrorNotFound
	default:
		return "", "", apiError(status, body)
	}

	var payload struct {
		TaskID string `json:"task_id"`
		Task   string `json:"task"`
	}
	if err := c.openEnvelope(body, &payload); err != nil {
		return "", "", err
	}
	return payload.TaskID, payload.Task, nil
}

// SubmitBroadcastResult answers a shared task and returns the verdict.
func (c *Client) SubmitBroadcastResult(ctx context.Context, taskID string, answer float64) (string, error) {
	status, body, err := c.post(ctx, "/broadcast/result", map[string]any{
		"task_id": taskID,
		"answer":  answer,
	})
	if err != nil {
		return "", err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", common.ErrorNotFound
	case http.StatusConflict:
		return "", common.ErrorAlreadySubmitted
	default:
		return "", apiError(status, body)
	}

	var payload struct {
		Result string `json:"result"`
	}
	if err := c.openEnvelope(body, &payload); err != nil {
		return "", err
	}
	return payload.Result, nil
}

// SendMessage queues an encrypted message for another user.
func (c *Client) SendMessage(ctx context.Context, to, message string) error {
	status, body, err := c.post(ctx, "/messages", map[string]string{
		"to":      to,
		"message": message,
	})
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		return common.ErrorSelfSend
	case http.StatusNotFound:
		return common.ErrorRecipientUnavailable
	default:
		return apiError(status, body)
	}
}

// Message is one delivered inbox entry.
type Message struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// ReceiveMessage pops the oldest message from the inbox. The second return
// value is false when the inbox is empty.
func (c *Client) ReceiveMessage(ctx context.Context) (*Message, bool, error) {
	status, body, err := c.get(ctx, "/messages")
	if err != nil {
		return nil, false, err
	}
	if status != http.StatusOK {
		return nil, false, apiError(status, body)
	}

	// An empty inbox answers {"message": null} instead of an envelope.
	var probe struct {
		Encrypted string `json:"encrypted"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	if probe.Encrypted == "" {
		return nil, false, nil
	}

	var msg Message
	if err := c.openEnvelope(body, &msg); err != nil {
		return nil, false, err
	}
	return &msg, true, nil
}

// Session is one row of the active session listing.
type Session struct {
	Username  string    `json:"username"`
	IPAddress string    `json:"ip_address"`
	Timestamp time.Time `json:"timestamp"`
}

// Sessions lists the latest login per user.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	status, body, err := c.get(ctx, "/sessions")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError(status, body)
	}

	var payload struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.openEnvelope(body, &payload); err != nil {
		return nil, err
	}
	return payload.Sessions, nil
}

// --- transport plumbing ---

func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(b)
	}
	return c.do(ctx, http.MethodPost, path, reqBody)
}

func (c *Client) get(ctx context.Context, path string) (int, []byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// openEnvelope decodes {"encrypted": "<b64>"}, decrypts the ciphertext with
// the client's private key and unmarshals the plaintext into out.
func (c *Client) openEnvelope(body []byte, out any) error {
	var envelope struct {
		Encrypted []byte `json:"encrypted"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if len(envelope.Encrypted) == 0 {
		return fmt.Errorf("response carried no encrypted payload")
	}

	plain, err := cryptox.DecryptForRecipient(c.privateKey, envelope.Encrypted)
	if err != nil {
		return fmt.Errorf("opening envelope: %w", err)
	}

	return json.Unmarshal(plain, out)
}

func apiError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("server answered %d: %s", status, payload.Error)
	}
	return fmt.Errorf("server answered %d", status)
}
