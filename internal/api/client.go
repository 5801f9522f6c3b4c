// Package api is the REST client for the chat server.
//
// A Client is an immutable value: the bearer credential is bound with
// WithToken, which returns a new Client, so each session threads its own
// configured client instead of mutating shared default headers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/danhigham/quickchat/internal/domain"
)

const DefaultTimeout = 15 * time.Second

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: timeout} }
}

// WithClock overrides the time used for messages without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) Token() string {
	return c.token
}

// CheckAuth verifies the bound credential and returns the profile it belongs to.
func (c *Client) CheckAuth(ctx context.Context) (domain.Profile, error) {
	var resp checkResponse
	if err := c.do(ctx, "check auth", http.MethodGet, "/api/auth/check", nil, &resp, domain.ErrAuth); err != nil {
		return domain.Profile{}, err
	}
	u := resp.User
	if u == nil {
		u = resp.UserData
	}
	if u == nil || u.ID == "" {
		return domain.Profile{}, &Error{Op: "check auth", Kind: domain.ErrAuth, Message: "response carries no user"}
	}
	return u.profile(), nil
}

// Authenticate logs in or registers and returns the issued token with the profile.
func (c *Client) Authenticate(ctx context.Context, mode domain.AuthMode, creds domain.Credentials) (string, domain.Profile, error) {
	if mode != domain.AuthLogin && mode != domain.AuthRegister {
		return "", domain.Profile{}, errors.Errorf("unknown auth mode %q", mode)
	}
	body := authRequest{Email: creds.Email, Password: creds.Password}
	if mode == domain.AuthRegister {
		body.FullName = creds.FullName
		body.Bio = creds.Bio
	}

	op := string(mode)
	var resp authResponse
	if err := c.do(ctx, op, http.MethodPost, "/api/auth/"+string(mode), body, &resp, domain.ErrAuth); err != nil {
		return "", domain.Profile{}, err
	}
	if resp.Token == "" || resp.UserData == nil {
		return "", domain.Profile{}, &Error{Op: op, Kind: domain.ErrAuth, Message: "response carries no token"}
	}
	return resp.Token, resp.UserData.profile(), nil
}

func (c *Client) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (domain.Profile, error) {
	body := profileRequest{FullName: upd.FullName, Bio: upd.Bio, ProfilePic: upd.ProfilePic}
	var resp profileResponse
	if err := c.do(ctx, "update profile", http.MethodPut, "/api/auth/update-profile", body, &resp, domain.ErrRequest); err != nil {
		return domain.Profile{}, err
	}
	if resp.User == nil {
		return domain.Profile{}, &Error{Op: "update profile", Kind: domain.ErrRequest, Message: "response carries no user"}
	}
	return resp.User.profile(), nil
}

// Users returns the peer directory and the server's unseen counts.
func (c *Client) Users(ctx context.Context) ([]domain.Peer, map[string]int, error) {
	var resp usersResponse
	if err := c.do(ctx, "list users", http.MethodGet, "/api/messages/users", nil, &resp, domain.ErrRequest); err != nil {
		return nil, nil, err
	}
	peers := make([]domain.Peer, 0, len(resp.Users))
	for _, u := range resp.Users {
		peers = append(peers, u.peer())
	}
	unseen := make(map[string]int, len(resp.UnseenMessages))
	for id, n := range resp.UnseenMessages {
		unseen[id] = n
	}
	return peers, unseen, nil
}

// Messages returns the conversation with peerID, oldest first.
func (c *Client) Messages(ctx context.Context, peerID string) ([]domain.Message, error) {
	var resp messagesResponse
	if err := c.do(ctx, "get messages", http.MethodGet, "/api/messages/"+url.PathEscape(peerID), nil, &resp, domain.ErrRequest); err != nil {
		return nil, err
	}
	now := c.now()
	msgs := make([]domain.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m.ID == "" {
			continue
		}
		msgs = append(msgs, m.Domain(now))
	}
	return msgs, nil
}

// Send posts a text or image message to peerID and returns the stored message.
func (c *Client) Send(ctx context.Context, peerID string, out domain.OutgoingMessage) (domain.Message, error) {
	if (out.Text == "") == (out.Image == "") {
		return domain.Message{}, errors.New("message needs exactly one of text or image")
	}
	var resp sendResponse
	body := sendRequest{Text: out.Text, Image: out.Image}
	if err := c.do(ctx, "send message", http.MethodPost, "/api/messages/send/"+url.PathEscape(peerID), body, &resp, domain.ErrRequest); err != nil {
		return domain.Message{}, err
	}
	if resp.NewMessage == nil || resp.NewMessage.ID == "" {
		return domain.Message{}, &Error{Op: "send message", Kind: domain.ErrRequest, Message: "response carries no message"}
	}
	return resp.NewMessage.Domain(c.now()), nil
}

func (c *Client) MarkSeen(ctx context.Context, messageID string) error {
	var resp envelope
	return c.do(ctx, "mark seen", http.MethodPut, "/api/messages/mark/"+url.PathEscape(messageID), nil, &resp, domain.ErrRequest)
}

// do performs a JSON round-trip. rejectKind classifies a well-formed
// response with success=false.
func (c *Client) do(ctx context.Context, op, method, path string, body any, out result, rejectKind error) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "%s: marshal request", op)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return errors.Wrapf(err, "%s: create request", op)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: domain.ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Kind: domain.ErrNetwork, Status: resp.StatusCode, Err: err}
	}

	decodeErr := json.Unmarshal(data, out)
	success, msg := out.ok()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Op: op, Kind: domain.ErrAuth, Status: resp.StatusCode, Message: msg}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		kind := domain.ErrNetwork
		if resp.StatusCode < 500 {
			kind = rejectKind
		}
		return &Error{Op: op, Kind: kind, Status: resp.StatusCode, Message: msg}
	case decodeErr != nil:
		return &Error{Op: op, Kind: domain.ErrNetwork, Status: resp.StatusCode, Err: errors.Wrap(decodeErr, "decode response")}
	}

	if !success {
		return &Error{Op: op, Kind: rejectKind, Status: resp.StatusCode, Message: msg}
	}
	return nil
}
