// Package session persists per-browser console sessions in Redis, keyed by a
// cookie. A session carries the authentication state for the shell: the
// bearer token used against the admin backend and the logged-in user.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// User mirrors the backend's user payload returned on login.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	RealName string `json:"real_name"`
	Avatar   string `json:"avatar"`
}

// State is the authentication state of a session. Token and User are set if
// and only if Authenticated is true.
type State struct {
	Authenticated bool   `json:"authenticated"`
	Token         string `json:"token,omitempty"`
	User          *User  `json:"user,omitempty"`
}

// Manager orchestrates cookie based sessions backed by Redis.
type Manager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-request session data.
type Session struct {
	ID        string
	prevID    string
	state     State
	values    map[string]string
	manager   *Manager
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	State  State             `json:"state"`
	Values map[string]string `json:"values"`
}

// NewManager constructs a Manager.
func NewManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load loads or creates a new session for request.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return m.newSession(), nil
		}
		return nil, err
	}

	payload, err := m.client.Get(ctx, m.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := m.newSession()
			sess.ID = cookie.Value
			return sess, nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	sess := m.newSession()
	sess.ID = cookie.Value
	sess.state = stored.State
	sess.values = stored.Values
	sess.isNew = false
	sess.dirty = false
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		keys := []string{m.redisKey(sess.ID)}
		if sess.prevID != "" && sess.prevID != sess.ID {
			keys = append(keys, m.redisKey(sess.prevID))
		}
		if err := m.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if sess.isNew && sess.ID == "" {
		sess.ID = m.generateSessionID()
	}

	if sess.prevID != "" && sess.prevID != sess.ID {
		if err := m.client.Del(ctx, m.redisKey(sess.prevID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		sess.prevID = ""
	}

	if sess.dirty || sess.isNew {
		payload := sessionPayload{State: sess.state, Values: sess.values}
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if err := m.client.Set(ctx, m.redisKey(sess.ID), data, m.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	}

	if sess.ID != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteStrictMode,
			Expires:  time.Now().Add(m.ttl),
		})
	}

	return nil
}

// Destroy marks the session for deletion at commit time.
func (m *Manager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) newSession() *Session {
	return &Session{
		ID:      m.generateSessionID(),
		values:  make(map[string]string),
		manager: m,
		isNew:   true,
		dirty:   true,
	}
}

func (m *Manager) redisKey(id string) string {
	return "session:" + id
}

func (m *Manager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(m.secret) > 0 {
		for i := range b {
			b[i] ^= m.secret[i%len(m.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// Session helpers

// State returns a copy of the current authentication state.
func (s *Session) State() State {
	return s.state
}

// Authenticated reports whether the session holds a live login.
func (s *Session) Authenticated() bool {
	return s.state.Authenticated
}

// Token returns the bearer token for backend calls, empty when logged out.
func (s *Session) Token() string {
	return s.state.Token
}

// User returns the logged-in user, nil when logged out.
func (s *Session) User() *User {
	return s.state.User
}

// Login transitions the session into the authenticated state. The session ID
// is rotated so a cookie issued before authentication never names the
// authenticated session; Commit deletes the superseded store entry.
func (s *Session) Login(token string, user User) {
	if s.manager != nil && s.ID != "" {
		s.prevID = s.ID
		s.ID = s.manager.generateSessionID()
	}
	s.state = State{Authenticated: true, Token: token, User: &user}
	s.dirty = true
}

// SetToken adopts a refreshed bearer token. User and the authenticated flag
// are unchanged; a logged-out session ignores the refresh.
func (s *Session) SetToken(token string) {
	if !s.state.Authenticated || token == "" {
		return
	}
	s.state.Token = token
	s.dirty = true
}

// UpdateUser replaces the user record, keeping token and flag.
func (s *Session) UpdateUser(user User) {
	if !s.state.Authenticated {
		return
	}
	s.state.User = &user
	s.dirty = true
}

// Logout resets the authentication state to its zero value.
func (s *Session) Logout() {
	s.state = State{}
	s.dirty = true
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}
