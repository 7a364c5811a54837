// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// RoleSupport is the role of agents that handle conversations.
const RoleSupport = "support"

// DefaultSessionTTL is used when no TTL is configured.
const DefaultSessionTTL = 8 * time.Hour

var (
	// ErrInvalidCredential covers unknown users, wrong passwords and bad,
	// expired or unknown tokens.
	ErrInvalidCredential = errors.New("invalid agent credential")
	// ErrMFARequired is returned when the account has TOTP enabled and no
	// code was supplied.
	ErrMFARequired = errors.New("one-time code required")
)

// Account is a configured agent.
type Account struct {
	ID           string `toml:"id" json:"id"`
	Username     string `toml:"username" json:"username"`
	DisplayName  string `toml:"display_name" json:"display_name"`
	Role         string `toml:"role" json:"role"`
	PasswordHash string `toml:"password_hash" json:"-"`
	TOTPSecret   string `toml:"totp_secret,omitempty" json:"-"`
}

// Identity is the verified owner of a credential.
type Identity struct {
	AgentID     string `json:"agent_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

// Session is an issued login.
type Session struct {
	Token        string    `json:"token"`
	AgentID      string    `json:"agent_id"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *Session) expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory holds accounts and live sessions. It is safe for concurrent use.
type Directory struct {
	byUsername map[string]Account
	byID       map[string]Account
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Directory.
type Option func(*Directory)

// WithSessionTTL sets the sliding session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) { d.logger = logger }
}

// NewDirectory creates a directory. Accounts without an id use their
// username; accounts without a role get RoleSupport.
func NewDirectory(accounts []Account, opts ...Option) (*Directory, error) {
	d := &Directory{
		byUsername: make(map[string]Account),
		byID:       make(map[string]Account),
		ttl:        DefaultSessionTTL,
		now:        time.Now,
		logger:     slog.Default(),
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "agents")

	for _, a := range accounts {
		a.Username = strings.TrimSpace(a.Username)
		if a.Username == "" {
			return nil, errors.New("agent account without username")
		}
		if a.ID == "" {
			a.ID = a.Username
		}
		if a.Role == "" {
			a.Role = RoleSupport
		}
		if a.DisplayName == "" {
			a.DisplayName = a.Username
		}
		key := strings.ToLower(a.Username)
		if _, dup := d.byUsername[key]; dup {
			return nil, fmt.Errorf("duplicate agent username %q", a.Username)
		}
		if _, dup := d.byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id %q", a.ID)
		}
		d.byUsername[key] = a
		d.byID[a.ID] = a
	}
	return d, nil
}

// Login checks the password (and TOTP code when enabled) and issues a
// session.
func (d *Directory) Login(username, password, totpCode string) (Session, error) {
	a, ok := d.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		// Compare anyway so unknown users take as long as wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Session{}, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		d.logger.Info("login rejected", slog.String("agent_id", a.ID))
		return Session{}, ErrInvalidCredential
	}
	if a.TOTPSecret != "" {
		if totpCode == "" {
			return Session{}, ErrMFARequired
		}
		if !totp.Validate(totpCode, a.TOTPSecret) {
			d.logger.Info("login rejected: bad one-time code", slog.String("agent_id", a.ID))
			return Session{}, ErrInvalidCredential
		}
	}

	now := d.now()
	s := &Session{
		Token:        uuid.NewString(),
		AgentID:      a.ID,
		Role:         a.Role,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(d.ttl),
	}
	d.mu.Lock()
	d.sessions[s.Token] = s
	d.mu.Unlock()

	d.logger.Info("agent logged in", slog.String("agent_id", a.ID))
	return *s, nil
}

// Logout ends a session. It reports whether the token was live.
func (d *Directory) Logout(token string) bool {
	d.mu.Lock()
	s, ok := d.sessions[token]
	delete(d.sessions, token)
	d.mu.Unlock()
	if ok {
		d.logger.Info("agent logged out", slog.String("agent_id", s.AgentID))
	}
	return ok
}

// Touch records activity on a session and extends its expiry.
func (d *Directory) Touch(token string) error {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[token]
	if !ok || s.expired(now) {
		return ErrInvalidCredential
	}
	s.LastActivity = now
	s.ExpiresAt = now.Add(d.ttl)
	return nil
}

// VerifyAgentCredential resolves a session token to its agent. A successful
// check counts as activity and extends the session like Touch.
func (d *Directory) VerifyAgentCredential(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidCredential
	}

	now := d.now()
	d.mu.Lock()
	s, ok := d.sessions[token]
	live := ok && !s.expired(now)
	var agentID, role string
	if live {
		s.LastActivity = now
		s.ExpiresAt = now.Add(d.ttl)
		agentID, role = s.AgentID, s.Role
	}
	d.mu.Unlock()

	if !live {
		return Identity{}, ErrInvalidCredential
	}
	a := d.byID[agentID]
	return Identity{AgentID: agentID, Role: role, DisplayName: a.DisplayName}, nil
}

// OnlineAgents returns the ids of agents with role that hold a live session,
// sorted. An empty role matches every agent.
func (d *Directory) OnlineAgents(role string) []string {
	now := d.now()
	seen := make(map[string]struct{})

	d.mu.RLock()
	for _, s := range d.sessions {
		if s.expired(now) {
			continue
		}
		if role != "" && !strings.EqualFold(s.Role, role) {
			continue
		}
		seen[s.AgentID] = struct{}{}
	}
	d.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Account returns the account with id.
func (d *Directory) Account(id string) (Account, bool) {
	a, ok := d.byID[id]
	return a, ok
}

// Sessions returns the number of stored sessions, live or not yet swept.
func (d *Directory) Sessions() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (d *Directory) Sweep() int {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for token, s := range d.sessions {
		if s.expired(now) {
			delete(d.sessions, token)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (d *Directory) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.Sweep(); n > 0 {
				d.logger.Debug("expired sessions swept", slog.Int("count", n))
			}
		}
	}
}

// HashPassword returns a bcrypt hash suitable for Account.PasswordHash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// dummyHash is compared against for unknown usernames.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3/Xhbn7E6cB9z1Q7G8N5Zl2")
