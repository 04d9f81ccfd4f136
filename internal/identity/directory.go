// Package identity authenticates connections and answers access checks.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/crypto/bcrypt"

	"sheetsync/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")
	ErrUserExists         = errors.New("user already exists")
	ErrReservedName       = errors.New("reserved username")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

const (
	DefaultSessionTimeout = time.Hour
	minPasswordLength     = 6

	// usersKey is the store id the directory persists under.
	usersKey = "_users"
)

// Identity is an authenticated user.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Authenticator resolves a session token into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

type user struct {
	Username     string `json:"username"`
	DisplayName  string `json:"displayName,omitempty"`
	PasswordHash string `json:"passwordHash"`
}

type session struct {
	username  string
	expiresAt time.Time
}

// Directory is a bcrypt user list with in-memory sessions.
type Directory struct {
	mu       sync.RWMutex
	users    map[string]*user
	sessions map[string]session
	version  int

	cost    int
	timeout time.Duration
	now     func() time.Time
	store   store.Store
}

type Option func(*Directory)

// WithCost sets the bcrypt cost.
func WithCost(cost int) Option {
	return func(d *Directory) { d.cost = cost }
}

// WithSessionTimeout sets how long a login token stays valid.
func WithSessionTimeout(timeout time.Duration) Option {
	return func(d *Directory) { d.timeout = timeout }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// WithStore persists users to s after every change.
func WithStore(s store.Store) Option {
	return func(d *Directory) { d.store = s }
}

func NewDirectory(opts ...Option) *Directory {
	d := &Directory{
		users:    make(map[string]*user),
		sessions: make(map[string]session),
		cost:     bcrypt.DefaultCost,
		timeout:  DefaultSessionTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load reads the persisted user list. A missing list is not an error.
func (d *Directory) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	blob, err := d.store.Get(ctx, usersKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	users := make(map[string]*user)
	if err := sonic.Unmarshal(blob.Data, &users); err != nil {
		return fmt.Errorf("decode users: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = users
	d.version = blob.Version
	return nil
}

func (d *Directory) saveLocked(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	data, err := sonic.Marshal(d.users)
	if err != nil {
		return err
	}
	if err := d.store.Put(ctx, usersKey, data, d.version); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	d.version++
	return nil
}

// Register adds a user. "system" and "admin" are reserved.
func (d *Directory) Register(ctx context.Context, username, displayName, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidCredentials
	}
	if strings.EqualFold(username, "system") || strings.EqualFold(username, "admin") {
		return ErrReservedName
	}
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[username]; ok {
		return fmt.Errorf("%s: %w", username, ErrUserExists)
	}
	if displayName == "" {
		displayName = username
	}
	d.users[username] = &user{Username: username, DisplayName: displayName, PasswordHash: string(hash)}
	return d.saveLocked(ctx)
}

// Login checks the password and opens a session.
func (d *Directory) Login(username, password string) (string, error) {
	d.mu.RLock()
	u, ok := d.users[username]
	d.mu.RUnlock()
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanupExpiredLocked()
	d.sessions[token] = session{username: username, expiresAt: d.now().Add(d.timeout)}
	return token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Authenticate resolves a token issued by Login.
func (d *Directory) Authenticate(_ context.Context, token string) (Identity, error) {
	d.mu.RLock()
	s, ok := d.sessions[token]
	var u *user
	if ok {
		u = d.users[s.username]
	}
	d.mu.RUnlock()

	if !ok || u == nil {
		return Identity{}, ErrInvalidToken
	}
	if d.now().After(s.expiresAt) {
		d.Logout(token)
		return Identity{}, ErrSessionExpired
	}
	return Identity{UserID: u.Username, DisplayName: u.DisplayName}, nil
}

// Logout drops a session.
func (d *Directory) Logout(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, token)
}

// ChangePassword replaces the password after verifying the old one.
func (d *Directory) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[username]
	if !ok {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), d.cost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return d.saveLocked(ctx)
}

// Exists reports whether username is registered.
func (d *Directory) Exists(username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[username]
	return ok
}

func (d *Directory) cleanupExpiredLocked() {
	now := d.now()
	for token, s := range d.sessions {
		if now.After(s.expiresAt) {
			delete(d.sessions, token)
		}
	}
}
