// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/companion/internal/platform/sec"
	"github.com/taibuivan/companion/internal/users/auth"
)

// # In-memory Directory

// memDirectory is a mutex-guarded [auth.UserDirectory] that enforces email
// uniqueness the way the database constraint does.
type memDirectory struct {
	mu       sync.Mutex
	byUserID map[string]*auth.User
	nextID   int64
	failWith error
	inserted []auth.Activity
}

func newMemDirectory() *memDirectory {
	return &memDirectory{byUserID: make(map[string]*auth.User)}
}

func (directory *memDirectory) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	if directory.failWith != nil {
		return nil, directory.failWith
	}
	for _, user := range directory.byUserID {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (directory *memDirectory) FindByUserID(_ context.Context, userID string) (*auth.User, error) {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	if directory.failWith != nil {
		return nil, directory.failWith
	}
	user, ok := directory.byUserID[userID]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (directory *memDirectory) Insert(_ context.Context, user *auth.User, registration auth.Activity) error {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	if directory.failWith != nil {
		return directory.failWith
	}
	for _, existing := range directory.byUserID {
		if existing.Email == user.Email {
			return auth.ErrDuplicateEmail
		}
	}

	directory.nextID++
	user.ID = directory.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	copied := *user
	directory.byUserID[user.UserID] = &copied
	directory.inserted = append(directory.inserted, registration)
	return nil
}

func (directory *memDirectory) UpdateStatus(_ context.Context, userID string, status auth.Status) error {
	return directory.mutate(userID, func(user *auth.User) {
		user.Status = status
		if status == auth.StatusDeleted {
			now := time.Now()
			user.DeletedAt = &now
		}
	})
}

func (directory *memDirectory) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	return directory.mutate(userID, func(user *auth.User) { user.PasswordHash = passwordHash })
}

func (directory *memDirectory) MarkVerified(_ context.Context, userID string) error {
	return directory.mutate(userID, func(user *auth.User) { user.IsVerified = true })
}

func (directory *memDirectory) mutate(userID string, apply func(*auth.User)) error {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	if directory.failWith != nil {
		return directory.failWith
	}
	user, ok := directory.byUserID[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	apply(user)
	return nil
}

// seed stores a user with a hashed password directly.
func (directory *memDirectory) seed(t *testing.T, email, password string, verified bool, status auth.Status) *auth.User {
	t.Helper()

	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	user := &auth.User{
		UserID:       "user-" + email,
		Email:        email,
		PasswordHash: hash,
		IsVerified:   verified,
		Status:       status,
	}
	require.NoError(t, directory.Insert(context.Background(), user, auth.Activity{}))
	return user
}

func (directory *memDirectory) passwordHash(userID string) string {
	directory.mu.Lock()
	defer directory.mu.Unlock()
	return directory.byUserID[userID].PasswordHash
}

// # Audit & Activity

type memAudit struct {
	mu       sync.Mutex
	logins   map[string]int
	failWith error
}

func newMemAudit() *memAudit { return &memAudit{logins: make(map[string]int)} }

func (audit *memAudit) RecordLogin(_ context.Context, userID string) error {
	audit.mu.Lock()
	defer audit.mu.Unlock()
	if audit.failWith != nil {
		return audit.failWith
	}
	audit.logins[userID]++
	return nil
}

func (audit *memAudit) ClearLogin(_ context.Context, userID string) error {
	audit.mu.Lock()
	defer audit.mu.Unlock()
	if audit.failWith != nil {
		return audit.failWith
	}
	delete(audit.logins, userID)
	return nil
}

func (audit *memAudit) CountActive(_ context.Context, userID string) (int, error) {
	audit.mu.Lock()
	defer audit.mu.Unlock()
	if audit.failWith != nil {
		return 0, audit.failWith
	}
	return audit.logins[userID], nil
}

type memActivity struct {
	mu      sync.Mutex
	entries []auth.Activity
}

func (log *memActivity) Record(_ context.Context, activity auth.Activity) error {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.entries = append(log.entries, activity)
	return nil
}

func (log *memActivity) actions(userID string) []auth.Action {
	log.mu.Lock()
	defer log.mu.Unlock()

	var actions []auth.Action
	for _, entry := range log.entries {
		if entry.UserID == userID {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

// # Notifier

type sentMessage struct {
	kind  string
	email string
	value string
}

type recordingNotifier struct {
	mu       sync.Mutex
	sent     []sentMessage
	failWith error
}

func (notifier *recordingNotifier) record(kind, email, value string) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.failWith != nil {
		return notifier.failWith
	}
	notifier.sent = append(notifier.sent, sentMessage{kind: kind, email: email, value: value})
	return nil
}

func (notifier *recordingNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	return notifier.record("verification_code", email, code)
}

func (notifier *recordingNotifier) SendWelcome(_ context.Context, email string) error {
	return notifier.record("welcome", email, "")
}

func (notifier *recordingNotifier) SendPasswordResetLink(_ context.Context, email, link string) error {
	return notifier.record("password_reset_link", email, link)
}

func (notifier *recordingNotifier) last(kind string) (sentMessage, bool) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	for i := len(notifier.sent) - 1; i >= 0; i-- {
		if notifier.sent[i].kind == kind {
			return notifier.sent[i], true
		}
	}
	return sentMessage{}, false
}

// # Fixture

var errStoreDown = errors.New("connection refused")

// fixture wires every auth component over in-memory fakes and miniredis.
type fixture struct {
	redis     *miniredis.Miniredis
	cache     *auth.RedisFlowCache
	directory *memDirectory
	audit     *memAudit
	activity  *memActivity
	notifier  *recordingNotifier
	tokens    *sec.TokenService
	options   auth.Options

	sessions      *auth.SessionManager
	registration  *auth.RegistrationFlow
	passwordReset *auth.PasswordResetFlow
	authenticator *auth.Authenticator
}

// newFixture wires every flow over miniredis. tweaks adjust the options first.
func newFixture(t *testing.T, tweaks ...func(*auth.Options)) *fixture {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := sec.NewHMACTokenService([]byte("fixture-secret-fixture-secret-32"), "companion.test")
	require.NoError(t, err)

	options := auth.DefaultOptions()
	options.ExposeVerificationCode = true
	options.DependencyTimeout = time.Second
	for _, tweak := range tweaks {
		tweak(&options)
	}

	f := &fixture{
		redis:     server,
		cache:     auth.NewRedisFlowCache(client),
		directory: newMemDirectory(),
		audit:     newMemAudit(),
		activity:  &memActivity{},
		notifier:  &recordingNotifier{},
		tokens:    tokens,
		options:   options,
	}

	f.sessions = auth.NewSessionManager(f.cache, f.audit, options, nil)
	f.registration = auth.NewRegistrationFlow(f.directory, f.cache, f.activity, f.notifier, options, nil)
	f.passwordReset = auth.NewPasswordResetFlow(f.directory, f.cache, tokens, f.sessions, f.activity, f.notifier, options, nil)
	f.authenticator = auth.NewAuthenticator(tokens, f.directory, f.sessions, f.activity, options, nil)
	return f
}

// verifiedUser registers and verifies an account through the public flows.
func (f *fixture) verifiedUser(t *testing.T, email, password string) *auth.User {
	t.Helper()
	ctx := context.Background()

	user, err := f.registration.Register(ctx, auth.RegisterInput{Email: email, Password: password, ConfirmPassword: password})
	require.NoError(t, err)

	code, err := f.registration.RequestVerificationCode(ctx, email)
	require.NoError(t, err)
	require.NoError(t, f.registration.Verify(ctx, email, code, auth.Origin{}))

	return user
}
