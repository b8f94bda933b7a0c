package ftpserver

import (
	"strings"
	"sync"
)

// Permission is the bitmask granted to a user. ADMIN bypasses the home
// directory containment check entirely.
type Permission uint8

// Permission bits, matching original_source/auth.h's auth_permission_t.
const (
	PermNone   Permission = 0x00
	PermRead   Permission = 0x01
	PermWrite  Permission = 0x02
	PermDelete Permission = 0x04
	PermRename Permission = 0x08
	PermMkdir  Permission = 0x10
	PermRmdir  Permission = 0x20
	PermAdmin  Permission = 0x40
	PermAll    Permission = 0xFF
)

// Has reports whether the bitmask contains every bit in want.
func (p Permission) Has(want Permission) bool {
	return p&want == want
}

// maxUsers is the fixed table capacity.
const maxUsers = 1024

// anonymousUsername is the well-known login name that triggers anonymous
// access when enabled.
const anonymousUsername = "anonymous"

// User is one entry of the auth store's fixed-capacity table.
type User struct {
	Username     string
	PasswordHash string // opaque one-way hash, hex-encoded
	Home         string // virtual path, starts with "/"
	Permissions  Permission
}

// AnonymousDefaults is used when anonymous login is enabled but no stored
// user is literally named "anonymous".
type AnonymousDefaults struct {
	Home        string
	Permissions Permission
}

// AuthStore is the process-wide user table: one mutex guards every read
// and write.
type AuthStore struct {
	mu                sync.RWMutex
	users             map[string]*User
	anonymousEnabled  bool
	anonymousDefaults AnonymousDefaults
}

// NewAuthStore creates an empty store with anonymous login enabled and the
// classic read-only /pub default, matching original_source/auth.h's stated
// defaults.
func NewAuthStore() *AuthStore {
	return &AuthStore{
		users:            make(map[string]*User),
		anonymousEnabled: true,
		anonymousDefaults: AnonymousDefaults{
			Home:        "/pub",
			Permissions: PermRead,
		},
	}
}

// SetAnonymousEnabled toggles anonymous login.
func (s *AuthStore) SetAnonymousEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.anonymousEnabled = enabled
}

// AnonymousEnabled reports whether anonymous login is currently enabled.
func (s *AuthStore) AnonymousEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.anonymousEnabled
}

// SetAnonymousDefaults sets the fallback home/permissions used when
// anonymous login is enabled but no stored "anonymous" user exists.
func (s *AuthStore) SetAnonymousDefaults(defaults AnonymousDefaults) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.anonymousDefaults = defaults
}

// AddUser inserts or replaces a user. Returns false if the table is full
// and username is not already present.
func (s *AuthStore) AddUser(u User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Username]; !exists && len(s.users) >= maxUsers {
		return false
	}

	cp := u
	s.users[u.Username] = &cp

	return true
}

// userExists reports whether username is a stored (non-virtual) user.
func (s *AuthStore) userExists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[username]

	return ok
}

// getUser returns the effective user configuration for username, including
// the virtual anonymous user when applicable. The anonymous precedence
// rule (prefer a stored "anonymous" user over the hardcoded defaults) is
// implemented here, per original_source/auth.h.
func (s *AuthStore) getUser(username string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[username]; ok {
		return u, true
	}

	if username == anonymousUsername && s.anonymousEnabled {
		return &User{
			Username:    anonymousUsername,
			Home:        s.anonymousDefaults.Home,
			Permissions: s.anonymousDefaults.Permissions,
		}, true
	}

	return nil, false
}

// knownForUSER reports whether the USER command should proceed to
// WAIT_PASSWORD for this username: either a stored user, or
// "anonymous" while anonymous login is enabled.
func (s *AuthStore) knownForUSER(username string) bool {
	if username == anonymousUsername {
		return s.userExists(anonymousUsername) || s.AnonymousEnabled()
	}

	return s.userExists(username)
}

// authenticate verifies credentials: the virtual anonymous user accepts
// any password; a stored user (even one named "anonymous") must match the
// stored hash.
func (s *AuthStore) authenticate(username, password string) (*User, bool) {
	u, ok := s.getUser(username)
	if !ok {
		return nil, false
	}

	if username == anonymousUsername && !s.userExists(anonymousUsername) {
		return u, true
	}

	if u.PasswordHash != hashPassword(password) {
		return nil, false
	}

	return u, true
}

// checkPathAccess enforces authentication, the permission bit, and
// home-directory containment (with the "/home/alice2" prefix trap guarded
// against).
func checkPathAccess(authenticated bool, user *User, virtualPath string, required Permission) bool {
	if !authenticated || user == nil {
		return false
	}

	if user.Permissions.Has(PermAdmin) {
		return true
	}

	if !user.Permissions.Has(required) {
		return false
	}

	if user.Home == "" {
		return true
	}

	if virtualPath == user.Home {
		return true
	}

	return strings.HasPrefix(virtualPath, user.Home+"/")
}
