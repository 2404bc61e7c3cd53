package webserver

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"cam2web/internal/xerror"
)

// UserGroup is the access-control level spec.md §4.3 compares a handler's
// MinGroup against, in ascending order of privilege.
type UserGroup int

const (
	Anyone UserGroup = iota
	User
	Power
	Admin
)

// user holds one entry of the user store: the precomputed digest HA1 and
// the group the name is admitted to.
type user struct {
	ha1   string
	group UserGroup
}

// UserStore is the name -> {HA1, group} table spec.md §4.7 describes.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]user
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]user)}
}

// AddUser registers name with a precomputed digest HA1 (see DigestHA1) and
// the group it is admitted to.
func (s *UserStore) AddUser(name, ha1 string, group UserGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[name] = user{ha1: ha1, group: group}
}

// RemoveUser drops name from the store.
func (s *UserStore) RemoveUser(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, name)
}

// Clear removes every user.
func (s *UserStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]user)
}

// Lookup returns the HA1/group for name, if present.
func (s *UserStore) Lookup(name string) (ha1 string, group UserGroup, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[name]
	return u.ha1, u.group, ok
}

// htdigestGroup maps the htdigest file's trailing group integer — 1=user,
// 2=power, 3=admin, per spec.md §4.7's ladder — onto the named UserGroup
// constants, rather than casting the integer directly (which would collide
// with the Go-side iota values once the ladder gains more than 3 levels).
func htdigestGroup(g int) (UserGroup, bool) {
	switch g {
	case 1:
		return User, true
	case 2:
		return Power, true
	case 3:
		return Admin, true
	default:
		return Anyone, false
	}
}

// LoadHtdigestFile parses a file in the "name:domain:ha1[:group]" format
// produced by the htdigest tool, admitting only rows whose domain matches,
// per spec.md §4.7. Each line is split at its first two colons, so the name
// field never contains ':'. Lines whose HA1 is not exactly 32 hex
// characters are skipped.
func LoadHtdigestFile(path, domain string, logger *zap.Logger) (*UserStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading user file %s: %w", path, err)
	}
	defer f.Close()

	store := NewUserStore()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			if logger != nil {
				logger.Debug("skipping malformed user file line", zap.Int("line", lineNo))
			}
			continue
		}
		name, lineDomain, rest := parts[0], parts[1], parts[2]
		if strings.Contains(name, ":") {
			if logger != nil {
				logger.Debug("skipping user file line with ':' in name",
					zap.Int("line", lineNo), zap.Error(xerror.InvalidPropertyValue))
			}
			continue
		}
		if lineDomain != domain {
			continue
		}

		ha1 := rest
		group := Anyone
		if name == "admin" {
			group = Admin
		} else {
			group = User
		}
		if i := strings.Index(rest, ":"); i >= 0 {
			ha1 = rest[:i]
			if g, err := strconv.Atoi(rest[i+1:]); err == nil {
				if mapped, ok := htdigestGroup(g); ok {
					group = mapped
				} else if logger != nil {
					logger.Debug("ignoring unknown group in user file line, using default",
						zap.Int("line", lineNo), zap.Int("group", g))
				}
			}
		}
		if _, err := hex.DecodeString(ha1); len(ha1) != 32 || err != nil {
			if logger != nil {
				logger.Debug("skipping user file line with malformed HA1", zap.Int("line", lineNo))
			}
			continue
		}
		store.AddUser(name, ha1, group)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("loading user file %s: %w", path, err)
	}
	return store, nil
}
