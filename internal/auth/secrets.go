package auth

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// SecretStore holds the shared login secret of each staff role as a bcrypt
// hash. The whole table is swapped at once on rotation.
type SecretStore struct {
	mu     sync.RWMutex
	hashes map[string][]byte
	cost   int
}

// NewSecretStore hashes secrets with the given bcrypt cost. Values that are
// already bcrypt hashes are kept as they are.
func NewSecretStore(secrets map[string]string, cost int) (*SecretStore, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	s := &SecretStore{cost: cost}
	if err := s.Replace(secrets); err != nil {
		return nil, err
	}
	return s, nil
}

func isBcryptHash(v string) bool {
	return strings.HasPrefix(v, "$2a$") || strings.HasPrefix(v, "$2b$") || strings.HasPrefix(v, "$2y$")
}

// Replace installs a new role to secret table.
func (s *SecretStore) Replace(secrets map[string]string) error {
	hashes := make(map[string][]byte, len(secrets))
	for role, secret := range secrets {
		if secret == "" {
			return fmt.Errorf("role %q: empty secret", role)
		}
		if isBcryptHash(secret) {
			if _, err := bcrypt.Cost([]byte(secret)); err != nil {
				return fmt.Errorf("role %q: invalid bcrypt hash: %w", role, err)
			}
			hashes[role] = []byte(secret)
			continue
		}
		h, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
		if err != nil {
			return fmt.Errorf("role %q: hashing secret: %w", role, err)
		}
		hashes[role] = h
	}

	s.mu.Lock()
	s.hashes = hashes
	s.mu.Unlock()
	return nil
}

// Verify reports whether credential is the secret of role.
func (s *SecretStore) Verify(role, credential string) bool {
	s.mu.RLock()
	h, ok := s.hashes[role]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(h, []byte(credential)) == nil
}

// Roles returns the roles that have a secret, sorted.
func (s *SecretStore) Roles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]string, 0, len(s.hashes))
	for r := range s.hashes {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}
