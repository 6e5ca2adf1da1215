package users

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUserNotFound indicates a lookup for a username with no record.
var ErrUserNotFound = errors.New("user not found")

// User is one mock user record.
type User struct {
	Username string `json:"username" yaml:"username"`
	Age      int    `json:"age" yaml:"age"`
}

// Store is the in-memory user collection. It is seeded at construction and
// never persisted; restarting the process returns to the seed set.
type Store struct {
	mu    sync.RWMutex
	users []User
}

// DefaultSeed returns the built-in mock records.
func DefaultSeed() []User {
	return []User{
		{Username: "alice", Age: 30},
		{Username: "bob", Age: 25},
		{Username: "charlie", Age: 35},
		{Username: "hongyan", Age: 28},
		{Username: "zhangchang", Age: 27},
		{Username: "洪岩", Age: 28},
		{Username: "张畅", Age: 27},
	}
}

// NewStore creates a store holding a copy of the given seed records.
func NewStore(seed []User) *Store {
	s := &Store{users: make([]User, len(seed))}
	copy(s.users, seed)
	return s
}

// LoadSeedFile reads seed records from a YAML file.
func LoadSeedFile(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed struct {
		Users []User `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return seed.Users, nil
}

// List returns a snapshot of all records.
func (s *Store) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, len(s.users))
	copy(out, s.users)
	return out
}

// Add appends a record to the collection.
func (s *Store) Add(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

// AgeOf looks up a user's age by username.
func (s *Store) AgeOf(username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u.Age, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUserNotFound, username)
}
