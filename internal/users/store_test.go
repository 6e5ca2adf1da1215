package users

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SeededRecords(t *testing.T) {
	store := NewStore(DefaultSeed())

	records := store.List()
	require.Len(t, records, len(DefaultSeed()))
	assert.Equal(t, "alice", records[0].Username)

	age, err := store.AgeOf("hongyan")
	require.NoError(t, err)
	assert.Equal(t, 28, age)

	age, err = store.AgeOf("zhangchang")
	require.NoError(t, err)
	assert.Equal(t, 27, age)

	age, err = store.AgeOf("洪岩")
	require.NoError(t, err)
	assert.Equal(t, 28, age)

	age, err = store.AgeOf("张畅")
	require.NoError(t, err)
	assert.Equal(t, 27, age)
}

func TestStore_AddThenListAndLookup(t *testing.T) {
	store := NewStore(nil)

	store.Add(User{Username: "dave", Age: 41})

	records := store.List()
	require.Len(t, records, 1)
	assert.Equal(t, User{Username: "dave", Age: 41}, records[0])

	age, err := store.AgeOf("dave")
	require.NoError(t, err)
	assert.Equal(t, 41, age)
}

func TestStore_UnknownUser(t *testing.T) {
	store := NewStore(DefaultSeed())

	_, err := store.AgeOf("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_FreshStoreReturnsToSeed(t *testing.T) {
	store := NewStore(DefaultSeed())
	store.Add(User{Username: "transient", Age: 1})
	require.Len(t, store.List(), len(DefaultSeed())+1)

	// A new store (a restarted process) sees only the seed set.
	fresh := NewStore(DefaultSeed())
	assert.Len(t, fresh.List(), len(DefaultSeed()))
	_, err := fresh.AgeOf("transient")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_ListReturnsCopy(t *testing.T) {
	store := NewStore(DefaultSeed())

	records := store.List()
	records[0].Username = "mutated"

	again := store.List()
	assert.Equal(t, "alice", again[0].Username)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	data := `users:
  - username: erin
    age: 33
  - username: frank
    age: 52
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	seed, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Equal(t, []User{
		{Username: "erin", Age: 33},
		{Username: "frank", Age: 52},
	}, seed)
}

func TestLoadSeedFile_Errors(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\tnot yaml"), 0o644))
	_, err = LoadSeedFile(path)
	assert.Error(t, err)
}
