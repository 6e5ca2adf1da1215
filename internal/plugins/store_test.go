package plugins

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func writeArtifact(t *testing.T, dir, filename string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), data, 0o644))
}

func TestStore_ListReturnsSortedEntries(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "waf.wasm", []byte("waf-bytes"))
	writeArtifact(t, dir, "key-auth.wasm", []byte("key-auth-bytes"))
	writeArtifact(t, dir, "notes.txt", []byte("not an artifact"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.wasm"), 0o755))

	store := NewStore(dir)
	entries, err := store.List()
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Name: "key-auth", Filename: "key-auth.wasm", Size: 14}, entries[0])
	assert.Equal(t, Entry{Name: "waf", Filename: "waf.wasm", Size: 9}, entries[1])
}

func TestStore_ListIsNeverStale(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	entries, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A file added between two scans shows up in the second scan.
	writeArtifact(t, dir, "rate-limit.wasm", []byte("abc"))

	entries, err = store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rate-limit", entries[0].Name)
}

func TestStore_ListUnreadableDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing"))

	_, err := store.List()
	assert.Error(t, err)
}

func TestStore_OpenReturnsExactContent(t *testing.T) {
	dir := t.TempDir()
	content := []byte("\x00asm\x01\x00\x00\x00fake-wasm-module")
	writeArtifact(t, dir, "key-auth.wasm", content)

	store := NewStore(dir)

	for _, name := range []string{"key-auth", "key-auth.wasm"} {
		rc, size, err := store.Open(name)
		require.NoError(t, err, "Open(%q)", name)

		got, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)

		assert.Equal(t, content, got)
		assert.Equal(t, int64(len(content)), size)
	}
}

func TestStore_OpenMissingPlugin(t *testing.T) {
	store := NewStore(t.TempDir())

	_, _, err := store.Open("unknown")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"PlainName", "key-auth", "key-auth", nil},
		{"ExtensionStripped", "key-auth.wasm", "key-auth", nil},
		{"InteriorDots", "a..b", "a..b", nil},
		{"LeadingDots", "..hidden", "..hidden", nil},
		{"Empty", "", "", ErrUnsafeName},
		{"BareExtension", ".wasm", "", ErrUnsafeName},
		{"ParentReference", "..", "", ErrUnsafeName},
		{"ParentTraversal", "../etc/passwd", "", ErrUnsafeName},
		{"EmbeddedTraversal", "a/../../b", "", ErrUnsafeName},
		{"ForwardSlash", "dir/plugin", "", ErrUnsafeName},
		{"Backslash", `dir\plugin`, "", ErrUnsafeName},
		{"CurrentDir", ".", "", ErrUnsafeName},
		{"NulByte", "plugin\x00name", "", ErrUnsafeName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeName(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Property: whatever name comes in, a successful Open never resolves to a
// file outside the store directory.
func TestStore_OpenNeverEscapesDirectory(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "inside.wasm", []byte("inside"))

	// A reachable file outside the store directory, one level up.
	outside := filepath.Join(filepath.Dir(dir), "outside.wasm")
	require.NoError(t, os.WriteFile(outside, []byte("outside"), 0o644))
	t.Cleanup(func() { os.Remove(outside) })

	store := NewStore(dir)

	rapid.Check(t, func(t *rapid.T) {
		name := rapid.String().Draw(t, "name")

		rc, _, err := store.Open(name)
		if err != nil {
			assert.True(t,
				errors.Is(err, ErrUnsafeName) || errors.Is(err, ErrPluginNotFound),
				"unexpected error class for %q: %v", name, err)
			return
		}
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.NotEqual(t, "outside", string(got), "name %q escaped the store directory", name)

		cleaned, err := SanitizeName(name)
		require.NoError(t, err)
		assert.False(t, strings.ContainsAny(cleaned, `/\`))
	})
}
