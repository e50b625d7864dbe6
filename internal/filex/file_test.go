package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\x\doc.txt`, "doc.txt"},
		{"", "fallback"},
		{"..", "fallback"},
		{"/", "fallback"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.in, "fallback"), tt.in)
	}
}

func TestCreateOutput_CommitCreatesParents(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a", "b", "out.bin")

	out, err := CreateOutput(dest, false)
	require.NoError(t, err)
	_, err = out.Write([]byte("data"))
	require.NoError(t, err)

	_, err = os.Stat(dest)
	require.True(t, os.IsNotExist(err), "destination appears only after commit")

	require.NoError(t, out.Commit())
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCreateOutput_RefusesExistingUnlessOverwrite(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o600))

	_, err := CreateOutput(dest, false)
	assert.ErrorIs(t, err, ErrExists)

	out, err := CreateOutput(dest, true)
	require.NoError(t, err)
	_, _ = out.Write([]byte("new"))
	require.NoError(t, out.Commit())

	got, _ := os.ReadFile(dest)
	assert.Equal(t, "new", string(got))
}

func TestOutput_AbortKeepsOldContent(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o600))

	out, err := CreateOutput(dest, true)
	require.NoError(t, err)
	_, _ = out.Write([]byte("partial"))
	out.Abort()

	got, _ := os.ReadFile(dest)
	assert.Equal(t, "old", string(got))
	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}
