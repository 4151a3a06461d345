package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_ErrorLogReceivesOnlyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")

	log, err := New("quiet", path)
	require.NoError(t, err)

	log.Info("not in the error log", "k", 1)
	log.With("component", "test").Error("analysis failed", "error", "boom")
	log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], `"msg":"analysis failed"`)
	require.Contains(t, lines[0], `"component":"test"`)
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Error("dropped")
	log.Sync()
}
