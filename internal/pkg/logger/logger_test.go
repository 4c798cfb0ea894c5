package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger(LogOption{Format: "json", LogDir: dir, Level: "debug", FileName: "test.log"}))

	Debugf("[Test] debug %d", 1)
	Infof("[Test] info %s", "ok")
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[Test] debug 1")
	assert.Contains(t, string(data), "[Test] info ok")
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	err := InitLogger(LogOption{Level: "loud"})
	assert.Error(t, err)
}
