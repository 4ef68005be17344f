package browser

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBrowser_ConfiguredPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec bits")
	}
	path := filepath.Join(t.TempDir(), "brave")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	assert.Equal(t, path, FindBrowser(path))
}

func TestIsExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec bits")
	}
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, nil, 0o644))

	assert.False(t, isExecutable(plain))
	assert.False(t, isExecutable(dir))
	assert.False(t, isExecutable(filepath.Join(dir, "missing")))
}
