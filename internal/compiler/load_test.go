package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCUE(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadFilesUnifies(t *testing.T) {
	dir := t.TempDir()
	a := writeCUE(t, dir, "a.cue", `logic: a: actions: {ping: []}`)
	b := writeCUE(t, dir, "b.cue", `logic: b: connect: [{logic: "a", actions: ["ping"]}]`)

	root, err := LoadFiles(a, b)
	require.NoError(t, err)
	specs, err := Specs(root)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "a", specs[0].Name)
	assert.Equal(t, "b", specs[1].Name)
}

func TestLoadFilesConflict(t *testing.T) {
	dir := t.TempDir()
	a := writeCUE(t, dir, "a.cue", `logic: a: lazy: true`)
	b := writeCUE(t, dir, "b.cue", `logic: a: lazy: false`)

	_, err := LoadFiles(a, b)
	assert.Error(t, err)
}

func TestLoadFilesMissing(t *testing.T) {
	_, err := LoadFiles(filepath.Join(t.TempDir(), "nope.cue"))
	assert.Error(t, err)
}

func TestSpecsReportsValidation(t *testing.T) {
	dir := t.TempDir()
	a := writeCUE(t, dir, "a.cue", `logic: a: connect: [{logic: "ghost"}]`)
	root, err := LoadFiles(a)
	require.NoError(t, err)

	_, err = Specs(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrConnectUnknownLogic)
}
