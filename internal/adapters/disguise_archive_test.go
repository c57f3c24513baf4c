package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/gphotoctl/internal/model"
)

func writeTempFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestHideThenExtractRoundTrips(t *testing.T) {
	dir := t.TempDir()
	payloadPath := writeTempFile(t, dir, "secret.txt", []byte("the treasure is buried here"))

	hider := &mediaHider{cfg: disguiseConfig{Separator: []byte("FILE_DATA_BEGIN")}}
	disguised, err := hider.hideFile(payloadPath, dir)
	require.NoError(t, err)
	assert.FileExists(t, disguised)

	extractor := &mediaExtractor{cfg: disguiseConfig{Separator: []byte("FILE_DATA_BEGIN"), RestoredSuffix: ".restored"}}
	restored, err := extractor.extractFile(disguised, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, "the treasure is buried here", string(data))
}

func TestExtractFailsWithoutSeparator(t *testing.T) {
	dir := t.TempDir()
	plain := writeTempFile(t, dir, "plain.png", minimalPNGContainer)

	extractor := &mediaExtractor{cfg: disguiseConfig{Separator: []byte("FILE_DATA_BEGIN")}}
	_, err := extractor.extractFile(plain, dir)
	assert.Error(t, err)
}

func TestExpandPatternsDedupsResolvedPaths(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "a.txt", []byte("a"))
	writeTempFile(t, dir, "b.txt", []byte("b"))

	files, err := expandPatterns([]string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "*.txt")})
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFileDisguiseAdapterDryRunHide(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "note.txt", []byte("hi"))

	a := NewFileDisguiseAdapter()
	job := &model.Job{
		Provider:  model.ProviderFileDisguise,
		Operation: "file-disguise.hide",
		Params:    model.JSONMap{"files": []interface{}{path}},
	}
	result, err := a.Run(context.Background(), &model.Account{}, job, true, NoopProgress())
	require.NoError(t, err)
	assert.Equal(t, true, result["dryRun"])
	assert.Equal(t, 1, result["targetCount"])
}
