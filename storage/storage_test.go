package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSafeName tests forbidden character replacement and hash suffixing
func TestSafeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean name unchanged", "report.pdf", "report.pdf"},
		{"spaces kept", "quarterly report.pdf", "quarterly report.pdf"},
		{
			"slash replaced and suffixed",
			"a/b.txt",
			"a_b.txt_" + md5hex("a/b.txt")[:12],
		},
		{
			"all forbidden chars replaced",
			`a\b:c*d?e"f<g>h|i`,
			"a_b_c_d_e_f_g_h_i_" + md5hex(`a\b:c*d?e"f<g>h|i`)[:12],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SafeName(tt.input))
		})
	}
}

// TestSafeNameLong tests truncation of names over 200 bytes
func TestSafeNameLong(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := SafeName(long)
	assert.LessOrEqual(t, len(got), 200+1+12)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("x", 200)))
	assert.True(t, strings.HasSuffix(got, "_"+md5hex(long)[:12]))
}

// TestSafeNameNoCollision tests that sanitization cannot merge distinct names
func TestSafeNameNoCollision(t *testing.T) {
	a := SafeName("a/b")
	b := SafeName(`a\b`)
	assert.NotEqual(t, a, b)
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TestLocalBackendJSON tests JSON round trip and not-found behavior
func TestLocalBackendJSON(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	_, err = backend.ReadJSON(ctx, "raw/sync-1/manifest.json")
	assert.ErrorIs(t, err, ErrStorageNotFound)

	doc := map[string]interface{}{"sync_id": "sync-1", "jobs": []interface{}{"job-1"}}
	require.NoError(t, backend.WriteJSON(ctx, "raw/sync-1/manifest.json", doc))

	got, err := backend.ReadJSON(ctx, "raw/sync-1/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, "sync-1", got["sync_id"])
}

// TestLocalBackendFiles tests file write, list, and subtree delete
func TestLocalBackendFiles(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, backend.WriteFile(ctx, "raw/s/files/a.bin", strings.NewReader("aaa")))
	require.NoError(t, backend.WriteFile(ctx, "raw/s/files/b.bin", strings.NewReader("bbb")))
	require.NoError(t, backend.WriteFile(ctx, "raw/other/c.bin", strings.NewReader("ccc")))

	paths, err := backend.ListFiles(ctx, "raw/s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"raw/s/files/a.bin", "raw/s/files/b.bin"}, paths)

	data, err := backend.ReadFile(ctx, "raw/s/files/a.bin")
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(data))

	require.NoError(t, backend.DeletePath(ctx, "raw/s"))
	paths, err = backend.ListFiles(ctx, "raw/s")
	require.NoError(t, err)
	assert.Empty(t, paths)

	// Other subtree untouched
	_, err = backend.ReadFile(ctx, "raw/other/c.bin")
	assert.NoError(t, err)
}

// TestS3BackendWithMock tests the object store backend against the mock client
func TestS3BackendWithMock(t *testing.T) {
	ctx := context.Background()
	mock := NewMockS3Client()
	backend := NewS3BackendWithClient(mock, "test-bucket", "airweave")

	require.NoError(t, backend.WriteJSON(ctx, "raw/s/manifest.json", map[string]interface{}{"v": 1}))
	assert.True(t, mock.PutObjectCalled)
	assert.Equal(t, "airweave/raw/s/manifest.json", mock.LastKey)

	got, err := backend.ReadJSON(ctx, "raw/s/manifest.json")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got["v"])

	_, err = backend.ReadFile(ctx, "raw/s/missing.bin")
	assert.ErrorIs(t, err, ErrStorageNotFound)

	require.NoError(t, backend.WriteFile(ctx, "raw/s/files/a.bin", strings.NewReader("abc")))
	paths, err := backend.ListFiles(ctx, "raw/s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"raw/s/manifest.json", "raw/s/files/a.bin"}, paths)

	require.NoError(t, backend.DeletePath(ctx, "raw/s"))
	assert.True(t, mock.DeleteObjectsCalled)
	assert.Empty(t, mock.Objects)
}

// TestTempPaths tests the per-job staging layout
func TestTempPaths(t *testing.T) {
	root := TempRoot("job-1")
	assert.Contains(t, root, "sync_job")

	path := TempFilePath("job-1", "ent:1", "report.pdf")
	assert.True(t, strings.HasPrefix(path, root))
	assert.NotContains(t, path[len(root):], ":")

	require.NoError(t, CleanupJobTemp("job-1"))
}
