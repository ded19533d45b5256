package util

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumReader(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"simple", "define host {\n    host_name\tweb1\n}\n"},
		{"large", strings.Repeat("current_state=0\n", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewChecksumReader(strings.NewReader(tt.data))
			n, err := io.Copy(io.Discard, r)
			require.NoError(t, err)

			assert.Equal(t, int64(len(tt.data)), n)
			assert.Equal(t, int64(len(tt.data)), r.Size())
			assert.Equal(t, ComputeChecksum([]byte(tt.data)), r.Sum32())
		})
	}
}

func TestStatFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "objects.cache")
	require.NoError(t, os.WriteFile(path, []byte("define host {\n}\n"), 0o644))

	fp, err := StatFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, fp.Path)
	assert.Equal(t, int64(16), fp.Size)

	again, err := StatFile(path)
	require.NoError(t, err)
	assert.True(t, fp.SameVersion(again))

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	changed, err := StatFile(path)
	require.NoError(t, err)
	assert.False(t, fp.SameVersion(changed))

	_, err = StatFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
	_, err = StatFile(dir)
	assert.Error(t, err)
}

func BenchmarkComputeChecksum(b *testing.B) {
	data := make([]byte, 1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComputeChecksum(data)
	}
}
