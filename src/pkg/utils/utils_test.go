package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHTTP(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com", true},
		{"http://localhost:9000/bucket", true},
		{"ftp://cdn.example.com", false},
		{"https://", false},
		{"/blobs/cat", false},
		{"://broken", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsHTTP(tt.url), tt.url)
	}
}

func TestHash(t *testing.T) {
	assert.Equal(t, Hash("cat"), Hash("cat"))
	assert.NotEqual(t, Hash("cat"), Hash("dog"))
	assert.Len(t, Hash("cat"), 64)
}

func TestUnmarshal(t *testing.T) {
	type settings struct {
		Name  string `yaml:"name"`
		Count int    `yaml:"count"`
	}
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("count: 3\n"), 0o644))

	value := settings{Name: "default", Count: 1}
	require.NoError(t, Unmarshal(&value, path))
	assert.Equal(t, settings{Name: "default", Count: 3}, value)

	assert.Error(t, Unmarshal(&value, filepath.Join(t.TempDir(), "missing.yaml")))
}
