package match

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
}

func TestExists(t *testing.T) {
	tests := []struct {
		name      string
		files     []string
		candidate string
		want      bool
		wantFile  string
	}{
		{
			name:      "exact match",
			files:     []string{"game.rar"},
			candidate: "game.rar",
			want:      true,
			wantFile:  "game.rar",
		},
		{
			name:      "duplicate suffix match",
			files:     []string{"game (1).rar"},
			candidate: "game.rar",
			want:      true,
			wantFile:  "game (1).rar",
		},
		{
			name:      "higher duplicate suffix",
			files:     []string{"game (12).rar"},
			candidate: "game.rar",
			want:      true,
			wantFile:  "game (12).rar",
		},
		{
			name:      "no match",
			files:     []string{"other.rar"},
			candidate: "game.rar",
			want:      false,
		},
		{
			name:      "temp file is not obtained",
			files:     []string{"game.rar.crdownload"},
			candidate: "game.rar",
			want:      false,
		},
		{
			name:      "zero is not a duplicate suffix",
			files:     []string{"game (0).rar"},
			candidate: "game.rar",
			want:      false,
		},
		{
			name:      "prefix is not enough",
			files:     []string{"game-deluxe.rar"},
			candidate: "game.rar",
			want:      false,
		},
		{
			name:      "name with regex metacharacters",
			files:     []string{"setup[1.2] (3).exe"},
			candidate: "setup[1.2].exe",
			want:      true,
			wantFile:  "setup[1.2] (3).exe",
		},
		{
			name:      "empty candidate",
			files:     []string{"game.rar"},
			candidate: "",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				touch(t, dir, f)
			}

			ok, path := Exists(dir, tt.candidate)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, filepath.Join(dir, tt.wantFile), path)
			}
		})
	}
}

func TestExistsMissingDir(t *testing.T) {
	ok, _ := Exists(filepath.Join(t.TempDir(), "nope"), "game.rar")
	assert.False(t, ok)
}

func TestSameLogicalFile(t *testing.T) {
	assert.True(t, SameLogicalFile("game.rar", "game.rar"))
	assert.True(t, SameLogicalFile("game.rar", "game (1).rar"))
	assert.True(t, SameLogicalFile("game.rar", "game (42).rar"))
	assert.False(t, SameLogicalFile("game.rar", "game (0).rar"))
	assert.False(t, SameLogicalFile("game.rar", "game.zip"))
	assert.False(t, SameLogicalFile("game.rar", "other (1).rar"))
	assert.False(t, SameLogicalFile("", "game.rar"))
}

func TestIsTemp(t *testing.T) {
	exts := DefaultTempExts
	assert.True(t, IsTemp("file.rar.crdownload", exts))
	assert.True(t, IsTemp("file.rar.part", exts))
	assert.True(t, IsTemp("file.tmp", exts))
	assert.False(t, IsTemp("file.rar", exts))
	assert.False(t, IsTemp("crdownload.rar", exts))
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"path segment", "https://example.com/files/game.rar", "game.rar"},
		{"path segment with query", "https://example.com/files/game.rar?token=abc", "game.rar"},
		{"percent encoded path", "https://example.com/files/my%20game.rar", "my game.rar"},
		{"query file param", "https://example.com/get?file=game.rar", "game.rar"},
		{"query filename param", "https://example.com/get?filename=game.zip", "game.zip"},
		{"query download param", "https://example.com/get?download=data.7z", "data.7z"},
		{"fragment", "https://example.com/page#files/game.rar", "game.rar"},
		{"no filename anywhere", "https://example.com/downloads/", ""},
		{"extensionless path", "https://example.com/downloads/latest", ""},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilenameFromURL(tt.url))
		})
	}
}

func TestHeadFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/named":
			w.Header().Set("Content-Disposition", `attachment; filename="game.rar"`)
		case "/bare":
			// no header at all
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()

	name, err := HeadFilename(ctx, srv.Client(), srv.URL+"/named")
	require.NoError(t, err)
	assert.Equal(t, "game.rar", name)

	name, err = HeadFilename(ctx, srv.Client(), srv.URL+"/bare")
	require.NoError(t, err)
	assert.Empty(t, name)

	_, err = HeadFilename(ctx, srv.Client(), "http://127.0.0.1:0/unreachable")
	assert.Error(t, err)
}
