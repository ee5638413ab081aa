package scrape

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeEvaler struct {
	hrefs []string
	err   error
}

func (f *fakeEvaler) Eval(_ context.Context, _ string, out any) error {
	if f.err != nil {
		return f.err
	}
	*(out.(*[]string)) = f.hrefs
	return nil
}

func TestAnchors(t *testing.T) {
	d := &fakeEvaler{hrefs: []string{
		"https://a.example/one",
		"https://a.example/two",
		"https://a.example/one", // duplicate from the page
	}}

	targets, err := Anchors(context.Background(), d, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "https://a.example/one", targets[0].URL)
	assert.Equal(t, SourcePage, targets[0].Source)
}

func TestAnchorsEvalError(t *testing.T) {
	d := &fakeEvaler{err: errors.New("target crashed")}
	_, err := Anchors(context.Background(), d, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := `# my download list
https://a.example/file1

https://a.example/file2
  https://a.example/file3
# trailing comment
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	targets, err := FromFile(path)
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, "https://a.example/file1", targets[0].URL)
	assert.Equal(t, "https://a.example/file3", targets[2].URL)
	assert.Equal(t, SourceList, targets[0].Source)
}

func TestFromFileMissing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestMergeFirstSeenWins(t *testing.T) {
	list := []Target{
		{URL: "https://a.example/x", Source: SourceList},
		{URL: "https://a.example/y", Source: SourceList},
	}
	scraped := []Target{
		{URL: "https://a.example/y", Source: SourcePage},
		{URL: "https://a.example/z", Source: SourcePage},
	}

	merged := Merge(list, scraped)
	require.Len(t, merged, 3)
	assert.Equal(t, "https://a.example/x", merged[0].URL)
	assert.Equal(t, "https://a.example/y", merged[1].URL)
	assert.Equal(t, SourceList, merged[1].Source, "first occurrence keeps its source")
	assert.Equal(t, "https://a.example/z", merged[2].URL)
}

func TestFilter(t *testing.T) {
	targets := []Target{
		{URL: "https://a.example/download/file1"},
		{URL: "https://a.example/about"},
		{URL: "https://dl.example/file2"},
	}

	kept := Filter(targets)
	require.Len(t, kept, 2)
	assert.Equal(t, "https://a.example/download/file1", kept[0].URL)
	assert.Equal(t, "https://dl.example/file2", kept[1].URL)
}

func TestFilterKeepsAllWhenNothingMatches(t *testing.T) {
	targets := []Target{
		{URL: "https://a.example/one"},
		{URL: "https://a.example/two"},
	}
	assert.Equal(t, targets, Filter(targets))
}
