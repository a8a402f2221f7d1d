package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0o644))
	}
}

func TestGlob(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"js/utils/dom.js",
		"js/ionic.js",
		"js/ext/angular/controller.js",
		"js/ext/angular/directive.js",
		"scss/ionic.scss",
	)

	t.Run("declared order wins over lexical order", func(t *testing.T) {
		files, err := Glob(root, "js/utils/*.js", "js/ionic.js")
		require.NoError(t, err)
		assert.Equal(t, []string{"js/utils/dom.js", "js/ionic.js"}, files)
	})

	t.Run("double star and dedupe", func(t *testing.T) {
		files, err := Glob(root, "js/ext/**/*.js", "js/**/*.js")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"js/ext/angular/controller.js",
			"js/ext/angular/directive.js",
			"js/ionic.js",
			"js/utils/dom.js",
		}, files)
	})

	t.Run("negation", func(t *testing.T) {
		files, err := Glob(root, "js/**/*.js", "!js/ext/**")
		require.NoError(t, err)
		assert.Equal(t, []string{"js/ionic.js", "js/utils/dom.js"}, files)
	})

	t.Run("no matches", func(t *testing.T) {
		files, err := Glob(root, "missing/*.js")
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := Glob(root, "js/[")
		assert.Error(t, err)
	})
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("js/ext/angular/a.js", "scss/**", "js/**/*.js"))
	assert.False(t, Match("docs/index.md", "js/**/*.js"))
}
