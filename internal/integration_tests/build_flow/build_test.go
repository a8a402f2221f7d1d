package integration_tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/vk/buildgrid/internal/app"
)

const buildFile = `
package {
  name     = "ionic"
  version  = "1.0.0"
  codename = "test"
}

banner        = "/*! ${pkg.name} v${pkg.version} */\n"
bundle_banner = "/*! bundle ${pkg.version} */\n"

command "sass" {
  program = "cat"
}
`

// newProject writes a source tree with a build file and returns its path.
func newProject(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"build.hcl":                            buildFile,
		"js/_license.js":                       "/* license */\n",
		"js/utils/dom.js":                      "var dom = {};\nconsole.log('dom');\n",
		"js/ext/angular/src/service.js":        "angular.module('ionic');\n",
		"config/lib/js/angular/angular.js":     "var angular = {};\n",
		"config/lib/js/angular/angular.min.js": "var angular={};\n",
		"scss/ionic.scss":                      ".bar { color: red; }\n",
	}
	for name, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
	return root, filepath.Join(root, "build.hcl")
}

func read(t *testing.T, root, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(b)
}

func TestDefaultTaskBuildsDistribution(t *testing.T) {
	root, path := newProject(t)
	a, out := app.SetupAppTest(t, &app.Config{BuildFile: path})
	a.Registry().Now = func() time.Time { return time.Date(2024, 3, 5, 1, 2, 3, 0, time.UTC) }

	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, "/* license */\nvar dom = {};\nconsole.log('dom');\n", read(t, root, "dist/js/ionic.js"))
	assert.Equal(t, "/*! ionic v1.0.0 */\n/* license */\nvar dom = {};\nconsole.log('dom');\n", read(t, root, "dist/js/ionic.min.js"))
	assert.Contains(t, read(t, root, "dist/js/ionic-angular.js"), "angular.module('ionic');")
	assert.Contains(t, read(t, root, "dist/js/ionic.bundle.js"), "/*! bundle 1.0.0 */\nvar angular = {};\n")
	assert.NoFileExists(t, filepath.Join(root, "dist/js/ionic.bundle.min.js"))

	css := read(t, root, "dist/css/ionic.css")
	assert.Equal(t, "/*! ionic v1.0.0 */\n.bar { color: red; }\n", css)
	assert.FileExists(t, filepath.Join(root, "dist/css/ionic.min.css"))

	version := read(t, root, "dist/version.json")
	assert.Equal(t, "1.0.0", gjson.Get(version, "version").String())
	assert.Equal(t, "test", gjson.Get(version, "codename").String())
	assert.Equal(t, "2024-03-05", gjson.Get(version, "date").String())

	assert.Contains(t, out.String(), "Summary:")
}

func TestReleaseBuild(t *testing.T) {
	root, path := newProject(t)
	a, out := app.SetupAppTest(t, &app.Config{BuildFile: path, Tasks: []string{"build"}, Release: true})

	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "Building release version")
	assert.NotContains(t, read(t, root, "dist/js/ionic.js"), "console.log")

	bundleMin := read(t, root, "dist/js/ionic.bundle.min.js")
	assert.Contains(t, bundleMin, "var angular={};")
	assert.NotContains(t, bundleMin, "var angular = {};")

	min := read(t, root, "dist/css/ionic.min.css")
	assert.Contains(t, min, "/*! ionic v1.0.0 */\n")
	assert.NotContains(t, min, "color: red;")
}

func TestDryRunWritesNothing(t *testing.T) {
	root, path := newProject(t)
	a, out := app.SetupAppTest(t, &app.Config{BuildFile: path, DryRun: true})

	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "Plan for default:")
	assert.Contains(t, out.String(), "bundle")
	assert.NoDirExists(t, filepath.Join(root, "dist"))
}
