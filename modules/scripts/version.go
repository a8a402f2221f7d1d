package scripts

import (
	"time"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"github.com/vk/buildgrid/internal/config"
)

var versionPretty = &pretty.Options{Width: 80, Prefix: "", Indent: "  ", SortKeys: false}

// VersionJSON renders the version stamp for pkg at now. Date and time are
// UTC; keys keep the order version, codename, date, time.
func VersionJSON(pkg config.Package, now time.Time) ([]byte, error) {
	now = now.UTC()
	fields := []struct {
		key   string
		value string
	}{
		{"version", pkg.Version},
		{"codename", pkg.Codename},
		{"date", now.Format(time.DateOnly)},
		{"time", now.Format(time.TimeOnly)},
	}

	doc := []byte("{}")
	for _, f := range fields {
		var err error
		if doc, err = sjson.SetBytes(doc, f.key, f.value); err != nil {
			return nil, err
		}
	}
	return pretty.PrettyOptions(doc, versionPretty), nil
}
