package hcl

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/tidwall/gjson"
	"github.com/vk/buildgrid/internal/config"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// readPackageJSON extracts the project metadata from an npm manifest.
func readPackageJSON(path string) (config.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Package{}, fmt.Errorf("reading package file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return config.Package{}, fmt.Errorf("package file %s is not valid JSON", path)
	}

	fields := gjson.GetManyBytes(data, "name", "version", "codename", "description", "homepage", "license")
	return config.Package{
		Name:        fields[0].String(),
		Version:     fields[1].String(),
		Codename:    fields[2].String(),
		Description: fields[3].String(),
		Homepage:    fields[4].String(),
		License:     fields[5].String(),
	}, nil
}

func (b *packageBlock) toModel() config.Package {
	return config.Package{
		Name:        b.Name,
		Version:     b.Version,
		Codename:    deref(b.Codename),
		Description: deref(b.Description),
		Homepage:    deref(b.Homepage),
		License:     deref(b.License),
	}
}

// evalContext exposes the package metadata to templates as `pkg`.
func evalContext(pkg config.Package) (*hcl.EvalContext, error) {
	ty, err := gocty.ImpliedType(pkg)
	if err != nil {
		return nil, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	val, err := gocty.ToCtyValue(pkg, ty)
	if err != nil {
		return nil, err
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"pkg": val},
	}, nil
}

// evalString evaluates a template attribute. A missing attribute yields ok
// false so the caller keeps its default.
func evalString(expr hcl.Expression, evalCtx *hcl.EvalContext) (s string, ok bool, err error) {
	if expr == nil {
		return "", false, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", false, diags
	}
	if val.IsNull() {
		return "", false, nil
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", false, fmt.Errorf("cannot convert %s to string: %w", val.Type().FriendlyName(), err)
	}
	if !str.IsKnown() {
		return "", false, fmt.Errorf("value is not known")
	}
	return str.AsString(), true, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
