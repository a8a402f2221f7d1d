// Package hcl loads build declarations written in HCL into the
// format-agnostic config.Model.
//
// Banner attributes are HCL template expressions evaluated against a `pkg`
// object holding the project metadata, e.g. "/*! ${pkg.name} v${pkg.version} */".
package hcl
