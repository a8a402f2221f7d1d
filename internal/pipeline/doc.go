// Package pipeline composes file-transformation stages over in-memory file
// records.
//
// A pipeline is declared once as a chain of stages that may end in a branch
// point. Every branch is itself a chain (a sink) and receives its own copy of
// the records produced before the branch, so work ahead of the branch runs a
// single time however many sinks consume it:
//
//	chain := pipeline.New("scripts").
//		Then(pipeline.Concat("ionic.js")).
//		Then(transform.StripDebug(), pipeline.ReleaseOnly).
//		Branch(
//			pipeline.Sink("plain").Then(pipeline.Dest(distJS)),
//			pipeline.Sink("min").
//				Then(transform.Uglify(), pipeline.ReleaseOnly).
//				Then(pipeline.Rename(".min.js")).
//				Then(pipeline.Dest(distJS)),
//		)
//
// Stage conditions are evaluated by Build against a single Variant, so the
// compiled pipeline only contains stages meant for that variant.
package pipeline
