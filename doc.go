// Package report turns a template and a data model into a paginated
// document.
//
// Every render call runs four stages in order: the data is bound and
// validated (package model), the template is resolved and expanded into
// markup (packages resource, tmpl and expand), the markup is laid out into
// pages (package layout) and the pages are serialized to their destination
// (packages output, pdf and plaintext). The first failing stage ends the
// call with an *Error carrying the stage, a Kind and, where known, a
// template, markup or data position.
//
// Core properties:
//   - Deterministic: the same template, data, config and resources give
//     byte-identical output
//   - Atomic writes: a destination is either untouched or fully written
//   - Table rows, images and lines never split across pages; headers,
//     footers and table heads repeat on every page
//   - Resources are cached per engine and only dropped on explicit eviction
//
// Example:
//
//	engine, err := report.New(report.Config{TemplateSearchPaths: []string{"templates"}})
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := engine.Render(ctx, report.Request{
//		Template: "invoice",
//		Data:     invoice,
//		Dest:     output.File("invoice.pdf"),
//	})
//	if err != nil {
//		var rerr *report.Error
//		if errors.As(err, &rerr) {
//			log.Fatalf("%s failed at %s: %v", rerr.Stage, rerr.Position, rerr.Cause)
//		}
//		log.Fatal(err)
//	}
//	log.Printf("%d pages", res.Pages)
//
// Builder offers the same call as a fluent chain, and RenderReport renders
// once without keeping an engine.
package report
