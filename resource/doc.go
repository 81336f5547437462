// Package resource resolves named report resources (templates, fonts,
// images, styles) to immutable byte handles.
//
// A Provider searches an ordered list of sources. The first source that
// yields bytes for a name wins; results are never merged. Resolved handles
// are cached for the lifetime of the Provider and are only dropped by an
// explicit Evict or Clear, so repeated renders within a process see the same
// bytes.
//
// Example:
//
//	p := resource.New(
//		resource.Dir("./templates"),
//		resource.Memory("inline", map[string][]byte{
//			"greeting.tmpl": []byte("Hello {{name}}"),
//		}),
//	)
//	h, err := p.Resolve(ctx, "greeting", resource.KindTemplate)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(string(h.Bytes()))
//
// Concurrent first resolutions of the same name collapse into a single read.
package resource
