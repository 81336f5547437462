// Package pdf writes laid out documents as PDF.
//
// Render draws every page item of a layout.Document: text runs in core or
// embedded TrueType fonts, rules, fills and images. Core fonts are encoded
// as Windows-1252. Output is reproducible: dates are fixed and the catalog
// is sorted, so the same document always gives the same bytes.
//
// Example:
//
//	cfg := pdf.DefaultConfig()
//	cfg.Title = "Quarterly report"
//
//	err := pdf.Render(pdf.RenderRequest{
//		Writer:   outFile,
//		Document: doc,
//		Config:   cfg,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Layout should measure text with NewMetrics so its line breaks match the
// fonts used here. Serializer plugs the renderer into output.Write.
package pdf
