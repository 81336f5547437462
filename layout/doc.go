// Package layout turns report markup into a paginated Document.
//
// Markup is a small, well formed XHTML-like vocabulary:
//
//	<page size="A4" orientation="landscape" margin="2cm"/>
//	<header>…</header> <footer>…</footer>    repeated on every page
//	<h1> <h2> <h3> <p> <div>                 blocks
//	<b> <strong> <i> <em> <span> <br/>       inline
//	<table widths="1,3"> <thead> <tbody> <tr> <th> <td>
//	<ul> <ol> <li> <img src="logo.png"/> <hr/> <spacer height="1cm"/> <pagebreak/>
//
// Any element takes font, size, color, align and class attributes. A <page>
// directive after content starts a new page with its own geometry, so one
// document can mix portrait and landscape pages.
//
// Layout splits content into atomic units: a line of text, a table row, an
// image, a rule, a spacer. A unit that does not fit in what is left of a
// page moves whole to the next one. Table header rows repeat at the top of
// continuation pages. Images are scaled down to fit the body; a row taller
// than the body is an OverflowError.
//
// Fonts and images resolve through a resource.Provider. A missing font is
// replaced by the default font with a Warning unless StrictResources is
// set; a missing image is an UnresolvedError. When the Metrics implement
// Coverage, words a core font cannot encode move to PageConfig.UnicodeFont
// and runes without a glyph are reported as warnings.
package layout
