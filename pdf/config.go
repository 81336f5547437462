package pdf

import "time"

// Config holds PDF rendering settings. Page geometry, fonts and colours come
// from the laid out document; Config only covers what the PDF file itself
// carries.
type Config struct {
	Title   string
	Author  string
	Subject string
	Creator string
	// Date is written as both creation and modification date. Zero means
	// the document date, then defaultDate.
	Date time.Time
	// Uncompressed disables content stream compression.
	Uncompressed bool
	// IgnoreColors draws text and rules in TextRGB and skips fills.
	IgnoreColors bool
	TextRGB      [3]int
	// BackgroundEnabled paints each page in BackgroundRGB before drawing.
	BackgroundEnabled bool
	BackgroundRGB     [3]int
}

const producer = "pkt.systems/report"

// defaultDate keeps output reproducible when no date is configured.
var defaultDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultConfig returns a baseline configuration.
func DefaultConfig() Config {
	return Config{Creator: producer}
}

func applyConfig(dst *Config, src Config) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Author != "" {
		dst.Author = src.Author
	}
	if src.Subject != "" {
		dst.Subject = src.Subject
	}
	if src.Creator != "" {
		dst.Creator = src.Creator
	}
	if !src.Date.IsZero() {
		dst.Date = src.Date
	}
	if src.Uncompressed {
		dst.Uncompressed = true
	}
	// Colours come with their switch; black is a valid zero value.
	if src.IgnoreColors {
		dst.IgnoreColors = true
		dst.TextRGB = src.TextRGB
	}
	if src.BackgroundEnabled {
		dst.BackgroundEnabled = true
		dst.BackgroundRGB = src.BackgroundRGB
	}
}
