package format

// Options controls how journal entries are rendered.
type Options struct {
	UseColors bool
	// MaxWidth truncates argument and message text (0 = no limit).
	MaxWidth int
	// Compact prints one line per entry.
	Compact bool
	// ShowIDs adds the entry ID to the detailed format.
	ShowIDs bool
}

// DefaultOptions returns the detailed, colored format.
func DefaultOptions() Options {
	return Options{
		UseColors: true,
		MaxWidth:  80,
	}
}

// CompactOptions returns the single-line format.
func CompactOptions() Options {
	opts := DefaultOptions()
	opts.Compact = true
	opts.MaxWidth = 60
	return opts
}
