package classify

// Default thresholds and limits.
const (
	// DefaultMinTextChars is the visible text length under which a page may be blank.
	DefaultMinTextChars = 20

	// DefaultMinMarkupChars is the collapsed markup length under which a page
	// may be blank. Error pages served to blocked clients are typically a
	// bare <html><head></head><body></body></html>.
	DefaultMinMarkupChars = 200

	// DefaultCandidateSelector selects the interactive elements slots are rendered as.
	DefaultCandidateSelector = "button, .btn, [role=button]"

	// DefaultCandidateLimit bounds the candidates read per document.
	DefaultCandidateLimit = 300
)

// Phrases are the human-readable markers the classifier and the navigator
// look for. Matching is accent and case insensitive.
type Phrases struct {
	// NoSlots are explicit "no availability" messages.
	NoSlots []string `yaml:"noSlots,omitempty"`

	// FreeMarkers mark a time slot as free.
	FreeMarkers []string `yaml:"freeMarkers,omitempty"`

	// Continue are the labels of the widget's continue button.
	Continue []string `yaml:"continue,omitempty"`
}

// DefaultPhrases returns the phrases used by the Spanish consular widget.
func DefaultPhrases() Phrases {
	return Phrases{
		NoSlots: []string{
			"No hay horas disponibles",
			"Sin horas disponibles",
			"No hay citas disponibles",
			"No hay huecos disponibles",
			"No appointments available",
			"No hours available",
		},
		FreeMarkers: []string{
			"Hueco libre",
			"libre",
			"disponible",
			"available",
		},
		Continue: []string{"Continuar", "Continue"},
	}
}

// Config configures a Classifier.
type Config struct {
	// Phrases are the markers to look for.
	Phrases Phrases

	// MinTextChars and MinMarkupChars are the blank-page thresholds.
	MinTextChars   int
	MinMarkupChars int

	// Tolerant accepts time-labelled elements without a free marker.
	Tolerant bool

	// CandidateSelector selects slot elements.
	CandidateSelector string

	// CandidateLimit bounds the candidates read per document.
	CandidateLimit int
}

// DefaultConfig returns the default classifier configuration.
func DefaultConfig() Config {
	return Config{
		Phrases:           DefaultPhrases(),
		MinTextChars:      DefaultMinTextChars,
		MinMarkupChars:    DefaultMinMarkupChars,
		Tolerant:          true,
		CandidateSelector: DefaultCandidateSelector,
		CandidateLimit:    DefaultCandidateLimit,
	}
}

// withDefaults fills zero fields of c from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if len(c.Phrases.NoSlots) == 0 {
		c.Phrases.NoSlots = def.Phrases.NoSlots
	}
	if len(c.Phrases.FreeMarkers) == 0 {
		c.Phrases.FreeMarkers = def.Phrases.FreeMarkers
	}
	if len(c.Phrases.Continue) == 0 {
		c.Phrases.Continue = def.Phrases.Continue
	}
	if c.MinTextChars <= 0 {
		c.MinTextChars = def.MinTextChars
	}
	if c.MinMarkupChars <= 0 {
		c.MinMarkupChars = def.MinMarkupChars
	}
	if c.CandidateSelector == "" {
		c.CandidateSelector = def.CandidateSelector
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = def.CandidateLimit
	}
	return c
}
