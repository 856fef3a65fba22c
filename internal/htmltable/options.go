package htmltable

// Options controls how raw header text is turned into record keys.
//
// The steps run in a fixed order (trim, lowercase, collapse, replace) no matter
// which of them are enabled. Options is a plain value: every Parser carries its
// own copy and there is no package-level configuration.
type Options struct {
	// TrimKeys strips leading and trailing whitespace.
	TrimKeys bool `json:"trim_keys" yaml:"trim_keys"`

	// LowercaseKeys case-folds keys to lower case.
	LowercaseKeys bool `json:"lowercase_keys" yaml:"lowercase_keys"`

	// CollapseWhitespace replaces every run of two or more whitespace
	// characters with a single space.
	CollapseWhitespace bool `json:"collapse_whitespace" yaml:"collapse_whitespace"`

	// ReplaceWhitespace replaces every remaining whitespace character with
	// WhitespaceReplacement.
	ReplaceWhitespace bool `json:"replace_whitespace" yaml:"replace_whitespace"`

	// WhitespaceReplacement is used when ReplaceWhitespace is on.
	// An empty string falls back to DefaultWhitespaceReplacement.
	WhitespaceReplacement string `json:"whitespace_replacement,omitempty" yaml:"whitespace_replacement,omitempty"`
}

// DefaultWhitespaceReplacement is the replacement used when none is configured.
const DefaultWhitespaceReplacement = "_"

// DefaultOptions returns the options used when nothing is configured: every
// step enabled, whitespace replaced by "_".
func DefaultOptions() Options {
	return Options{
		TrimKeys:              true,
		LowercaseKeys:         true,
		CollapseWhitespace:    true,
		ReplaceWhitespace:     true,
		WhitespaceReplacement: DefaultWhitespaceReplacement,
	}
}

func (o Options) replacement() string {
	if o.WhitespaceReplacement == "" {
		return DefaultWhitespaceReplacement
	}
	return o.WhitespaceReplacement
}
