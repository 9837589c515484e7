package patternset

// yamlPattern is one entry of a set's patterns list. Exactly one of
// Literal and LiteralHex is set.
type yamlPattern struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name,omitempty"`
	Literal     *string  `yaml:"literal,omitempty"`
	LiteralHex  string   `yaml:"literal_hex,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Categories  []string `yaml:"categories,omitempty"`
}

// yamlSet is one pattern set. Literals is a shorthand for patterns that
// only need their bytes; their IDs are derived from the set ID.
type yamlSet struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name,omitempty"`
	Description string        `yaml:"description,omitempty"`
	Algorithm   string        `yaml:"algorithm,omitempty"`
	BlockSize   int           `yaml:"block_size,omitempty"`
	Keywords    []string      `yaml:"keywords,omitempty"`
	Patterns    []yamlPattern `yaml:"patterns,omitempty"`
	Literals    []string      `yaml:"literals,omitempty"`
}

// yamlSetsFile is the top level of a pattern set file.
type yamlSetsFile struct {
	Sets []yamlSet `yaml:"sets"`
}
