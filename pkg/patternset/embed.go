package patternset

import "embed"

// builtinFS holds the pattern sets shipped with the binary.
//
//go:embed sets/*.yml
var builtinFS embed.FS
