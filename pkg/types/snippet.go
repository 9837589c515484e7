package types

// Snippet holds a match and the lines around it.
type Snippet struct {
	Before   []byte
	Matching []byte
	After    []byte
}
