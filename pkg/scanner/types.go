package scanner

import "github.com/praetorian-inc/wmscan/pkg/types"

// ContentItem represents a content item to scan
type ContentItem struct {
	Source   string            `json:"source"`   // e.g. "stdin", "upload:42"
	Content  string            `json:"content"`  // the actual content to scan
	Metadata map[string]string `json:"metadata"` // optional metadata, kept in provenance
}

// ScanResult represents scan results for a single item
type ScanResult struct {
	Source  string         `json:"source"`
	BlobID  types.BlobID   `json:"blob_id"`
	Matches []*types.Match `json:"matches"`
	// Counts maps each matched pattern ID to its number of occurrences.
	Counts map[string]int `json:"counts"`
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"`
	Errors  []ItemError  `json:"errors,omitempty"`
}

// ItemError reports a batch item that could not be scanned.
type ItemError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}
