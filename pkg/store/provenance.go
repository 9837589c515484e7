package store

import (
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/wmscan/pkg/types"
)

// provenanceRow is the flattened form of a types.Provenance.
type provenanceRow struct {
	Kind       string
	Path       string
	MemberPath string
	RepoPath   string
	CommitHash string
	Payload    string
}

func encodeProvenance(prov types.Provenance) (provenanceRow, error) {
	if prov == nil {
		return provenanceRow{}, fmt.Errorf("provenance is nil")
	}
	row := provenanceRow{Kind: prov.Kind()}
	switch p := prov.(type) {
	case types.FileProvenance:
		row.Path = p.FilePath
	case types.ArchiveProvenance:
		row.Path = p.ArchivePath
		row.MemberPath = p.MemberPath
	case types.GitProvenance:
		row.Path = p.BlobPath
		row.RepoPath = p.RepoPath
		if p.Commit != nil {
			row.CommitHash = p.Commit.CommitID
		}
	case types.ExtendedProvenance:
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return row, fmt.Errorf("marshaling provenance payload: %w", err)
		}
		row.Payload = string(payload)
	default:
		return row, fmt.Errorf("unknown provenance type: %T", prov)
	}
	return row, nil
}

func (row provenanceRow) decode() (types.Provenance, error) {
	switch row.Kind {
	case "file":
		return types.FileProvenance{FilePath: row.Path}, nil
	case "archive":
		return types.ArchiveProvenance{ArchivePath: row.Path, MemberPath: row.MemberPath}, nil
	case "git":
		p := types.GitProvenance{RepoPath: row.RepoPath, BlobPath: row.Path}
		if row.CommitHash != "" {
			p.Commit = &types.CommitMetadata{CommitID: row.CommitHash}
		}
		return p, nil
	case "extended":
		var payload map[string]any
		if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil {
			return nil, fmt.Errorf("unmarshaling provenance payload: %w", err)
		}
		return types.ExtendedProvenance{Payload: payload}, nil
	default:
		return nil, fmt.Errorf("unknown provenance kind %q", row.Kind)
	}
}
