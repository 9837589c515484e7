package types

import "time"

// Provenance records where a blob came from.
type Provenance interface {
	Kind() string
	Path() string
}

// FileProvenance is a file on disk.
type FileProvenance struct {
	FilePath string
}

func (f FileProvenance) Kind() string { return "file" }
func (f FileProvenance) Path() string { return f.FilePath }

// ArchiveProvenance is content pulled out of a container file: a member of a
// zip or 7z archive, text of a document, or a decompressed stream. MemberPath
// is empty for single-stream compression formats.
type ArchiveProvenance struct {
	ArchivePath string
	MemberPath  string
}

func (a ArchiveProvenance) Kind() string { return "archive" }

func (a ArchiveProvenance) Path() string {
	if a.MemberPath == "" {
		return a.ArchivePath
	}
	return a.ArchivePath + ":" + a.MemberPath
}

// GitProvenance is a blob reached from a repository tree.
type GitProvenance struct {
	RepoPath string
	Commit   *CommitMetadata // nil when commit info is not tracked
	BlobPath string          // path within the tree
}

func (g GitProvenance) Kind() string { return "git" }
func (g GitProvenance) Path() string { return g.BlobPath }

// CommitMetadata describes the commit a GitProvenance was read at.
type CommitMetadata struct {
	CommitID           string
	AuthorName         string
	AuthorEmail        string
	AuthorTimestamp    time.Time
	CommitterName      string
	CommitterEmail     string
	CommitterTimestamp time.Time
	Message            string
}

// ExtendedProvenance carries caller-defined metadata, for example the
// source field of a serve request.
type ExtendedProvenance struct {
	Payload map[string]any
}

func (e ExtendedProvenance) Kind() string { return "extended" }
func (e ExtendedProvenance) Path() string {
	if p, ok := e.Payload["path"].(string); ok {
		return p
	}
	return ""
}
