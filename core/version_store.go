package core

import (
	"context"
	"time"
)

// VersionMetadata records provenance for a single persisted version.
type VersionMetadata struct {
	Operation Operation `json:"operation"`
	Model     string    `json:"model,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	// RevertedFrom / RevertedTo are set only for versions produced by revert:
	// the version that was current when the revert ran, and the version whose
	// content was restored.
	RevertedFrom int       `json:"reverted_from,omitempty"`
	RevertedTo   int       `json:"reverted_to,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Version is an immutable, self-contained snapshot of an artifact at one
// point in time. Content is always a full snapshot, never a diff.
type Version struct {
	ArtifactID string       `json:"artifact_id"`
	Number     int          `json:"version_number"` // starts at 1, strictly increasing, never reused
	Title      string       `json:"title"`
	Kind       ArtifactKind `json:"kind"`
	Content    string       `json:"content"`
	Parent     int          `json:"parent_version,omitempty"` // 0 means no parent (version 1)
	Metadata   VersionMetadata
}

// VersionDraft is the input to SaveVersion. The store allocates the version
// number; callers supply the parent version they observed.
type VersionDraft struct {
	ArtifactID string
	Title      string
	Kind       ArtifactKind
	Content    string
	Parent     int
	Metadata   VersionMetadata
}

// VersionStore persists append-only version chains per artifact.
//
// Implementations must be safe for concurrent use and must guarantee
// monotonic, gap-free numbering from 1 along with atomic visibility of a
// saved version: a reader sees either the previous current version or the
// complete new one, never a partial write.
//
// Concurrent turns mutating the same artifact id race last-writer-wins: the
// store does not compare Parent against the current version on save. One
// turn owns an artifact for its duration, so no per-artifact locking is
// imposed here.
type VersionStore interface {
	// GetCurrent returns the highest-numbered version of the artifact.
	GetCurrent(ctx context.Context, artifactID string) (Version, error)

	// GetVersion returns one specific version of the artifact.
	GetVersion(ctx context.Context, artifactID string, number int) (Version, error)

	// ListVersions returns every version of the artifact ordered by number.
	ListVersions(ctx context.Context, artifactID string) ([]Version, error)

	// SaveVersion appends a new version and returns it with the allocated
	// number. The first save for an artifact id yields version 1.
	SaveVersion(ctx context.Context, draft VersionDraft) (Version, error)
}
