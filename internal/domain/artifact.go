package domain

import (
	"fmt"
	"time"
)

// Artifact describes the newest downloadable file announced by the release
// feed. It is built fresh each sync cycle from live feed data and discarded
// when the cycle ends; nothing about it is persisted.
type Artifact struct {
	PublishedAt time.Time
	DownloadURL string
	ContentHash string // may be empty when the feed omits a hash
	FileName    string
	PublicURL   string
}

// Equal reports whether two artifacts refer to the same release. Identity is
// defined by the content hash: two artifacts with the same non-empty hash are
// the same release regardless of any other field. Artifacts without a hash
// are never equal.
func (a *Artifact) Equal(other *Artifact) bool {
	if other == nil {
		return false
	}
	return a.ContentHash != "" && a.ContentHash == other.ContentHash
}

// Compare orders artifacts by publish time: -1 when a is older, +1 when a is
// newer, 0 when the timestamps match. Note this ordering and Equal do not
// coincide; together they form a partial order, not a total one.
func (a *Artifact) Compare(other *Artifact) int {
	switch {
	case a.PublishedAt.Before(other.PublishedAt):
		return -1
	case a.PublishedAt.After(other.PublishedAt):
		return 1
	default:
		return 0
	}
}

// String renders the human-readable summary sent through the notification
// channel after a completed transfer.
func (a *Artifact) String() string {
	return fmt.Sprintf(
		"\nfile name: %s\npub date: %s\ndownload url: %s\nhash: %s\npublic url: %s",
		a.FileName,
		a.PublishedAt.UTC().Format(time.RFC1123),
		a.DownloadURL,
		a.ContentHash,
		a.PublicURL,
	)
}
