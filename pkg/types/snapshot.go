package types

import "time"

// SchemaVersion is the current version of the persisted snapshot layout.
// Snapshots written with an older version are rebuilt.
const SchemaVersion = 1.2

// Snapshot is the persisted form of a timeline.
type Snapshot struct {
	// Version is the schema version the snapshot was written with
	Version float64 `json:"version"`

	// UpdatedAt is the tracked item's last-updated timestamp at dump time
	UpdatedAt time.Time `json:"updated_at"`

	// History is the sorted timeline
	History []Event `json:"history"`
}

// CountKind returns how many events of the given kind the snapshot holds.
func (s *Snapshot) CountKind(kind EventKind) int {
	n := 0
	for i := range s.History {
		if s.History[i].Kind == kind {
			n++
		}
	}
	return n
}
