package index

// IncidentIndex is the read side of the mirror plus the run history.
// Consumers depend on this interface rather than on *DB.
type IncidentIndex interface {
	ListIncidents(f ListFilter) ([]Incident, int, error)
	GetIncident(id string) (*Incident, error)
	Search(query string, limit int) ([]SearchResult, error)
	CountByYear() (map[string]int, error)
	StoredChecksum() (string, error)
	RecordRun(r RunRow) error
	ListRuns(limit int) ([]RunRow, error)
	Close() error
}

// Verify *DB satisfies IncidentIndex at compile time.
var _ IncidentIndex = (*DB)(nil)
