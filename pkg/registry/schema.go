package registry

// Model entry statuses. At most one entry is active.
const (
	StatusCandidate = "candidate"
	StatusActive    = "active"
	StatusRetired   = "retired"
)

type ModelRegistry struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Models      []Model `json:"models"`
}

// Model describes one trained artifact on disk.
type Model struct {
	Version   string  `json:"version"`
	Path      string  `json:"path"`
	Checksum  string  `json:"checksum"`
	CreatedAt string  `json:"createdAt"`
	Accuracy  float64 `json:"accuracy"`
	Status    string  `json:"status"`
}
