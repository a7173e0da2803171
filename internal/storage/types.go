package storage

// Bank is the isolation boundary for all other entities (SPEC_FULL.md §3).
type Bank struct {
	ID          string
	Name        string
	Description string
	Config      map[string]any
	Disposition Disposition
	Mission     string
	CreatedAt   int64
	UpdatedAt   int64
}

// Disposition holds the three integer personality traits, each clamped to [1,5].
type Disposition struct {
	Skepticism int
	Literalism int
	Empathy    int
}

// HistoryEntry is one append-only entry in a memory unit's history, written
// only by the consolidation engine's update/merge actions.
type HistoryEntry struct {
	PreviousText    string `json:"previous_text"`
	ChangedAt       int64  `json:"changed_at"`
	Reason          string `json:"reason"`
	SourceMemoryID  string `json:"source_memory_id"`
}

// MemoryUnit is the central entity (SPEC_FULL.md §3).
type MemoryUnit struct {
	ID              string
	BankID          string
	Content         string
	FactType        string
	Confidence      float64
	ValidFrom       *int64
	ValidTo         *int64
	MentionedAt     *int64
	OccurredStart   *int64
	OccurredEnd     *int64
	EventDate       *int64
	DocumentID      *string
	ChunkID         *string
	SourceText      *string
	Tags            []string
	ProofCount      int
	SourceMemoryIDs []string
	History         []HistoryEntry
	ConsolidatedAt  *int64
	CreatedAt       int64
	UpdatedAt       int64
}

// IsObservation reports whether m is a consolidated observation rather than
// a raw fact.
func (m *MemoryUnit) IsObservation() bool {
	return m.FactType == "observation"
}

// TemporalReference returns the timestamp temporal linking and temporal
// recall key off for m: event_date first, falling back through the other
// temporal fields in the order SPEC_FULL.md §4.2 lists them, since
// event_date is not always populated.
func (m *MemoryUnit) TemporalReference() *int64 {
	switch {
	case m.EventDate != nil:
		return m.EventDate
	case m.OccurredStart != nil:
		return m.OccurredStart
	case m.MentionedAt != nil:
		return m.MentionedAt
	case m.ValidFrom != nil:
		return m.ValidFrom
	default:
		return nil
	}
}

// Entity is a named thing tracked across memories within one bank.
type Entity struct {
	ID           string
	BankID       string
	Name         string
	EntityType   string
	Description  string
	MentionCount int
	FirstSeen    int64
	LastUpdated  int64
	Metadata     map[string]any
}

// MemoryLink is a directed, typed, weighted edge between two memory units.
type MemoryLink struct {
	ID        string
	BankID    string
	SourceID  string
	TargetID  string
	LinkType  string
	Weight    float64
	Metadata  map[string]any
	CreatedAt int64
}

// MentalModel is a user-curated summary regenerated by replaying SourceQuery.
type MentalModel struct {
	ID              string
	BankID          string
	Name            string
	SourceQuery     string
	Content         *string
	SourceMemoryIDs []string
	Tags            []string
	AutoRefresh     bool
	LastRefreshedAt *int64
	CreatedAt       int64
	UpdatedAt       int64
}

// StaleWindowMillis is the 7-day freshness window from SPEC_FULL.md §3/§4.8.
const StaleWindowMillis = int64(7 * 24 * 60 * 60 * 1000)

// IsStale reports whether the model's last refresh is older than the 7-day window.
func (m *MentalModel) IsStale(nowMillis int64) bool {
	if m.LastRefreshedAt == nil {
		return true
	}
	return nowMillis-*m.LastRefreshedAt > StaleWindowMillis
}

// Directive is a persistent instruction injected into reflect prompts.
type Directive struct {
	ID        string
	BankID    string
	Name      string
	Body      string
	Tags      []string
	Active    bool
	CreatedAt int64
	UpdatedAt int64
}

// Document is optional origin metadata for a retain call.
type Document struct {
	ID        string
	BankID    string
	Title     string
	Source    string
	Metadata  map[string]any
	CreatedAt int64
}

// Chunk belongs to a document and may be referenced by many memory units.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	CreatedAt  int64
}

// AsyncOperation tracks one background job (SPEC_FULL.md §4.9).
type AsyncOperation struct {
	OperationID    string
	BankID         string
	OperationType  string
	Status         string
	Metadata       map[string]any // caller-supplied at submit time (task parameters, correlation context)
	ResultMetadata map[string]any
	ErrorMessage   string
	CreatedAt      int64
	UpdatedAt      int64
}

// VisualMemory is a text-only visual description with its own vector index.
type VisualMemory struct {
	ID             string
	BankID         string
	SourceID       *string
	Description    string
	ScopeProfile   string
	ScopeProject   string
	ScopeSession   string
	CreatedAt      int64
	LastAccessedAt *int64
}
