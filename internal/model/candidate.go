package model

// Candidate priority streams, in strict assembly order.
const (
	PriorityHotWindow = iota
	PriorityRetrieved
	PriorityConversation
	PrioritySummary
)

// Candidate is a chunk or summary proposed for inclusion in an assembled
// context, before budget filtering.
type Candidate struct {
	ID         string
	Path       string
	Kind       ChunkKind
	TokenCount int
	Score      float32
	Ctime      int64
	IsHotPath  bool
	IsSummary  bool
}
