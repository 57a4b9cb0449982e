package model

type ChunkKind string

const (
	ChunkKindCode         ChunkKind = "code"
	ChunkKindBinary       ChunkKind = "binary"
	ChunkKindConversation ChunkKind = "conversation"
	ChunkKindLog          ChunkKind = "log"
)

func (k ChunkKind) Valid() bool {
	switch k {
	case ChunkKindCode, ChunkKindBinary, ChunkKindConversation, ChunkKindLog:
		return true
	}
	return false
}

// Chunk is an immutable, globally deduplicated slice of previously seen
// text. Two chunks with identical normalized text share one row, one blob
// and one embedding regardless of project or path.
type Chunk struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Path        string    `json:"path"`
	Offset      int       `json:"offset"`
	TokenCount  int       `json:"token_count"`
	ContentHash string    `json:"content_hash"`
	Kind        ChunkKind `json:"kind"`
	Language    string    `json:"language"`
	Ctime       int64     `json:"ctime"`

	// Content is the rehydrated chunk text; populated from the blob
	// store on read paths, never stored in the metadata row.
	Content string `json:"content,omitempty"`
}

// ChunkDraft is the pre-persistence form produced by the chunk builder.
type ChunkDraft struct {
	ProjectID  string
	Path       string
	Offset     int
	TokenCount int
	Kind       ChunkKind
	Language   string
	Content    string
}
