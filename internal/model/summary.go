package model

type SummaryLevel string

const (
	SummaryLevelChunk   SummaryLevel = "chunk"
	SummaryLevelFile    SummaryLevel = "file"
	SummaryLevelProject SummaryLevel = "project"
)

func (l SummaryLevel) Valid() bool {
	switch l {
	case SummaryLevelChunk, SummaryLevelFile, SummaryLevelProject:
		return true
	}
	return false
}

// Summary is a condensed description of one or more chunks. A file-level
// summary covers every chunk sharing its path; a project-level summary
// covers the whole project. Summaries are regenerated, not patched.
type Summary struct {
	ID         string       `json:"id"`
	ProjectID  string       `json:"project_id"`
	Path       string       `json:"path"`
	Level      SummaryLevel `json:"level"`
	Content    string       `json:"content"`
	TokenCount int          `json:"token_count"`
	Ctime      int64        `json:"ctime"`
}

// SummaryDraft is the pre-persistence form produced by the summarizer.
type SummaryDraft struct {
	ProjectID  string
	Path       string
	Level      SummaryLevel
	Content    string
	TokenCount int
	Degraded   bool
}
