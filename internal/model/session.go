package model

// SessionPiece records one chunk or summary actually selected by an
// assembly call, in selection order.
type SessionPiece struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	TokenCount int    `json:"token_count"`
	Priority   int    `json:"priority"`
}

// ContextSession is the write-once audit row recorded per assembly call.
type ContextSession struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	ModelName   string         `json:"model_name"`
	TotalTokens int            `json:"total_tokens"`
	Pieces      []SessionPiece `json:"pieces"`
	Ctime       int64          `json:"ctime"`
}
