package domain

// Chat roles accepted in conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one message of a conversation. Histories are consumed
// read-only by the query pipeline and never mutated.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChunkBatch carries the chunks produced for one document source.
type ChunkBatch struct {
	SourceID string
	Chunks   []string
}

// IngestRequest is the typed input of the ingestion pipeline. Exactly one
// of PDFPath and RawText must be set; SourceID defaults to PDFPath.
type IngestRequest struct {
	PDFPath  string `json:"pdf_path,omitempty"`
	RawText  string `json:"raw_text,omitempty"`
	SourceID string `json:"source_id,omitempty"`
}

// IngestResult reports how many chunks were embedded and upserted.
type IngestResult struct {
	Ingested int `json:"ingested"`
}

// QueryRequest is the typed input of the query pipeline.
// TopK defaults to 5; SourceID restricts search to one document;
// History enables condensation; Persona prefixes the system prompt.
type QueryRequest struct {
	Question string     `json:"question"`
	TopK     int        `json:"top_k,omitempty"`
	SourceID string     `json:"source_id,omitempty"`
	History  []ChatTurn `json:"chat_history,omitempty"`
	Persona  string     `json:"persona,omitempty"`
}

// QueryResult is the query pipeline's output contract.
// Answered is a structured signal: it is false when retrieval produced no
// context for the model to answer from. Callers must not classify outcomes
// by scanning the answer text.
type QueryResult struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	NumContexts int      `json:"num_contexts"`
	Answered    bool     `json:"answered"`
}

// SearchResult holds retrieved contexts in similarity rank order and their
// originating sources deduplicated in first-seen order.
type SearchResult struct {
	Contexts []string `json:"contexts"`
	Sources  []string `json:"sources"`
}

// InteractionRecord is one append-only audit entry. Corrections are new
// records; there is no update or delete path.
type InteractionRecord struct {
	Question string
	Answer   string
	SourceID string
	Sources  []string
	History  []ChatTurn
	Answered bool
}
