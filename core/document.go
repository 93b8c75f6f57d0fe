package core

// Metadata keys attached to every ContextDocument.
const (
	MetaAnalysisID = "analysis_id"
	MetaPluginID   = "plugin_id"
	MetaDocType    = "type"
	MetaTimestamp  = "timestamp"
)

// Document types stored in the retrieval index.
const (
	DocTypeSystemDescription = "system_description"
	DocTypeAgentResult       = "agent_result"
)

// ContextDocument is one unit of retrievable text: the raw text, a metadata
// map identifying its origin, and (once indexed) an embedding vector plus a
// similarity score when returned from a query. Documents are never deleted
// within the process lifetime; eviction happens only via a full index rebuild
// from persisted artifacts.
type ContextDocument struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float64         `json:"-"`
	Score     float64           `json:"score,omitempty"`
}

// PluginID returns the plugin that produced the document, if any.
func (d ContextDocument) PluginID() FrameworkID {
	return FrameworkID(d.Metadata[MetaPluginID])
}
