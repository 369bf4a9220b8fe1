// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"path/filepath"
	"strings"
	"time"
)

// TableKind identifies the storage family a table belongs to.
type TableKind string

const (
	// KindAction is a free-form generative table.
	KindAction TableKind = "action"
	// KindKnowledge holds chunked documents with title/text embeddings.
	KindKnowledge TableKind = "knowledge"
	// KindChat holds conversation turns.
	KindChat TableKind = "chat"
	// KindFile is the per-project uploaded file store.
	KindFile TableKind = "file"
)

// GenerativeKinds lists the kinds that hold generative tables, in
// enumeration order.
var GenerativeKinds = []TableKind{KindAction, KindKnowledge, KindChat}

// ParseTableKind converts a string into a TableKind.
func ParseTableKind(s string) (TableKind, error) {
	switch k := TableKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAction, KindKnowledge, KindChat, KindFile:
		return k, nil
	default:
		return "", ErrInvalidTableKind
	}
}

// State column names present on every row.
const (
	ColumnID        = "ID"
	ColumnUpdatedAt = "Updated at"
)

// Fixed knowledge table columns.
const (
	ColumnTitle      = "Title"
	ColumnTitleEmbed = "Title Embed"
	ColumnText       = "Text"
	ColumnTextEmbed  = "Text Embed"
	ColumnFileID     = "File ID"
	ColumnPage       = "Page"
)

// Fixed chat table columns.
const (
	ColumnUser = "User"
	ColumnAI   = "AI"
)

// TableIdentity addresses one table of one tenant.
type TableIdentity struct {
	OrgID     string
	ProjectID string
	Kind      TableKind
	TableID   string
}

// Locator is the storage location of all tables of one kind for one project.
type Locator struct {
	Root      string
	OrgID     string
	ProjectID string
	Kind      TableKind
}

// Path returns the directory holding the tables.
func (l Locator) Path() string {
	return filepath.Join(l.Root, l.OrgID, l.ProjectID, string(l.Kind))
}

// String implements fmt.Stringer.
func (l Locator) String() string {
	return l.Path()
}

// ValueKind tells how a column value is produced.
type ValueKind string

const (
	// ValuePlain columns are supplied by the caller.
	ValuePlain ValueKind = "plain"
	// ValueGenerated columns are computed by an LLM call.
	ValueGenerated ValueKind = "generated"
	// ValueEmbedding columns hold a vector derived from another column.
	ValueEmbedding ValueKind = "embedding"
)

// DataType is the stored type of a column.
type DataType string

const (
	DataString DataType = "str"
	DataInt    DataType = "int"
	DataFloat  DataType = "float"
	DataBool   DataType = "bool"
	DataVector DataType = "vector"
)

// GenConfig configures how a generated or embedding column is computed.
type GenConfig struct {
	// LLM generation.
	Model        string   `json:"model,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Prompt       string   `json:"prompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	TopP         *float64 `json:"top_p,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	MultiTurn    bool     `json:"multi_turn,omitempty"`

	// Embedding.
	EmbeddingModel string `json:"embedding_model,omitempty"`
	SourceColumn   string `json:"source_column,omitempty"`
}

// ColumnSpec describes one column of a table.
type ColumnSpec struct {
	ID           string     `json:"id"`
	Kind         ValueKind  `json:"kind"`
	DataType     DataType   `json:"dtype"`
	Gen          *GenConfig `json:"gen_config,omitempty"`
	VectorLength int        `json:"vlen,omitempty"`
}

// IsComputed reports whether the column is filled by a provider call.
func (c *ColumnSpec) IsComputed() bool {
	return c.Gen != nil && (c.Kind == ValueGenerated || c.Kind == ValueEmbedding)
}

// Model returns the provider model the column depends on.
func (c *ColumnSpec) Model() string {
	if c.Gen == nil {
		return ""
	}
	if c.Kind == ValueEmbedding {
		return c.Gen.EmbeddingModel
	}
	return c.Gen.Model
}

// TableMeta is the persisted description of a table.
type TableMeta struct {
	ID               string       `json:"id"`
	Kind             TableKind    `json:"kind"`
	Columns          []ColumnSpec `json:"cols"`
	ParentID         *string      `json:"parent_id,omitempty"`
	Version          uint64       `json:"version"`
	IndexedVersion   uint64       `json:"indexed_version"`
	CompactedVersion uint64       `json:"compacted_version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Column returns the named column, matching case-insensitively.
func (m *TableMeta) Column(name string) (*ColumnSpec, bool) {
	for i := range m.Columns {
		if strings.EqualFold(m.Columns[i].ID, name) {
			return &m.Columns[i], true
		}
	}
	return nil, false
}

// EmbeddingColumns returns the columns holding vectors.
func (m *TableMeta) EmbeddingColumns() []ColumnSpec {
	var cols []ColumnSpec
	for _, c := range m.Columns {
		if c.VectorLength > 0 {
			cols = append(cols, c)
		}
	}
	return cols
}

// CellState carries per-cell generation state that is never returned to
// callers as a value.
type CellState struct {
	Error string `json:"error,omitempty"`
}

// Row is one stored table row.
type Row struct {
	ID        string
	UpdatedAt time.Time
	Values    map[string]any
	State     map[string]CellState
}

// Value returns the value of a column.
func (r *Row) Value(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Text returns a column value as a string, or "" when absent.
func (r *Row) Text(column string) string {
	v, ok := r.Values[column]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return stringify(v)
}

// ScoredRow is a search hit.
type ScoredRow struct {
	Row   *Row
	Score float32
}

// ReindexIntent tells whether a mutation should trigger an immediate index
// rebuild.
type ReindexIntent int

const (
	// ReindexAuto rebuilds only small tables.
	ReindexAuto ReindexIntent = iota
	// ReindexYes always schedules a rebuild.
	ReindexYes
	// ReindexNo never schedules a rebuild.
	ReindexNo
)

// ReindexFromBool maps an optional boolean to an intent.
func ReindexFromBool(b *bool) ReindexIntent {
	switch {
	case b == nil:
		return ReindexAuto
	case *b:
		return ReindexYes
	default:
		return ReindexNo
	}
}

// IndexOutcome is the result of one maintenance visit to one table.
type IndexOutcome int

const (
	OutcomeOK IndexOutcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o IndexOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// RunSummary aggregates outcomes of one maintenance pass.
type RunSummary struct {
	OK          int
	Skipped     int
	Failed      int
	LockSkipped bool
}

// Add counts one outcome.
func (s *RunSummary) Add(o IndexOutcome) {
	switch o {
	case OutcomeOK:
		s.OK++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Visits is the number of tables visited.
func (s RunSummary) Visits() int {
	return s.OK + s.Skipped + s.Failed
}

// FileRecord is an uploaded file.
type FileRecord struct {
	ID        string
	Name      string
	Content   []byte
	Checksum  string
	Size      int64
	CreatedAt time.Time
}

// Chunk is a piece of a loaded document.
type Chunk struct {
	Text     string
	Position int
	Page     int
}

// Metric is a vector distance metric.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
	MetricL2     Metric = "l2"
)

// Filter is a conjunction of column equality predicates.
type Filter map[string]any

// Matches reports whether the row satisfies every predicate.
func (f Filter) Matches(r *Row) bool {
	for col, want := range f {
		var got any
		switch col {
		case ColumnID:
			got = r.ID
		default:
			got = r.Values[col]
		}
		if stringify(got) != stringify(want) {
			return false
		}
	}
	return true
}

// SearchQuery is a hybrid search request.
type SearchQuery struct {
	TableID        string
	Query          string
	Where          Filter
	Limit          int
	Metric         Metric
	NProbes        int
	RefineFactor   int
	RerankingModel string
}

// Search defaults.
const (
	DefaultSearchLimit  = 100
	MaxSearchLimit      = 100
	DefaultNProbes      = 50
	DefaultRefineFactor = 20
)

// WithDefaults fills unset fields.
func (q SearchQuery) WithDefaults() SearchQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Metric == "" {
		q.Metric = MetricCosine
	}
	if q.NProbes <= 0 {
		q.NProbes = DefaultNProbes
	}
	if q.RefineFactor <= 0 {
		q.RefineFactor = DefaultRefineFactor
	}
	return q
}
