package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/generation"
	"github.com/poiesic/gentable/storage"
	"github.com/poiesic/gentable/tables"
)

const (
	// DefaultTitleModel is the preferred model for title inference.
	DefaultTitleModel = "openai/gpt-4o-mini"

	// DefaultEmbedBatchSize is the number of texts per embedding call.
	DefaultEmbedBatchSize = 64

	titleExcerptChunks = 8
	titleMaxTokens     = 200
	titleSystemPrompt  = "You are an concise assistant."
	titlePrompt        = "CONTEXT:\n%s\n\nFrom the excerpt, extract the document title or guess a possible title. Provide the title without explanation."
)

var titleSampling = 0.01

// Executor inserts generated rows.
type Executor interface {
	Execute(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// Pipeline ingests files into knowledge tables.
type Pipeline struct {
	root     string
	opener   storage.Opener
	executor Executor
	llm      ai.LLM
	embedder ai.Embedder

	loader     Loader
	splitter   Splitter
	titleModel string
	batchSize  int
	defaults   core.Credentials
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLoader replaces the default FileLoader.
func WithLoader(l Loader) Option {
	return func(p *Pipeline) error {
		p.loader = l
		return nil
	}
}

// WithSplitter replaces the default RecursiveSplitter.
func WithSplitter(s Splitter) Option {
	return func(p *Pipeline) error {
		p.splitter = s
		return nil
	}
}

// WithTitleModel sets the preferred title model.
// Default is DefaultTitleModel.
func WithTitleModel(model string) Option {
	return func(p *Pipeline) error {
		p.titleModel = model
		return nil
	}
}

// WithEmbedBatchSize sets the number of texts per embedding call.
// Default is DefaultEmbedBatchSize.
func WithEmbedBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n > 0 {
			p.batchSize = n
		}
		return nil
	}
}

// WithDefaultCredentials sets server-side API keys. Request credentials take
// precedence.
func WithDefaultCredentials(creds core.Credentials) Option {
	return func(p *Pipeline) error {
		p.defaults = creds
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline for the tables under root.
func NewPipeline(root string, opener storage.Opener, executor Executor, llm ai.LLM, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if opener == nil {
		return nil, ErrOpenerRequired
	}
	if executor == nil {
		return nil, ErrExecutorRequired
	}
	if llm == nil {
		return nil, ErrLLMRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	p := &Pipeline{
		root:       root,
		opener:     opener,
		executor:   executor,
		llm:        llm,
		embedder:   embedder,
		loader:     FileLoader{},
		splitter:   RecursiveSplitter{},
		titleModel: DefaultTitleModel,
		batchSize:  DefaultEmbedBatchSize,
		logger:     slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// UploadRequest is one file to ingest into a knowledge table.
type UploadRequest struct {
	Table    core.TableIdentity
	FileName string
	Content  []byte

	// ChunkSize and ChunkOverlap default to DefaultChunkSize and
	// DefaultChunkOverlap when zero.
	ChunkSize    int
	ChunkOverlap int

	Credentials core.Credentials
}

// UploadResult describes an ingested file.
type UploadResult struct {
	File  *core.FileRecord
	Title string
	Rows  []*core.Row
}

// Ingest registers the file, chunks and embeds it, inserts one row per chunk
// and rebuilds the table's indexes.
func (p *Pipeline) Ingest(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Table.Kind != core.KindKnowledge {
		return nil, fmt.Errorf("%w: uploads need a knowledge table, got %q", core.ErrInvalidTableKind, req.Table.Kind)
	}
	size, overlap, err := chunking(req)
	if err != nil {
		return nil, err
	}
	loc, err := tables.Resolve(p.root, req.Table)
	if err != nil {
		return nil, err
	}
	fileLoc, err := tables.FileLocator(p.root, req.Table.OrgID, req.Table.ProjectID)
	if err != nil {
		return nil, err
	}
	creds := req.Credentials.Merge(p.defaults)
	logger := p.logger.With("table", req.Table.TableID, "file", req.FileName)

	session, err := p.opener.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	meta, err := session.OpenTable(ctx, req.Table.TableID)
	if err != nil {
		return nil, err
	}

	file, err := p.register(ctx, fileLoc, req)
	if err != nil {
		return nil, err
	}

	docs, err := p.loader.Load(ctx, req.FileName, req.Content)
	if err != nil {
		return nil, err
	}
	chunks, err := p.splitter.Split(docs, size, overlap)
	if err != nil {
		return nil, err
	}
	logger.Debug("file split", "chunks", len(chunks))

	title := p.inferTitle(ctx, logger, chunks, creds)

	titleEmbed, textEmbeds, err := p.embed(ctx, meta, title, chunks, creds)
	if err != nil {
		logger.Error("embedding failed", "err", err)
		return nil, core.ErrIngestion
	}
	if titleEmbed == nil || len(textEmbeds) == 0 || len(textEmbeds) != len(chunks) {
		logger.Error("missing embeddings", "title", titleEmbed != nil, "texts", len(textEmbeds), "chunks", len(chunks))
		return nil, core.ErrIngestion
	}

	payload := make([]generation.RowPayload, len(chunks))
	for i, chunk := range chunks {
		payload[i] = generation.RowPayload{Values: map[string]any{
			core.ColumnText:       chunk.Text,
			core.ColumnTextEmbed:  textEmbeds[i],
			core.ColumnTitle:      title,
			core.ColumnTitleEmbed: titleEmbed,
			core.ColumnFileID:     file.ID,
			core.ColumnPage:       chunk.Page,
		}}
	}
	result, err := p.executor.Execute(ctx, generation.Request{
		Table:       req.Table,
		Op:          generation.OpAdd,
		Rows:        payload,
		Reindex:     core.ReindexNo,
		Credentials: creds,
	})
	if err != nil {
		return nil, err
	}

	if _, err := session.CreateIndexes(ctx, meta.ID); err != nil {
		return nil, err
	}
	logger.Info("file ingested", "file_id", file.ID, "rows", len(result.Rows))
	return &UploadResult{File: file, Title: title, Rows: result.Rows}, nil
}

func chunking(req UploadRequest) (int, int, error) {
	size, overlap := req.ChunkSize, req.ChunkOverlap
	if size == 0 {
		size = DefaultChunkSize
		if overlap == 0 {
			overlap = DefaultChunkOverlap
		}
	}
	if size < 0 {
		return 0, 0, fmt.Errorf("%w: chunk size must be positive", core.ErrInvalidParameter)
	}
	if overlap < 0 || overlap >= size {
		return 0, 0, fmt.Errorf("%w: chunk overlap must be in [0, %d)", core.ErrInvalidParameter, size)
	}
	return size, overlap, nil
}

// register checksums the content and stores it in the file table.
func (p *Pipeline) register(ctx context.Context, loc core.Locator, req UploadRequest) (*core.FileRecord, error) {
	sum, err := Checksum(bytes.NewReader(req.Content), DefaultBlockSize)
	if err != nil {
		return nil, err
	}
	files, err := p.opener.OpenFiles(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer files.Close()
	return files.AddFile(ctx, &core.FileRecord{
		Name:     req.FileName,
		Content:  req.Content,
		Checksum: sum,
		Size:     int64(len(req.Content)),
	})
}

// inferTitle asks a chat model for the document title. Any failure yields an
// empty title.
func (p *Pipeline) inferTitle(ctx context.Context, logger *slog.Logger, chunks []core.Chunk, creds core.Credentials) string {
	var excerpt strings.Builder
	for _, c := range chunks[:min(titleExcerptChunks, len(chunks))] {
		excerpt.WriteString(c.Text)
	}

	models, err := p.llm.ListCandidateModels(ctx, p.titleModel, []ai.Capability{ai.CapabilityChat}, creds)
	if err != nil || len(models) == 0 {
		logger.Warn("no model for title extraction", "err", err)
		return ""
	}
	messages := []core.Message{
		{Role: core.RoleSystem, Content: titleSystemPrompt},
		{Role: core.RoleUser, Content: fmt.Sprintf(titlePrompt, excerpt.String())},
	}
	params := ai.SamplingParams{Temperature: &titleSampling, TopP: &titleSampling, MaxTokens: titleMaxTokens}
	out, err := p.llm.Predict(ctx, models[0], messages, params, creds)
	if err != nil {
		logger.Warn("title extraction failed", "model", models[0], "err", err)
		return ""
	}
	return stripQuotes(strings.TrimSpace(out))
}

func stripQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// embed computes the title and chunk embeddings for the table's Title Embed
// and Text Embed columns. Other embedding columns are left to the executor.
func (p *Pipeline) embed(ctx context.Context, meta *core.TableMeta, title string, chunks []core.Chunk, creds core.Credentials) ([]float32, [][]float32, error) {
	var (
		titleEmbed []float32
		textEmbeds [][]float32
	)
	for _, col := range meta.EmbeddingColumns() {
		if col.Gen == nil {
			continue
		}
		switch {
		case strings.EqualFold(col.ID, core.ColumnTitleEmbed):
			vecs, err := p.embedTexts(ctx, []string{title}, col, creds)
			if err != nil {
				return nil, nil, err
			}
			titleEmbed = vecs[0]
		case strings.EqualFold(col.ID, core.ColumnTextEmbed):
			texts := make([]string, len(chunks))
			for i, c := range chunks {
				texts[i] = c.Text
			}
			vecs, err := p.embedTexts(ctx, texts, col, creds)
			if err != nil {
				return nil, nil, err
			}
			textEmbeds = vecs
		}
	}
	return titleEmbed, textEmbeds, nil
}

func (p *Pipeline) embedTexts(ctx context.Context, texts []string, col core.ColumnSpec, creds core.Credentials) ([][]float32, error) {
	model := col.Gen.EmbeddingModel
	if _, ok := creds.For(model); !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrMissingCredential, core.ProviderOf(model))
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		batch := texts[start:min(start+p.batchSize, len(texts))]
		vecs, err := p.embedder.Embed(ctx, batch, model, creds)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("%w: want %d, got %d", ai.ErrEmbeddingCount, len(batch), len(vecs))
		}
		for _, v := range vecs {
			if col.VectorLength > 0 && len(v) != col.VectorLength {
				return nil, fmt.Errorf("%w: column %q expects %d, got %d", storage.ErrDimensionMismatch, col.ID, col.VectorLength, len(v))
			}
			out = append(out, core.NormalizeVector(v))
		}
	}
	return out, nil
}
