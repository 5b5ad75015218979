package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/assembler"
	"docqa/internal/chunker"
	"docqa/internal/model"
	"docqa/internal/pkg/docparse"
	"docqa/internal/questions"
	"docqa/internal/retriever"
	"docqa/internal/settings"
	"docqa/internal/synthesizer"
	"docqa/internal/vectorindex"
)

const (
	defaultMaxUploadBytes = 20 << 20
	defaultEventLimit     = 50
	maxEventLimit         = 500
	eventWriteTimeout     = 3 * time.Second

	NoContextAnswer = "No relevant content was found in the indexed documents."
)

// SnapshotStore durably holds the documents and chunks behind the index.
type SnapshotStore interface {
	SaveDocument(ctx context.Context, doc model.Document, chunks []model.Chunk) error
	DeleteDocument(ctx context.Context, name string) error
	Clear(ctx context.Context) error
	Load(ctx context.Context) (model.IndexSnapshot, error)
	Ping(ctx context.Context) error
}

type EventStore interface {
	RecordEvent(ctx context.Context, ev *model.IndexEvent) error
	ListEvents(ctx context.Context, limit int) ([]model.IndexEvent, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev model.IndexEvent) error
}

type Embedder interface {
	EmbedQuery(ctx context.Context, modelName, text string) ([]float32, error)
	EmbedChunks(ctx context.Context, modelName string, texts []string) ([][]float32, error)
}

type RAGService struct {
	index         *vectorindex.Index
	settings      *settings.Store
	embedder      Embedder
	retriever     *retriever.Retriever
	synth         *synthesizer.Synthesizer
	questions     *questions.Generator
	store         SnapshotStore
	events        EventStore
	publisher     EventPublisher
	compareModels []string
	maxUpload     int64

	// writeMu orders store and index mutations identically
	writeMu sync.Mutex
	now     func() time.Time
}

func NewRAGService(
	index *vectorindex.Index,
	settingsStore *settings.Store,
	embedder Embedder,
	synth *synthesizer.Synthesizer,
	store SnapshotStore,
	events EventStore,
	publisher EventPublisher,
	compareModels []string,
	maxUploadBytes int64,
) *RAGService {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &RAGService{
		index:         index,
		settings:      settingsStore,
		embedder:      embedder,
		retriever:     retriever.New(embedder, index),
		synth:         synth,
		questions:     questions.New(index, synth),
		store:         store,
		events:        events,
		publisher:     publisher,
		compareModels: compareModels,
		maxUpload:     maxUploadBytes,
		now:           time.Now,
	}
}

// MaxUploadBytes is the per-file size limit enforced by Ingest.
func (s *RAGService) MaxUploadBytes() int64 {
	return s.maxUpload
}

// UploadFile is one uploaded part. Err is set when the transport could not
// read it; Ingest then reports it without touching the index.
type UploadFile struct {
	Name string
	Data []byte
	Err  error
}

type IngestResult struct {
	Name          string `json:"name"`
	Status        string `json:"status"`
	ChunksCreated int    `json:"chunksCreated"`
	Version       int    `json:"version,omitempty"`
	Error         string `json:"error,omitempty"`

	Err error `json:"-"`
}

const (
	IngestStatusOK    = "ok"
	IngestStatusError = "error"
)

// Ingest processes every file independently; a failing file never affects
// its siblings.
func (s *RAGService) Ingest(ctx context.Context, files []UploadFile) []IngestResult {
	results := make([]IngestResult, len(files))
	for i, f := range files {
		if f.Err != nil {
			log.Printf("ingest %q skipped: %v", f.Name, f.Err)
			results[i] = IngestResult{Name: f.Name, Status: IngestStatusError, Error: f.Err.Error(), Err: f.Err}
			continue
		}
		doc, err := s.ingestOne(ctx, f)
		if err != nil {
			log.Printf("ingest %q failed: %v", f.Name, err)
			results[i] = IngestResult{Name: f.Name, Status: IngestStatusError, Error: err.Error(), Err: err}
			continue
		}
		results[i] = IngestResult{Name: doc.Name, Status: IngestStatusOK, ChunksCreated: doc.ChunkCount, Version: doc.Version}
	}
	return results
}

func (s *RAGService) ingestOne(ctx context.Context, f UploadFile) (model.Document, error) {
	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(f.Name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return model.Document{}, fmt.Errorf("%w: file name is empty", model.ErrInvalidInput)
	}
	if int64(len(f.Data)) > s.maxUpload {
		return model.Document{}, fmt.Errorf("%w: file is %d bytes, limit is %d", model.ErrInvalidInput, len(f.Data), s.maxUpload)
	}

	parsed, err := docparse.Parse(name, f.Data)
	if err != nil {
		return model.Document{}, err
	}

	cfg := s.settings.Get()
	if err := s.index.CheckCompatible(name, cfg.EmbeddingModel, 0); err != nil {
		return model.Document{}, err
	}

	text, marks := parsed.Flatten()
	locators := make([]chunker.Locator, len(marks))
	for i, m := range marks {
		locators[i] = chunker.Locator{Offset: m.Offset, Page: m.Page, Section: m.Heading}
	}
	pieces, err := chunker.SplitWithLocators(text, locators, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return model.Document{}, err
	}
	if len(pieces) == 0 {
		return model.Document{}, fmt.Errorf("%w: %s produced no chunks", model.ErrInvalidInput, name)
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vectors, err := s.embedder.EmbedChunks(ctx, cfg.EmbeddingModel, texts)
	if err != nil {
		return model.Document{}, fmt.Errorf("embed chunks failed: %w", err)
	}

	now := s.now().UTC()
	chunks := make([]model.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = model.Chunk{
			ChunkID:      uuid.NewString(),
			DocumentName: name,
			Index:        p.Index,
			Text:         p.Text,
			Page:         p.Page,
			Section:      p.Section,
			Preview:      p.Preview,
			CreatedAt:    now,
			Vector:       vectors[i],
		}
	}
	doc := model.Document{
		Name:           name,
		Format:         parsed.Format,
		SizeBytes:      int64(len(f.Data)),
		ChunkCount:     len(chunks),
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		EmbeddingModel: cfg.EmbeddingModel,
		IngestedAt:     now,
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc.Version = 1
	if prev, ok := s.index.Document(name); ok {
		doc.Version = prev.Version + 1
	}
	if err := s.index.CheckCompatible(name, cfg.EmbeddingModel, len(vectors[0])); err != nil {
		return model.Document{}, err
	}
	if err := s.store.SaveDocument(ctx, doc, chunks); err != nil {
		return model.Document{}, fmt.Errorf("persist document failed: %w", err)
	}
	if err := s.index.ReplaceDocument(doc, chunks); err != nil {
		return model.Document{}, fmt.Errorf("index document failed: %w", err)
	}

	s.emit(ctx, model.IndexEvent{Type: model.IndexEventIngested, Document: name, Version: doc.Version, Chunks: doc.ChunkCount})
	return doc, nil
}

// Delete removes a document from the store and the index.
func (s *RAGService) Delete(ctx context.Context, name string) (model.Document, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc, ok := s.index.Document(name)
	if !ok {
		return model.Document{}, fmt.Errorf("%w: %s", model.ErrDocumentNotFound, name)
	}
	if err := s.store.DeleteDocument(ctx, name); err != nil {
		return model.Document{}, fmt.Errorf("delete stored document failed: %w", err)
	}
	if _, err := s.index.DeleteByDocument(name); err != nil {
		return model.Document{}, err
	}

	s.emit(ctx, model.IndexEvent{Type: model.IndexEventDeleted, Document: name, Version: doc.Version, Chunks: doc.ChunkCount})
	return doc, nil
}

type ClearResult struct {
	RemovedDocuments int `json:"removedDocuments"`
	RemovedChunks    int `json:"removedChunks"`
}

// Clear wipes the whole corpus, which also frees the embedding model choice.
func (s *RAGService) Clear(ctx context.Context) (ClearResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return ClearResult{}, fmt.Errorf("clear store failed: %w", err)
	}
	docs, chunks := s.index.Clear()

	s.emit(ctx, model.IndexEvent{Type: model.IndexEventCleared, Chunks: chunks})
	return ClearResult{RemovedDocuments: docs, RemovedChunks: chunks}, nil
}

type ReloadResult struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// Reload rebuilds the index from the durable snapshot. On failure the index
// keeps its previous contents.
func (s *RAGService) Reload(ctx context.Context) (ReloadResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, err := s.store.Load(ctx)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("load snapshot failed: %w", err)
	}
	if err := s.index.Rebuild(snap); err != nil {
		return ReloadResult{}, err
	}
	docs, chunks := s.index.Stats()

	s.emit(ctx, model.IndexEvent{Type: model.IndexEventReloaded, Chunks: chunks})
	return ReloadResult{Documents: docs, Chunks: chunks}, nil
}

type DocumentList struct {
	Documents      []model.Document `json:"documents"`
	TotalDocuments int              `json:"totalDocuments"`
	TotalChunks    int              `json:"totalChunks"`
}

func (s *RAGService) ListDocuments() DocumentList {
	docs := s.index.Documents()
	total := 0
	for _, d := range docs {
		total += d.ChunkCount
	}
	return DocumentList{Documents: docs, TotalDocuments: len(docs), TotalChunks: total}
}

type ChatInput struct {
	Question string
	TopK     int // 0 uses the configured value
	History  []model.Turn
}

// Chat answers a question from the corpus. When nothing relevant is found the
// result has NoContext set and no model call is made. Generation failures
// return the partial result with its sources alongside the error.
func (s *RAGService) Chat(ctx context.Context, input ChatInput) (*model.QueryResult, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", model.ErrInvalidInput)
	}
	cfg, err := s.queryConfig(input.TopK)
	if err != nil {
		return nil, err
	}

	ranked, err := s.retriever.Retrieve(ctx, question, cfg)
	if err != nil {
		return nil, err
	}
	assembled := assembler.Assemble(ranked, cfg.ContextWindow)
	if len(assembled) == 0 {
		return &model.QueryResult{
			Question:  question,
			Answer:    NoContextAnswer,
			Model:     cfg.Model,
			Sources:   []model.Source{},
			Citations: []model.Citation{},
			NoContext: true,
		}, nil
	}

	result, err := s.synth.Synthesize(ctx, question, input.History, assembled, cfg)
	if err != nil {
		log.Printf("chat generation failed: %v", err)
	}
	return result, err
}

type CompareInput struct {
	Question string
	TopK     int
	Models   []string // empty uses the configured comparison models
}

// CompareModels answers the same question with several models over one
// shared context and ranks the answers.
func (s *RAGService) CompareModels(ctx context.Context, input CompareInput) (*synthesizer.Comparison, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", model.ErrInvalidInput)
	}
	models := input.Models
	if len(models) == 0 {
		models = s.compareModels
	}
	cfg, err := s.queryConfig(input.TopK)
	if err != nil {
		return nil, err
	}

	ranked, err := s.retriever.Retrieve(ctx, question, cfg)
	if err != nil {
		return nil, err
	}
	assembled := assembler.Assemble(ranked, cfg.ContextWindow)
	if len(assembled) == 0 {
		return &synthesizer.Comparison{
			Question:  question,
			Results:   []synthesizer.ModelResult{},
			Sources:   []model.Source{},
			NoContext: true,
		}, nil
	}
	return s.synth.Compare(ctx, question, assembled, cfg, models)
}

func (s *RAGService) SuggestQuestions(ctx context.Context, n int) ([]string, error) {
	return s.questions.Generate(ctx, n, s.settings.Get())
}

func (s *RAGService) Config() model.RuntimeConfig {
	return s.settings.Get()
}

func (s *RAGService) UpdateSettings(patch model.RuntimeConfigPatch) (model.RuntimeConfig, error) {
	cfg, err := s.settings.Update(patch)
	if err != nil {
		return model.RuntimeConfig{}, err
	}
	log.Printf("runtime config updated to version %d", cfg.Version)
	return cfg, nil
}

func (s *RAGService) ListEvents(ctx context.Context, limit int) ([]model.IndexEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	events, err := s.events.ListEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.IndexEvent{}
	}
	return events, nil
}

// Ping checks the snapshot store.
func (s *RAGService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *RAGService) queryConfig(topK int) (model.RuntimeConfig, error) {
	cfg := s.settings.Get()
	if topK != 0 {
		if err := model.ValidateTopK(topK); err != nil {
			return model.RuntimeConfig{}, err
		}
		cfg.TopK = topK
	}
	return cfg, nil
}

// emit records ev without failing the caller: the publisher when one is
// configured, otherwise (or if publishing fails) the event store.
func (s *RAGService) emit(ctx context.Context, ev model.IndexEvent) {
	ev.OccurredAt = s.now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventWriteTimeout)
	defer cancel()

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, ev)
		if err == nil {
			return
		}
		log.Printf("publish index event failed, recording directly: %v", err)
	}
	if s.events == nil {
		return
	}
	if err := s.events.RecordEvent(ctx, &ev); err != nil {
		log.Printf("record index event failed: %v", err)
	}
}

// IsGenerationError reports whether err came from the language model call.
func IsGenerationError(err error) bool {
	return errors.Is(err, model.ErrGenerationTimeout) || errors.Is(err, model.ErrGenerationFailed)
}
