package sync

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sanchitsharma77/airweave-sub002/chunker"
	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"github.com/sanchitsharma77/airweave-sub002/embed"
	"github.com/sanchitsharma77/airweave-sub002/entity"
	"github.com/sanchitsharma77/airweave-sub002/worker"
)

// Embedder is the preparer's view of the embedding service.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string, withSparse bool) ([]embed.Embedding, error)
}

// Preparer derives embedded chunk points for the INSERT and UPDATE items of a
// batch. Per-entity failures skip the entity; provider-permanent failures
// terminate the sync.
type Preparer struct {
	registry   *entity.Registry
	semantic   *chunker.Semantic
	code       *chunker.Code
	embedder   Embedder
	withSparse bool
	cpu        *worker.CPUGate
	logger     *common.ContextLogger
}

// NewPreparer creates a preparer. withSparse is set when any destination
// maintains a keyword index.
func NewPreparer(registry *entity.Registry, tokenizer chunker.TokenCounter, embedder Embedder, withSparse bool, cpu *worker.CPUGate, logger *common.ContextLogger) *Preparer {
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{"component": "preparer"})
	}
	return &Preparer{
		registry:   registry,
		semantic:   chunker.NewSemantic(tokenizer, 0),
		code:       chunker.NewCode(tokenizer, 0),
		embedder:   embedder,
		withSparse: withSparse,
		cpu:        cpu,
		logger:     logger,
	}
}

// Prepare fills batch.Chunks for every INSERT and UPDATE parent. Entities
// that fail chunking are dropped from their action list and counted as
// skipped.
func (p *Preparer) Prepare(ctx context.Context, batch *ActionBatch) error {
	batch.Chunks = make(map[string][]destination.Point)

	parents := batch.WriteParents()
	texts := make([]string, 0, len(parents)*2)
	owners := make([]*entity.Entity, 0, len(parents)*2)
	failed := make(map[string]bool)

	for _, resolved := range parents {
		e := resolved.Entity
		pieces, err := p.chunkEntity(ctx, e)
		if err != nil {
			if common.IsKind(err, common.KindSyncFailure) {
				return err
			}
			p.logger.WithField("entity_id", e.SourceEntityID).WithError(err).Warn("skipping entity, chunking failed")
			failed[e.SourceEntityID] = true
			batch.Skipped++
			continue
		}
		for index, piece := range pieces {
			chunk := entity.NewChunk(e, index, piece)
			owners = append(owners, chunk)
			texts = append(texts, piece)
		}
	}

	dropFailed(batch, failed)

	if len(texts) == 0 {
		return nil
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts, p.withSparse)
	if err != nil {
		if common.IsKind(err, common.KindProviderPermanent) {
			return common.WrapError(common.KindSyncFailure, err, "embedding provider failure is permanent")
		}
		return err
	}

	for i, chunk := range owners {
		parentID := chunk.Chunk.ParentEntityID
		emb := embeddings[i]
		batch.Chunks[parentID] = append(batch.Chunks[parentID], destination.Point{
			Entity:    chunk,
			Embedding: &emb,
		})
	}
	return nil
}

// chunkEntity produces the chunk texts of one parent entity.
func (p *Preparer) chunkEntity(ctx context.Context, e *entity.Entity) ([]string, error) {
	text, err := p.embeddableText(e)
	if err != nil {
		return nil, err
	}

	var pieces []string
	err = p.cpu.Do(ctx, func() error {
		var chunkErr error
		if e.Kind == entity.KindCodeFile {
			pieces, chunkErr = p.code.Chunk(text)
		} else {
			pieces, chunkErr = p.semantic.Chunk(text)
		}
		return chunkErr
	})
	if err != nil {
		return nil, err
	}
	return pieces, nil
}

// embeddableText composes the text handed to the chunker: the entity name,
// its breadcrumb path, the embeddable payload fields, and the variant's own
// content.
func (p *Preparer) embeddableText(e *entity.Entity) (string, error) {
	descriptor, ok := p.registry.Lookup(e.TypeID)
	if !ok {
		return "", fmt.Errorf("entity type %q not registered", e.TypeID)
	}

	var b strings.Builder
	if e.Name != "" {
		b.WriteString(e.Name)
		b.WriteString("\n")
	}
	if len(e.Breadcrumbs) > 0 {
		names := make([]string, 0, len(e.Breadcrumbs))
		for _, crumb := range e.Breadcrumbs {
			names = append(names, crumb.Name)
		}
		b.WriteString(strings.Join(names, " / "))
		b.WriteString("\n")
	}
	for _, field := range descriptor.EmbeddableFields() {
		if value, ok := e.Payload[field]; ok && value != nil {
			fmt.Fprintf(&b, "%v\n", value)
		}
	}

	switch {
	case e.Chunk != nil:
		b.WriteString(e.Chunk.TextualRepresentation)
	case e.IsFile():
		// A file entity without a staged download is a programming error
		// upstream; fail the sync rather than silently index nothing.
		if e.File == nil || e.File.LocalPath == "" {
			return "", common.NewError(common.KindSyncFailure,
				"file entity %s has no local path", e.SourceEntityID)
		}
		content, err := os.ReadFile(e.File.LocalPath)
		if err != nil {
			return "", fmt.Errorf("failed to read staged file: %w", err)
		}
		b.Write(content)
	}
	return b.String(), nil
}

// dropFailed removes entities that failed preparation from the batch's
// action lists so no handler sees them.
func dropFailed(batch *ActionBatch, failed map[string]bool) {
	if len(failed) == 0 {
		return
	}
	keep := func(list []*Resolved) []*Resolved {
		kept := list[:0]
		for _, resolved := range list {
			if !failed[resolved.Entity.SourceEntityID] {
				kept = append(kept, resolved)
			}
		}
		return kept
	}
	batch.Inserts = keep(batch.Inserts)
	batch.Updates = keep(batch.Updates)
}
