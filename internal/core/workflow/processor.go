package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

// Document identifies the stored upload the workflow runs over. Text, when set,
// bypasses the text source.
type Document struct {
	InvoiceID string
	Path      string
	Format    string
	Text      string
}

type Options struct {
	Source               ports.TextSource
	Extractor            ports.FieldExtractor
	Duplicates           ports.DuplicateDetector
	CodeBook             *CodeBook
	POPrefix             string
	ExtractionConfidence float64
	Approval             ApprovalPolicy
}

// Processor runs the compiled invoice graph:
// ocr -> validation -> {coding -> approval ->} finalize.
type Processor struct {
	graph *Graph
	now   func() time.Time
}

func NewProcessor(opts Options) (*Processor, error) {
	if opts.Extractor == nil {
		return nil, errors.New("new processor: field extractor is required")
	}
	if opts.Approval.Tiers == nil {
		opts.Approval = DefaultApprovalPolicy(DefaultTouchlessThreshold)
	}

	g := NewGraph().
		AddStage(NewExtractionStage(opts.Source, opts.Extractor, opts.ExtractionConfidence)).
		AddStage(NewValidationStage(opts.Duplicates, opts.POPrefix)).
		AddStage(NewCodingStage(opts.CodeBook)).
		AddStage(NewApprovalStage(opts.Approval)).
		AddStage(NewFinalizeStage()).
		SetEntry(StageExtraction).
		AddEdge(StageExtraction, StageValidation).
		AddConditionalEdges(StageValidation, RouteAfterValidation, map[string]string{
			domain.RouteContinue:      StageCoding,
			domain.RouteClarification: StageFinalize,
			domain.RouteReject:        StageFinalize,
		}).
		AddEdge(StageCoding, StageApproval).
		AddEdge(StageApproval, StageFinalize).
		AddEdge(StageFinalize, End)

	if err := g.Compile(); err != nil {
		return nil, err
	}
	return &Processor{graph: g, now: time.Now}, nil
}

// Process runs one document through the workflow and returns the final record.
// The returned error covers graph-level failures only; stage failures are on the record.
func (p *Processor) Process(ctx context.Context, doc Document) (*domain.ProcessingRecord, error) {
	rec := domain.NewProcessingRecord(doc.InvoiceID, doc.Path, doc.Format)
	rec.DocumentText = doc.Text

	started := p.now()
	err := p.graph.Run(ctx, rec)
	rec.ProcessingTime = p.now().Sub(started).Seconds()
	if err != nil {
		return rec, fmt.Errorf("process invoice %s: %w", doc.InvoiceID, err)
	}
	return rec, nil
}
