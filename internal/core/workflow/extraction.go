package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

const (
	StageExtraction = "ocr"

	DefaultExtractionConfidence = 0.98
)

// ExtractionStage reads the document text and asks the field extractor for
// structured invoice attributes.
type ExtractionStage struct {
	source     ports.TextSource
	extractor  ports.FieldExtractor
	confidence float64
}

func NewExtractionStage(source ports.TextSource, extractor ports.FieldExtractor, confidence float64) *ExtractionStage {
	if confidence <= 0 || confidence > 1 {
		confidence = DefaultExtractionConfidence
	}
	return &ExtractionStage{
		source:     source,
		extractor:  extractor,
		confidence: confidence,
	}
}

func (s *ExtractionStage) Name() string { return StageExtraction }

func (s *ExtractionStage) Run(ctx context.Context, rec *domain.ProcessingRecord) error {
	fields, err := s.extract(ctx, rec)
	if err != nil {
		rec.AddProcessingError("OCR error: " + err.Error())
		rec.ConfidenceScore = 0
		rec.CurrentStep = StageExtraction + "_failed"
		return nil
	}

	rec.ApplyExtraction(fields)
	rec.ConfidenceScore = s.confidence
	rec.CurrentStep = domain.StepOCRCompleted
	return nil
}

func (s *ExtractionStage) extract(ctx context.Context, rec *domain.ProcessingRecord) (domain.ExtractedFields, error) {
	text := rec.DocumentText
	if strings.TrimSpace(text) == "" {
		if s.source == nil {
			return domain.ExtractedFields{}, errors.New("no text source configured")
		}
		var err error
		text, err = s.source.Text(ctx, rec.DocumentPath, rec.DocumentFormat)
		if err != nil {
			return domain.ExtractedFields{}, fmt.Errorf("read document text: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			return domain.ExtractedFields{}, errors.New("document contains no text")
		}
		rec.DocumentText = text
	}

	fields, err := s.extractor.ExtractFields(ctx, text)
	if err != nil {
		return domain.ExtractedFields{}, fmt.Errorf("extract fields: %w", err)
	}
	return fields, nil
}
