package textsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/disintegration/imaging"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/infrastructure/resilience"
)

// Azure's printed-text OCR rejects images above 4200px on either side.
const maxOCRDimension = 3200

type printedTextRecognizer interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, image io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// ImageOCR preprocesses scans with imaging and reads them with Azure Computer Vision.
type ImageOCR struct {
	client   printedTextRecognizer
	executor *resilience.Executor
}

func NewImageOCR(endpoint, apiKey string, executor *resilience.Executor) (*ImageOCR, error) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("azure vision endpoint and key are required")
	}
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)
	return &ImageOCR{client: client, executor: executor}, nil
}

func (o *ImageOCR) Decode(ctx context.Context, raw []byte) (string, error) {
	prepared, err := PrepareScan(raw)
	if err != nil {
		return "", err
	}

	result, err := resilience.Do(ctx, o.executor, resilience.OpOCRAzure, func(ctx context.Context) (computervision.OcrResult, error) {
		return o.client.RecognizePrintedTextInStream(
			ctx,
			true,
			io.NopCloser(bytes.NewReader(prepared)),
			computervision.OcrLanguages(computervision.En),
		)
	}, classifyAzureError)
	if err != nil {
		if classifyAzureError(err).Retryable {
			return "", domain.WrapError(domain.ErrTemporary, "azure ocr", err)
		}
		return "", fmt.Errorf("azure ocr: %w", err)
	}
	return strings.Join(ocrLines(result), "\n"), nil
}

// PrepareScan normalizes a photographed or scanned invoice for OCR: grayscale,
// extra contrast, light sharpening, bounded size, re-encoded as JPEG.
func PrepareScan(raw []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "prepare scan", err)
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	if b := img.Bounds(); b.Dx() > maxOCRDimension || b.Dy() > maxOCRDimension {
		img = imaging.Fit(img, maxOCRDimension, maxOCRDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode prepared scan: %w", err)
	}
	return buf.Bytes(), nil
}

func ocrLines(result computervision.OcrResult) []string {
	var lines []string
	if result.Regions == nil {
		return lines
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			if len(words) > 0 {
				lines = append(lines, strings.Join(words, " "))
			}
		}
	}
	return lines
}

func classifyAzureError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var detailed autorest.DetailedError
	if errors.As(err, &detailed) {
		code, _ := detailed.StatusCode.(int)
		switch {
		case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case code >= http.StatusBadRequest:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
