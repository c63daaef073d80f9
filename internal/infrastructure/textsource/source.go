// Package textsource turns stored invoice documents into plain text, one decoder per format.
package textsource

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

// Decoder converts the raw bytes of one document format to text.
type Decoder interface {
	Decode(ctx context.Context, raw []byte) (string, error)
}

type DecoderFunc func(ctx context.Context, raw []byte) (string, error)

func (f DecoderFunc) Decode(ctx context.Context, raw []byte) (string, error) { return f(ctx, raw) }

// Source reads documents from object storage and dispatches on the document format.
type Source struct {
	storage  ports.ObjectStorage
	decoders map[string]Decoder
}

func New(storage ports.ObjectStorage) *Source {
	return &Source{
		storage: storage,
		decoders: map[string]Decoder{
			"txt": DecoderFunc(DecodePlainText),
			"pdf": DecoderFunc(DecodePDF),
			"xml": DecoderFunc(DecodeXML),
		},
	}
}

// Register adds or replaces the decoder for a format, e.g. image OCR when configured.
func (s *Source) Register(format string, d Decoder) *Source {
	s.decoders[strings.ToLower(format)] = d
	return s
}

func (s *Source) Text(ctx context.Context, documentPath, documentFormat string) (string, error) {
	format := strings.ToLower(strings.TrimPrefix(documentFormat, "."))
	decoder, ok := s.decoders[format]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "read document text", fmt.Errorf("no decoder for format %q", format))
	}

	reader, err := s.storage.Open(ctx, documentPath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	text, err := decoder.Decode(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", format, err)
	}
	return strings.TrimSpace(text), nil
}
