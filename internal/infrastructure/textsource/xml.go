package textsource

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// DecodeXML flattens an e-invoice (UBL, XRechnung, ...) into "Element: value" lines.
// Non-UTF-8 encodings declared in the prolog are honoured.
func DecodeXML(_ context.Context, raw []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		out   strings.Builder
		stack []string
		text  strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if value := strings.TrimSpace(text.String()); value != "" && len(stack) > 0 {
				fmt.Fprintf(&out, "%s: %s\n", stack[len(stack)-1], strings.Join(strings.Fields(value), " "))
			}
			text.Reset()
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return out.String(), nil
}
