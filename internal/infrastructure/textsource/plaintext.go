package textsource

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

func DecodePlainText(_ context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errors.New("text document is not valid UTF-8")
	}
	return strings.TrimSpace(string(raw)), nil
}
