// Package upload decides whether uploaded bytes are an accepted video source.
package upload

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/maauso/clipbatch/internal/media"
)

// sniffLen is the number of leading bytes inspected when the declared type
// is missing or generic.
const sniffLen = 3072

// ErrUnsupportedType is returned for media types outside the allow-list.
var ErrUnsupportedType = errors.New("unsupported media type")

// genericTypes carry no information about the content.
var genericTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/unknown":      true,
}

// Detect returns the kind of an upload from its declared content type,
// falling back to sniffing head when the declared type is missing or generic.
// A declared type outside the allow-list is rejected without sniffing.
func Detect(declared string, head []byte) (media.Kind, error) {
	declared = normalize(declared)
	if !genericTypes[declared] {
		if kind, ok := media.KindFromMIME(declared); ok {
			return kind, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, declared)
	}

	detected := mimetype.Detect(head)
	for m := detected; m != nil; m = m.Parent() {
		if kind, ok := media.KindFromMIME(m.String()); ok {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: detected %s", ErrUnsupportedType, detected.String())
}

// Inspect classifies the upload read from r. The returned reader yields the
// full content, including the bytes consumed for sniffing.
func Inspect(declared string, r io.Reader) (media.Kind, io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", nil, fmt.Errorf("read upload header: %w", err)
	}
	kind, err := Detect(declared, head)
	if err != nil {
		return "", nil, err
	}
	return kind, br, nil
}

// normalize strips parameters and lowercases a content type.
func normalize(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return strings.ToLower(contentType)
}
