package document

import (
	"fmt"
	"io"

	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/hjson/hjson-go/v4"
)

// Reader reads and decodes HJSON documents.
type Reader interface {
	ReadFile(pth string) ([]byte, error)
	ReadDocument(pth string) (map[string]any, error)
}

type reader struct {
	fileManager fileutil.FileManager
}

// NewReader ...
func NewReader(fileManager fileutil.FileManager) Reader {
	return &reader{fileManager: fileManager}
}

func (r reader) ReadFile(pth string) ([]byte, error) {
	f, err := r.fileManager.Open(pth)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", pth, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pth, err)
	}
	return data, nil
}

// ReadDocument decodes the HJSON object stored at pth.
func (r reader) ReadDocument(pth string) (map[string]any, error) {
	data, err := r.ReadFile(pth)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode decodes an HJSON object. Nested objects are map[string]any, lists
// are []any and numbers float64.
func Decode(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := hjson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to decode HJSON: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
