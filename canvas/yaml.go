package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// MaxDocumentSize caps an imported YAML document.
const MaxDocumentSize = 1 << 20

// ErrDocumentTooLarge is returned for documents over MaxDocumentSize.
var ErrDocumentTooLarge = errors.New("canvas document too large")

// ParseYAML decodes and validates a workflow. Unknown fields are rejected so
// that typos do not silently drop data. A missing version is read as
// CurrentVersion.
func ParseYAML(r io.Reader) (*Workflow, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read canvas: %w", err)
	}
	if len(data) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var w Workflow
	if err := dec.Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Problems: []string{"document is empty"}}
		}
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidWorkflow, err)
	}
	if w.Version == 0 {
		w.Version = CurrentVersion
	}
	if err := Validate(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

// ExportYAML validates w and writes it with two-space indentation.
func ExportYAML(out io.Writer, w *Workflow) error {
	if err := Validate(w); err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(w); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
