package integration

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeOptions copies options into target, which must be a pointer to a
// struct with yaml tags. Keys that target does not declare are rejected.
func DecodeOptions(options map[string]any, target any) error {
	if len(options) == 0 {
		return nil
	}

	raw, err := yaml.Marshal(options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}
