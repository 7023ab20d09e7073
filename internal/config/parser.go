package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/alexisbeaulieu97/genflow/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Format names a plan document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks the encoding from a file extension.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// ParsePlanFile loads a plan document from disk and validates it.
func ParsePlanFile(path string) (*PlanDocument, error) {
	format, ok := FormatForPath(path)
	if !ok {
		return nil, apperrors.NewValidationError("path", fmt.Sprintf("unsupported plan file extension %q", filepath.Ext(path)), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewParseError(path, 0, err)
	}
	doc, err := decode(bytes.NewReader(data), format, path)
	if err != nil {
		return nil, err
	}
	if err := ValidatePlan(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DecodePlan reads and validates a plan document from r.
func DecodePlan(r io.Reader, format Format) (*PlanDocument, error) {
	doc, err := decode(r, format, "request")
	if err != nil {
		return nil, err
	}
	if err := ValidatePlan(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decode(r io.Reader, format Format, source string) (*PlanDocument, error) {
	var doc PlanDocument
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, apperrors.NewParseError(source, 0, err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			if err == io.EOF {
				return nil, apperrors.NewValidationError("steps", "plan document is empty", nil)
			}
			return nil, apperrors.NewParseError(source, extractLine(err), err)
		}
	default:
		return nil, apperrors.NewValidationError("format", fmt.Sprintf("unsupported plan format %q", format), nil)
	}
	return &doc, nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
