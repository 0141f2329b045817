package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// ParseTemplate loads a pipeline declaration from disk and validates it.
func ParseTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, detecterrors.NewParseError(path, 0, err)
	}
	return ParseTemplateBytes(path, data)
}

// ParseTemplateBytes decodes and validates a pipeline declaration. Unknown
// template or node keys are rejected; params stay free-form. path is used for
// error reporting only.
func ParseTemplateBytes(path string, data []byte) (*Template, error) {
	var tpl Template
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tpl); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, detecterrors.NewParseError(path, 0, fmt.Errorf("template is empty"))
		}
		return nil, detecterrors.NewParseError(path, extractLine(err), err)
	}

	if err := ValidateTemplate(&tpl); err != nil {
		return nil, err
	}

	return &tpl, nil
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
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}
