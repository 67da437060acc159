package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultFactory creates parsers for supported formats
type DefaultFactory struct {
	parsers map[string]Parser
}

// NewFactory creates a new parser factory with default parsers
func NewFactory() Factory {
	f := &DefaultFactory{
		parsers: make(map[string]Parser),
	}
	f.registerParser(NewEPUBParser())
	return f
}

func (f *DefaultFactory) registerParser(p Parser) {
	for _, format := range p.SupportedFormats() {
		f.parsers[strings.ToLower(format)] = p
	}
}

// GetParser returns a parser for the given format
func (f *DefaultFactory) GetParser(format string) (Parser, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	p, ok := f.parsers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return p, nil
}

// FormatOf returns the lower-cased extension of a file name without the dot
func FormatOf(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}
