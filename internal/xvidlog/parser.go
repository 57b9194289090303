// Package xvidlog reads XviD two-pass statistics logs into a per-frame
// classification sequence.
package xvidlog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bdougie/scxmask/internal/models"
)

// Header is the marker the first line of a stat log must begin with
const Header = "# XviD 2pass stat file"

// headerLines are skipped before frame data starts
const headerLines = 3

var (
	ErrMissingOrEmptyInput = errors.New("nonexistent or empty file passed")
	ErrUnrecognizedFormat  = errors.New("file doesn't seem to be an XviD log")
)

// Sequence is the ordered list of frame types found in a log. It is never
// modified after Parse returns.
type Sequence struct {
	types []models.FrameType
}

// NewSequence copies types into a new Sequence
func NewSequence(types ...models.FrameType) *Sequence {
	return &Sequence{types: append([]models.FrameType(nil), types...)}
}

// Len returns the number of classified frames
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.types)
}

// At returns the type at index i. ok is false when i is out of range.
func (s *Sequence) At(i int) (t models.FrameType, ok bool) {
	if i < 0 || i >= s.Len() {
		return models.Other, false
	}
	return s.types[i], true
}

// Keyframes returns the indices of every keyframe in order
func (s *Sequence) Keyframes() []int {
	var idx []int
	for i, t := range s.types {
		if t == models.Keyframe {
			idx = append(idx, i)
		}
	}
	return idx
}

// ParseFile reads the log at path and parses it
func ParseFile(path string) (*Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingOrEmptyInput, path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingOrEmptyInput, path)
	}
	return Parse(string(data))
}

// Parse classifies every non-empty line after the header block by its first byte
func Parse(content string) (*Sequence, error) {
	if content == "" {
		return nil, ErrMissingOrEmptyInput
	}

	lines := splitLines(content)
	if !strings.HasPrefix(lines[0], Header) {
		return nil, ErrUnrecognizedFormat
	}

	types := make([]models.FrameType, 0, max(len(lines)-headerLines, 0))
	for i := headerLines; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}
		switch line[0] {
		case 'i':
			types = append(types, models.Keyframe)
		case 'p':
			types = append(types, models.PredictedFrame)
		default:
			types = append(types, models.Other)
		}
	}

	return &Sequence{types: types}, nil
}

// splitLines splits on '\n' only. A terminating newline does not produce a
// trailing empty line, and '\r' stays part of the line.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
