// Package parser converts raw host payloads into domain structs. It is
// pure string/JSON -> struct conversion with no dependencies beyond a
// logger and the grid geometry, so it stays trivially testable.
package parser

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Service is the conversion surface the handlers depend on.
type Service interface {
	ParseMovement(args []string) (Movement, error)
	ParseRoster(args []string) (Roster, error)
	ParseLeader(args []string) (Leader, error)
	ParseSceneInfo(args []string) (SceneInfo, error)
}

// Parser implements Service.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

var _ Service = (*Parser)(nil)

// ParseXY parses a "x,y" coordinate pair. Host numbers may arrive as
// floats with trailing zeros ("32.00"); both forms are accepted.
func ParseXY(s string) (x, y float64, err error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("coordinate pair %q: need x,y", s)
	}
	x, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("coordinate pair %q: %w", s, err)
	}
	y, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("coordinate pair %q: %w", s, err)
	}
	return x, y, nil
}
