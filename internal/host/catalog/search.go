package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/hostsync/internal/infrastructure/process"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// DefaultPattern matches every package whose name starts with linux.
const DefaultPattern = "^linux"

// Searcher runs the package manager search and parses its output.
type Searcher struct {
	runner  process.Runner
	binary  string
	pattern string
	parser  *Parser
}

// NewSearcher creates a searcher invoking "<binary> -Ss <pattern>".
func NewSearcher(runner process.Runner, binary, pattern string, parser *Parser) *Searcher {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	if binary == "" {
		binary = "pacman"
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	if parser == nil {
		parser = NewParser()
	}
	return &Searcher{runner: runner, binary: binary, pattern: pattern, parser: parser}
}

// Search queries the repositories for kernel packages.
func (s *Searcher) Search(ctx context.Context) ([]types.InstallableKernel, error) {
	res, err := s.runner.Run(ctx, s.binary, "-Ss", s.pattern)
	if err != nil {
		return nil, fmt.Errorf("search packages: %w", err)
	}

	// pacman exits 1 when nothing matches
	if res.ExitCode == 1 && strings.TrimSpace(res.Stdout) == "" && strings.TrimSpace(res.Stderr) == "" {
		return []types.InstallableKernel{}, nil
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("search packages: %s -Ss exited with %d: %s",
			s.binary, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	return s.parser.Parse(res.Stdout), nil
}
