// Package catalog turns repository search output into installable kernel
// entries.
//
// The search output is a sequence of header lines ("core/linux 6.6.1-arch1-1")
// each optionally followed by an indented "Description:" line. The parser is
// a two-state machine: it either waits for a header, or has just accepted
// one and waits for that header's description (or the next header).
package catalog

import (
	"strings"

	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// DefaultRepositories are the repository sections recognized in headers.
var DefaultRepositories = []string{"core", "extra", "community", "multilib"}

// Package suffixes that never denote a bootable kernel.
var discardSuffixes = []string{"-headers", "-docs"}

const descriptionLabel = "Description:"

type state int

const (
	awaitingHeader state = iota
	awaitingDescriptionOrHeader
)

// Parser parses repository search output.
type Parser struct {
	prefixes []string
}

// NewParser creates a parser that accepts headers from the given
// repositories, or DefaultRepositories when none are given.
func NewParser(repositories ...string) *Parser {
	if len(repositories) == 0 {
		repositories = DefaultRepositories
	}
	prefixes := make([]string, 0, len(repositories))
	for _, repo := range repositories {
		prefixes = append(prefixes, repo+"/")
	}
	return &Parser{prefixes: prefixes}
}

// Parse parses raw with the default repositories.
func Parse(raw string) []types.InstallableKernel {
	return NewParser().Parse(raw)
}

// Parse extracts installable kernels from raw search output. Malformed and
// unrelated lines are skipped; parsing never fails.
func (p *Parser) Parse(raw string) []types.InstallableKernel {
	entries := []types.InstallableKernel{}
	st := awaitingHeader
	current := ""

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")

		if p.isHeader(line) {
			st, current = awaitingHeader, ""
			entry, ok := parseHeader(line)
			if !ok {
				continue
			}
			entries = append(entries, entry)
			st, current = awaitingDescriptionOrHeader, entry.PackageName
			continue
		}

		if st != awaitingDescriptionOrHeader {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, descriptionLabel) {
			continue
		}
		_, text, _ := strings.Cut(trimmed, ":")
		attachDescription(entries, current, strings.TrimSpace(text))
		st, current = awaitingHeader, ""
	}

	return entries
}

func (p *Parser) isHeader(line string) bool {
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// parseHeader reads "repo/name version [marker...]". It rejects headers
// with too few fields and packages that are not kernels.
func parseHeader(line string) (types.InstallableKernel, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return types.InstallableKernel{}, false
	}

	repo, name, _ := strings.Cut(fields[0], "/")
	if name == "" || isDiscarded(name) {
		return types.InstallableKernel{}, false
	}

	entry := types.InstallableKernel{
		PackageName: name,
		Version:     fields[1],
		Flavor:      Flavor(name),
		Repository:  repo,
	}
	for _, marker := range fields[2:] {
		if strings.HasPrefix(marker, "[installed") {
			entry.Installed = true
		}
	}
	return entry, true
}

// attachDescription sets the description of the most recent entry named
// name. Scanning from the end keeps the last duplicate authoritative.
func attachDescription(entries []types.InstallableKernel, name, text string) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].PackageName == name {
			entries[i].Description = text
			return
		}
	}
}

func isDiscarded(name string) bool {
	for _, suffix := range discardSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Flavor classifies a kernel package by name.
func Flavor(name string) string {
	switch {
	case strings.Contains(name, types.FlavorLTS):
		return types.FlavorLTS
	case strings.Contains(name, types.FlavorRT):
		return types.FlavorRT
	case strings.Contains(name, types.FlavorZen):
		return types.FlavorZen
	case name == "linux":
		return types.FlavorMain
	default:
		return types.FlavorOther
	}
}

// IsKernelPackage reports whether name would survive parsing as a
// kernel entry.
func IsKernelPackage(name string) bool {
	return strings.HasPrefix(name, "linux") && !isDiscarded(name)
}
