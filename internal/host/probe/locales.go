package probe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GriffinCanCode/hostsync/internal/infrastructure/process"
)

// ParseManifest returns the locales the generation manifest offers:
// the first field of every uncommented line that mentions UTF-8.
func ParseManifest(r io.Reader) ([]string, error) {
	locales := []string{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "UTF-8") {
			continue
		}
		locales = append(locales, strings.Fields(line)[0])
	}
	return locales, scanner.Err()
}

// AvailableLocales reads the generation manifest at path.
func AvailableLocales(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read locale manifest %s: %w", path, err)
	}
	defer f.Close()

	locales, err := ParseManifest(f)
	if err != nil {
		return nil, fmt.Errorf("read locale manifest %s: %w", path, err)
	}
	return locales, nil
}

// ParseLocaleList filters `locale -a` output down to UTF-8 locales and
// spells the suffix as .UTF-8.
func ParseLocaleList(output string) []string {
	locales := []string{}
	for _, line := range strings.Split(output, "\n") {
		name := strings.TrimSpace(line)
		switch {
		case strings.HasSuffix(name, ".utf8"):
			locales = append(locales, strings.TrimSuffix(name, ".utf8")+".UTF-8")
		case strings.HasSuffix(name, ".UTF-8"):
			locales = append(locales, name)
		}
	}
	return locales
}

// GeneratedLocales asks the locale utility which locales are compiled.
func GeneratedLocales(ctx context.Context, runner process.Runner, localeBin string) ([]string, error) {
	res, err := runner.Run(ctx, localeBin, "-a")
	if err != nil {
		return nil, fmt.Errorf("list generated locales: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("list generated locales: %s -a exited with %d: %s",
			localeBin, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return ParseLocaleList(res.Stdout), nil
}
