package probe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// ParseLocaleConf reads KEY=value lines. Parsing is best effort: comments,
// blank lines, lines without '=' and unknown keys are skipped, and values
// lose surrounding quotes.
func ParseLocaleConf(r io.Reader) (types.LocaleConfiguration, error) {
	var cfg types.LocaleConfiguration

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		cfg.Set(strings.TrimSpace(key), unquote(strings.TrimSpace(value)))
	}
	if err := scanner.Err(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReadLocaleConf parses the persisted locale configuration at path.
// A missing file is an unconfigured host, not an error.
func ReadLocaleConf(path string) (types.LocaleConfiguration, error) {
	f, err := os.Open(path)
	if err != nil {
		if isNotExist(err) {
			return types.LocaleConfiguration{}, nil
		}
		return types.LocaleConfiguration{}, fmt.Errorf("read locale configuration %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := ParseLocaleConf(f)
	if err != nil {
		return cfg, fmt.Errorf("read locale configuration %s: %w", path, err)
	}
	return cfg, nil
}

// FormatLocaleConf renders cfg in the form ParseLocaleConf accepts.
// Unset categories are omitted. Values are written verbatim inside double
// quotes; the parser strips quotes without unescaping, so nothing here may
// escape either.
func FormatLocaleConf(cfg types.LocaleConfiguration) string {
	var sb strings.Builder
	for _, c := range cfg.Categories() {
		fmt.Fprintf(&sb, "%s=\"%s\"\n", c.Key, c.Value)
	}
	return sb.String()
}

func unquote(value string) string {
	return strings.Trim(value, `"'`)
}
