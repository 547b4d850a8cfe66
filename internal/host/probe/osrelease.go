package probe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultDistro is reported when the host carries no os-release file.
const DefaultDistro = "Linux"

// ParseOSRelease returns the distribution name from os-release content,
// preferring NAME over PRETTY_NAME. It returns "" when neither is set.
func ParseOSRelease(r io.Reader) (string, error) {
	var name, pretty string

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
		switch strings.TrimSpace(key) {
		case "NAME":
			name = unquote(strings.TrimSpace(value))
		case "PRETTY_NAME":
			pretty = unquote(strings.TrimSpace(value))
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	if name != "" {
		return name, nil
	}
	return pretty, nil
}

// Distro reads the distribution name from the os-release file at path.
// A missing file or one without a name yields DefaultDistro.
func Distro(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if isNotExist(err) {
			return DefaultDistro, nil
		}
		return "", fmt.Errorf("read os-release %s: %w", path, err)
	}
	defer f.Close()

	name, err := ParseOSRelease(f)
	if err != nil {
		return "", fmt.Errorf("read os-release %s: %w", path, err)
	}
	if name == "" {
		return DefaultDistro, nil
	}
	return name, nil
}
