// Persister implements spec.md §4.8: serializing a property surface to a
// plain-text file of newline-delimited name/value pairs, and loading it
// back via the surface's Set so unknown or invalid entries are silently
// dropped — the file format survives property additions and removals
// across versions by construction.
package propsurface

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// SaveToFile writes every property in surface.EnumerateAll() (ordered by
// names, if the surface exposes one, otherwise in map iteration order) as
// "name\nvalue\n", with a blank line separating entries.
func SaveToFile(path string, surface Surface, names []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving property file %s: %w", path, err)
	}
	defer f.Close()

	values := surface.EnumerateAll()
	if names == nil {
		for name := range values {
			names = append(names, name)
		}
	}

	w := bufio.NewWriter(f)
	for i, name := range names {
		value, ok := values[name]
		if !ok {
			continue
		}
		if i > 0 {
			if _, err := w.WriteString("\n"); err != nil {
				return fmt.Errorf("saving property file %s: %w", path, err)
			}
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", name, value); err != nil {
			return fmt.Errorf("saving property file %s: %w", path, err)
		}
	}
	return w.Flush()
}

// LoadFromFile reads the name/value text format and applies each pair to
// surface.Set, logging (but not returning) failures for unknown or invalid
// entries — spec.md §7's "Configuration persistence failures are silent to
// the end user" since a missing/garbled file is typically a fresh install,
// not a correctness bug.
func LoadFromFile(path string, surface Surface, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		if logger != nil {
			logger.Debug("property file not present, skipping load", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		name, ok, err := nextNonBlankLine(scanner)
		if err != nil {
			return fmt.Errorf("loading property file %s: %w", path, err)
		}
		if !ok {
			break
		}
		// The value line immediately follows the name line — blank lines
		// separate entries, not a name from its own value.
		value := ""
		if scanner.Scan() {
			value = scanner.Text()
		}
		if err := surface.Set(name, value); err != nil {
			if logger != nil {
				logger.Debug("dropping unknown or invalid property on load",
					zap.String("name", name), zap.Error(err))
			}
		}
	}
	return scanner.Err()
}

// nextNonBlankLine advances past any number of blank lines and returns the
// next non-blank one, or ok=false at EOF.
func nextNonBlankLine(scanner *bufio.Scanner) (string, bool, error) {
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			return line, true, nil
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return "", false, err
	}
	return "", false, nil
}
