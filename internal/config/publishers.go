package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadPublishers reads the publisher allow-list: one name per line, blank
// lines and #-comments ignored. A missing file or an "all" entry returns
// nil, meaning every publisher is allowed.
func ReadPublishers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open publishers %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.EqualFold(line, "all") {
			return nil, nil
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: read publishers %s: %w", path, err)
	}
	return out, nil
}
