package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// gitignoreEntries keep session secrets and run artifacts out of version
// control.
var gitignoreEntries = []string{".looter/", ".env", "cookies.txt", "game_codes.txt", "looter.log"}

// ScaffoldProject creates looter.toml, a publishers.txt allowing every
// publisher, and .gitignore entries in dir. Files that already exist are
// left untouched apart from appending missing .gitignore entries.
// Returns the list of created or changed paths.
func ScaffoldProject(dir string) ([]string, error) {
	var created []string

	tomlPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		if _, initErr := InitFile(dir); initErr != nil {
			return created, initErr
		}
		created = append(created, tomlPath)
	}

	pubPath := filepath.Join(dir, "publishers.txt")
	if _, err := os.Stat(pubPath); os.IsNotExist(err) {
		if writeErr := os.WriteFile(pubPath, []byte(publishersTemplate), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", pubPath, writeErr)
		}
		created = append(created, pubPath)
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return created, fmt.Errorf("scaffold: read %s: %w", gitignorePath, err)
	}
	have := make(map[string]bool)
	for _, line := range strings.Split(string(existing), "\n") {
		have[strings.TrimSpace(line)] = true
	}
	content := string(existing)
	changed := false
	for _, entry := range gitignoreEntries {
		if have[entry] {
			continue
		}
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content += "\n"
		}
		content += entry + "\n"
		changed = true
	}
	if changed {
		if writeErr := os.WriteFile(gitignorePath, []byte(content), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	}

	return created, nil
}

const publishersTemplate = `# Publishers to claim external and in-game loot from, one per line.
# "all" claims from every publisher.
all
`
