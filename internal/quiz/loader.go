package quiz

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedFile is a quiz loaded from disk, keyed by its file path.
type SeedFile struct {
	Path string
	Quiz Quiz
}

// LoadDir walks rootDir and loads every *.yaml / *.yml file as a quiz.
// Files that fail to parse or validate are skipped with a warning.
func LoadDir(rootDir string) ([]SeedFile, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("seed path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("seed path %s is not a directory", rootDir)
	}

	var seeds []SeedFile
	err = filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		qz, err := loadFile(path)
		if err != nil {
			slog.Warn("skipping invalid quiz file", "path", path, "error", err)
			return nil
		}
		seeds = append(seeds, SeedFile{Path: path, Quiz: qz})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading seed quizzes: %w", err)
	}

	sort.Slice(seeds, func(i, j int) bool { return seeds[i].Path < seeds[j].Path })
	return seeds, nil
}

func loadFile(path string) (Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Quiz{}, err
	}

	var qz Quiz
	if err := yaml.Unmarshal(data, &qz); err != nil {
		return Quiz{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := qz.Validate(); err != nil {
		return Quiz{}, err
	}
	return qz, nil
}
