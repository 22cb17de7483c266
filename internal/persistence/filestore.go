// Package persistence stores one JSON state file per bot id. Writes go to a
// temp file first and are renamed into place, so a crash mid-write never
// leaves a corrupt state behind.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

// FileStore implements domain.StateStore on a directory of JSON files.
type FileStore struct {
	dir string
}

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(botID string) string {
	// Bot ids come from config/uuid; flatten anything path-hostile.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, botID)
	return filepath.Join(s.dir, safe+".json")
}

// Load returns the persisted state for the bot, or (nil, nil) when none has
// been saved yet.
func (s *FileStore) Load(botID string) (*domain.BotPersistentState, error) {
	data, err := os.ReadFile(s.path(botID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: read state: %w", err)
	}
	var state domain.BotPersistentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("persistence: decode state for %s: %w", botID, err)
	}
	return &state, nil
}

// Save writes the state atomically: temp file in the same directory, fsync,
// then rename over the target.
func (s *FileStore) Save(state *domain.BotPersistentState) error {
	if state.BotID == "" {
		return fmt.Errorf("persistence: state has no bot id")
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: encode state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, state.BotID+".*.tmp")
	if err != nil {
		return fmt.Errorf("persistence: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persistence: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(state.BotID)); err != nil {
		return fmt.Errorf("persistence: rename state file: %w", err)
	}
	return nil
}
