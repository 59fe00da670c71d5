// Package file provides file-based persistence for local development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of a
// directory of JSON files. A single process-wide mutex serializes all
// access; this backend is for development and tests, not production.
type Persistence struct {
	root string
	mu   sync.RWMutex

	automationRepo *AutomationRepository
	versionRepo    *VersionRepository
	triggerRepo    *TriggerRepository
	runRepo        *RunRepository
	nodeRunRepo    *NodeRunRepository
}

// NewPersistence creates the directory layout under root. The root
// may be given as a plain path or a file:// URL.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	for _, dir := range []string{"automations", "versions", "triggers", "runs", "runs_by_occurrence", "node_runs"} {
		if err := os.MkdirAll(filepath.Join(cleanRoot, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	p := &Persistence{root: cleanRoot}
	p.automationRepo = &AutomationRepository{persistence: p}
	p.versionRepo = &VersionRepository{persistence: p}
	p.triggerRepo = &TriggerRepository{persistence: p}
	p.runRepo = &RunRepository{persistence: p}
	p.nodeRunRepo = &NodeRunRepository{persistence: p}

	return p, nil
}

func (p *Persistence) AutomationRepository() persistence.AutomationRepository { return p.automationRepo }
func (p *Persistence) VersionRepository() persistence.VersionRepository       { return p.versionRepo }
func (p *Persistence) TriggerRepository() persistence.TriggerRepository       { return p.triggerRepo }
func (p *Persistence) RunRepository() persistence.RunRepository               { return p.runRepo }
func (p *Persistence) NodeRunRepository() persistence.NodeRunRepository       { return p.nodeRunRepo }

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) path(dir, id string) string {
	return filepath.Join(p.root, dir, id+".json")
}

// writeJSON persists an entity. Caller must hold the write lock.
func (p *Persistence) writeJSON(dir, id string, entity any) error {
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, id, err)
	}

	if err := os.WriteFile(p.path(dir, id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", dir, id, err)
	}

	return nil
}

// readJSON loads an entity; notFound is returned when the file does
// not exist. Caller must hold at least the read lock.
func (p *Persistence) readJSON(dir, id string, entity any, notFound error) error {
	data, err := os.ReadFile(p.path(dir, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound
		}

		return fmt.Errorf("failed to read %s/%s: %w", dir, id, err)
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", dir, id, err)
	}

	return nil
}

// listIDs returns the entity ids stored in a directory.
func (p *Persistence) listIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, dir))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}
