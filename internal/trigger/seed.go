// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
	"gopkg.in/yaml.v3"
)

const seedReloadDelay = 200 * time.Millisecond

// SeedFile is the YAML layout of a trigger seed file:
//
//	triggers:
//	  - workflowId: nightly-report
//	    type: SCHEDULE
//	    config:
//	      cronExpression: "0 2 * * *"
type SeedFile struct {
	Triggers []SeedTrigger `yaml:"triggers"`
}

type SeedTrigger struct {
	WorkflowID string         `yaml:"workflowId"`
	Type       string         `yaml:"type"`
	BrandID    string         `yaml:"brandId"`
	Config     map[string]any `yaml:"config"`
}

func (s SeedTrigger) spec() (domain.TriggerSpec, error) {
	config := []byte(`{}`)
	if len(s.Config) > 0 {
		body, err := json.Marshal(s.Config)
		if err != nil {
			return domain.TriggerSpec{}, fmt.Errorf("workflow %s: encode config: %w", s.WorkflowID, err)
		}
		config = body
	}
	return domain.TriggerSpec{
		Type:       domain.TriggerType(strings.ToUpper(strings.TrimSpace(s.Type))),
		WorkflowID: strings.TrimSpace(s.WorkflowID),
		BrandID:    strings.TrimSpace(s.BrandID),
		Config:     config,
	}, nil
}

// Seeder keeps the registry in line with a seed file. Triggers it registered
// and that disappear from the file are deactivated.
type Seeder struct {
	path     string
	registry *Registry
	logger   *slog.Logger

	mu     sync.Mutex
	seeded map[string]struct{}
}

func NewSeeder(path string, registry *Registry, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		path:     path,
		registry: registry,
		logger:   logger,
		seeded:   make(map[string]struct{}),
	}
}

func LoadSeedFile(path string) (SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("read trigger seed %s: %w", path, err)
	}
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return SeedFile{}, fmt.Errorf("parse trigger seed %s: %w", path, err)
	}
	return file, nil
}

// Apply registers every trigger in the file. An unchanged trigger is left
// alone; a changed one is deactivated and registered again.
func (s *Seeder) Apply(ctx context.Context) error {
	file, err := LoadSeedFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	want := make(map[string]struct{}, len(file.Triggers))

	for _, entry := range file.Triggers {
		spec, err := entry.spec()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if spec.WorkflowID == "" {
			errs = append(errs, errors.New("trigger seed entry without workflowId"))
			continue
		}
		want[spec.WorkflowID] = struct{}{}

		current, err := s.registry.store.GetActiveByWorkflow(ctx, spec.WorkflowID)
		switch {
		case err == nil && sameTrigger(current, spec):
			continue
		case err == nil:
			if _, err := s.registry.Deactivate(ctx, spec.WorkflowID); err != nil {
				errs = append(errs, fmt.Errorf("workflow %s: replace trigger: %w", spec.WorkflowID, err))
				continue
			}
		case !errors.Is(err, domain.ErrTriggerNotFound):
			errs = append(errs, fmt.Errorf("workflow %s: %w", spec.WorkflowID, err))
			continue
		}

		if _, err := s.registry.Register(ctx, spec); err != nil {
			errs = append(errs, fmt.Errorf("workflow %s: %w", spec.WorkflowID, err))
			continue
		}
		s.logger.Info("seeded trigger", "workflow_id", spec.WorkflowID, "type", spec.Type)
	}

	for workflowID := range s.seeded {
		if _, keep := want[workflowID]; keep {
			continue
		}
		if _, err := s.registry.Deactivate(ctx, workflowID); err != nil && !errors.Is(err, domain.ErrTriggerNotFound) {
			errs = append(errs, fmt.Errorf("workflow %s: remove trigger: %w", workflowID, err))
			continue
		}
		s.logger.Info("unseeded trigger", "workflow_id", workflowID)
	}
	s.seeded = want

	return errors.Join(errs...)
}

// Watch re-applies the seed file whenever it changes, until ctx is done. The
// parent directory is watched so editors that replace the file are seen.
func (s *Seeder) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("trigger seed watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("trigger seed watcher add %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	reload := time.NewTimer(seedReloadDelay)
	if !reload.Stop() {
		<-reload.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				reload.Reset(seedReloadDelay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("trigger seed watcher error", "error", err)
		case <-reload.C:
			if err := s.Apply(ctx); err != nil {
				s.logger.Error("trigger seed reload failed", "path", s.path, "error", err)
				continue
			}
			s.logger.Info("trigger seed reloaded", "path", s.path)
		}
	}
}

func sameTrigger(current domain.TriggerRecord, spec domain.TriggerSpec) bool {
	if current.Type != spec.Type || current.BrandID != spec.BrandID {
		return false
	}
	var a, b any
	if err := json.Unmarshal(current.Config, &a); err != nil {
		return false
	}
	if err := json.Unmarshal(spec.Config, &b); err != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}
