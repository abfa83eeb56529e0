// Package seed loads initial state store entries from a YAML document.
//
//	entries:
//	  - scope: environment
//	    organization_id: org-1
//	    project_id: proj-1
//	    environment_id: env-1
//	    key: quota
//	    value: {limit: 10}
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Entry is one seeded key.
type Entry struct {
	Scope          domain.Scope `yaml:"scope"`
	OrganizationID string       `yaml:"organization_id"`
	ProjectID      string       `yaml:"project_id"`
	EnvironmentID  string       `yaml:"environment_id"`
	Key            string       `yaml:"key"`
	Value          any          `yaml:"value"`
}

// Namespace returns the namespace the entry is written to.
func (e Entry) Namespace() domain.Namespace {
	return domain.Namespace{
		Scope:          e.Scope,
		OrganizationID: e.OrganizationID,
		ProjectID:      e.ProjectID,
		EnvironmentID:  e.EnvironmentID,
	}
}

// File is the document layout.
type File struct {
	Entries []Entry `yaml:"entries"`
}

// Parse decodes a seed document.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	for i, e := range f.Entries {
		if e.Key == "" {
			return nil, fmt.Errorf("entry %d: key is required", i)
		}
		if err := e.Namespace().Validate(); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, e.Key, err)
		}
	}
	return &f, nil
}

// Apply writes every entry that does not exist yet and returns how many were written.
// Existing keys are left untouched.
func Apply(ctx context.Context, store ports.VersionedStore, f *File) (int, error) {
	written := 0
	for _, e := range f.Entries {
		_, err := store.CompareAndSwap(ctx, e.Namespace(), e.Key, e.Value, domain.NoVersion)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return written, fmt.Errorf("failed to seed %s/%s: %w", e.Namespace(), e.Key, err)
		}
		written++
	}
	return written, nil
}

// LoadFile parses the seed file at path and applies it to store.
func LoadFile(ctx context.Context, store ports.VersionedStore, path string) (int, error) {
	fh, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return 0, err
	}
	return Apply(ctx, store, f)
}
