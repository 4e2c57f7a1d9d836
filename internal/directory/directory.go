// Package directory resolves an institution to its contact counts per
// recipient category.
package directory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

type Entry struct {
	Institution models.Institution
	Counts      models.RecipientCounts
}

// Directory fails with models.ErrUnknownInstitution for ids it cannot resolve.
type Directory interface {
	Resolve(ctx context.Context, institutionID string) (*Entry, error)
}

type Static struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewStatic(entries ...Entry) *Static {
	s := &Static{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		s.entries[e.Institution.ID] = e
	}
	return s
}

func (s *Static) Resolve(ctx context.Context, institutionID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[institutionID]
	if !ok {
		return nil, fmt.Errorf("institution %s: %w", institutionID, models.ErrUnknownInstitution)
	}
	return &e, nil
}

func (s *Static) Put(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Institution.ID] = e
}

// Entries returns every entry ordered by institution id.
func (s *Static) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Institution.ID < out[j].Institution.ID })
	return out
}

func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

type seedFile struct {
	Institutions []seedEntry `yaml:"institutions"`
}

type seedEntry struct {
	models.Institution `yaml:",inline"`
	Contacts           models.RecipientCounts `yaml:"contacts"`
}

// LoadStatic reads a YAML seed of the form
//
//	institutions:
//	  - id: gs-001
//	    name: Govt School Aundh
//	    district: Pune
//	    state: Maharashtra
//	    contacts: {students: 50, parents: 50, staff: 5, emergency: 2}
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading directory seed: %w", err)
	}
	return ParseStatic(data)
}

func ParseStatic(data []byte) (*Static, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("error decoding directory seed: %w", err)
	}

	s := NewStatic()
	for i, e := range seed.Institutions {
		if e.ID == "" {
			return nil, fmt.Errorf("directory seed entry %d has no id", i)
		}
		if e.Contacts.Students < 0 || e.Contacts.Parents < 0 || e.Contacts.Staff < 0 || e.Contacts.Emergency < 0 {
			return nil, fmt.Errorf("directory seed entry %s has negative contact counts", e.ID)
		}
		s.Put(Entry{Institution: e.Institution, Counts: e.Contacts})
	}
	return s, nil
}
