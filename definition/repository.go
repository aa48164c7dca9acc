package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Repository is a set of deployed process definitions, keyed by process ID.
//
// It is safe for concurrent use.
type Repository struct {
	m         sync.RWMutex
	processes map[string]*Process
}

// Add deploys process definitions, replacing any existing definitions with
// the same IDs.
func (r *Repository) Add(processes ...*Process) {
	r.m.Lock()
	defer r.m.Unlock()

	if r.processes == nil {
		r.processes = map[string]*Process{}
	}

	for _, p := range processes {
		r.processes[p.ID] = p
	}
}

// Get returns the process definition with the given ID.
func (r *Repository) Get(id string) (*Process, bool) {
	r.m.RLock()
	defer r.m.RUnlock()

	p, ok := r.processes[id]
	return p, ok
}

// IDs returns the IDs of all deployed processes, in order.
func (r *Repository) IDs() []string {
	r.m.RLock()
	defer r.m.RUnlock()

	ids := make([]string, 0, len(r.processes))
	for id := range r.processes {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// LoadFile parses the YAML document at path and deploys it.
func (r *Repository) LoadFile(path string) (*Process, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("definition: read %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	r.Add(p)

	return p, nil
}

// LoadDir deploys every *.yaml and *.yml document in dir.
//
// No definitions are deployed if any document is invalid.
func (r *Repository) LoadDir(dir string) ([]*Process, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("definition: read %s: %w", dir, err)
	}

	var processes []*Process

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, e.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("definition: read %s: %w", path, err)
		}

		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		processes = append(processes, p)
	}

	r.Add(processes...)

	return processes, nil
}
