package fusion

import (
	"github.com/edaniels/golog"
	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
)

// detectorMap stores registered detector entries by name. More detectors
// than the two a node requires may be registered; the engine is built from
// an ordered subset.
type detectorMap map[string]Entry

// Registry holds the detectors known to a node.
type Registry struct {
	dm     detectorMap
	logger golog.Logger
}

// NewRegistry returns an empty detector registry.
func NewRegistry(logger golog.Logger) *Registry {
	return &Registry{dm: detectorMap{}, logger: logger}
}

// Register adds a detector entry under its name.
func (r *Registry) Register(entry Entry) error {
	if entry.Detect == nil {
		return errors.Errorf("cannot register a nil detector: %s", entry.Name)
	}
	if _, old := r.dm[entry.Name]; old {
		r.logger.Infof("overwriting the detector with name: %s", entry.Name)
	}
	r.dm[entry.Name] = entry
	return nil
}

// Lookup returns the detector entry registered under name.
func (r *Registry) Lookup(name string) (Entry, error) {
	entry, ok := r.registeredDetectors()[name]
	if !ok {
		return Entry{}, errors.Errorf("no detector with name %q", name)
	}
	return entry, nil
}

// registeredDetectors returns a copy of the registered detectors.
func (r *Registry) registeredDetectors() detectorMap {
	copied, err := copystructure.Copy(r.dm)
	if err != nil {
		panic(err)
	}
	return copied.(detectorMap)
}

// NewEngineFor builds a fusion engine from the named detectors, in the given
// order.
func (r *Registry) NewEngineFor(names []string, floor float64) (*Engine, error) {
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entry, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return NewEngine(entries, floor, r.logger)
}
