package model

import (
	"strings"
	"sync"

	"github.com/Icinga/icingaweb2-sub007/internal/errors"
)

// RuntimeState holds the raw body of one status file block. Attributes are
// extracted on first access and cached; Resolve parses the whole body once.
type RuntimeState struct {
	// Type is the state type from the block header, e.g. "hoststatus"
	Type string
	// Owner points back to the record the block was attached to
	Owner Handle

	mu       sync.Mutex
	raw      string
	cache    map[string]string
	resolved bool
	scans    int
}

// NewRuntimeState wraps a raw block body
func NewRuntimeState(stateType, raw string) *RuntimeState {
	return &RuntimeState{
		Type:  stateType,
		raw:   raw,
		cache: make(map[string]string),
	}
}

// Raw returns the unparsed block body
func (s *RuntimeState) Raw() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Get returns the value of an attribute. A key absent from the body yields
// an unknown property error; a present but empty value yields "".
func (s *RuntimeState) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache[name]; ok {
		return v, nil
	}
	if s.resolved {
		return "", errors.UnknownProperty(name)
	}

	s.scans++
	v, ok := scanAttribute(s.raw, name)
	if !ok {
		return "", errors.UnknownProperty(name)
	}
	s.cache[name] = v
	return v, nil
}

// Has reports whether Get would succeed
func (s *RuntimeState) Has(name string) bool {
	_, err := s.Get(name)
	return err == nil
}

// Value returns the attribute or "" when it is absent
func (s *RuntimeState) Value(name string) string {
	v, _ := s.Get(name)
	return v
}

// Resolve parses every attribute of the body once and returns a copy of the map
func (s *RuntimeState) Resolve() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.resolved {
		s.scans++
		for _, line := range strings.Split(s.raw, "\n") {
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			if _, cached := s.cache[key]; !cached {
				s.cache[key] = strings.TrimSpace(value)
			}
		}
		s.resolved = true
	}

	out := make(map[string]string, len(s.cache))
	for k, v := range s.cache {
		out[k] = v
	}
	return out
}

// Resolved reports whether Resolve ran
func (s *RuntimeState) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Scans returns how many times the raw body was scanned
func (s *RuntimeState) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// scanAttribute finds "name=" at the start of a line of raw and returns the
// rest of that line, trimmed.
func scanAttribute(raw, name string) (string, bool) {
	needle := name + "="
	pos := -1
	if strings.HasPrefix(raw, needle) {
		pos = 0
	} else if i := strings.Index(raw, "\n"+needle); i >= 0 {
		pos = i + 1
	}
	if pos < 0 {
		return "", false
	}
	rest := raw[pos+len(needle):]
	if end := strings.IndexByte(rest, '\n'); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}
