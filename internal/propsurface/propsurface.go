// Package propsurface implements the property reflection layer of spec.md
// §3 "Property surface": a uniform get/set/enumerate surface over
// string->string values, used both by the JSON HTTP endpoints and by the
// disk-backed configuration persister.
package propsurface

import (
	"fmt"
	"strings"

	"cam2web/internal/xerror"
)

// Surface is the semantic interface spec.md §3 describes. Implementations
// back it with whatever subsystem they expose — a camera backend, the
// application's own settings, the admin server's single status property.
type Surface interface {
	Get(name string) (string, error)
	Set(name, value string) error
	EnumerateAll() map[string]string
}

// IsSubproperty reports whether name denotes a subproperty (e.g.
// "brightness:min"), per spec.md §3.
func IsSubproperty(name string) bool {
	return strings.Contains(name, ":")
}

// SplitSubproperty splits "base:sub" into ("base", "sub", true), or
// returns (name, "", false) when name is not a subproperty.
func SplitSubproperty(name string) (base, sub string, ok bool) {
	i := strings.Index(name, ":")
	if i < 0 {
		return name, "", false
	}
	return name[:i], name[i+1:], true
}

// Property describes one entry exposed by a MapSurface, including its
// read-only subproperties (min/max/default), matching spec.md §3's
// "subproperties are read-only features of the base property".
type Property struct {
	Name    string
	Value   string
	Min     string
	Max     string
	Default string
}

// MapSurface is a simple in-memory reference Surface implementation. It is
// used directly by the admin status property and by tests, and is the
// shape the configuration persister round-trips against.
type MapSurface struct {
	order []string
	props map[string]*Property
}

// NewMapSurface builds a MapSurface from an ordered property list.
func NewMapSurface(props ...Property) *MapSurface {
	s := &MapSurface{props: make(map[string]*Property, len(props))}
	for _, p := range props {
		p := p
		s.order = append(s.order, p.Name)
		s.props[p.Name] = &p
	}
	return s
}

// Get implements Surface, including read-only subproperty lookups.
func (s *MapSurface) Get(name string) (string, error) {
	if base, sub, ok := SplitSubproperty(name); ok {
		p, exists := s.props[base]
		if !exists {
			return "", fmt.Errorf("property %q: %w", name, xerror.UnknownProperty)
		}
		switch sub {
		case "min":
			if p.Min == "" {
				return "", fmt.Errorf("property %q: %w", name, xerror.UnsupportedProperty)
			}
			return p.Min, nil
		case "max":
			if p.Max == "" {
				return "", fmt.Errorf("property %q: %w", name, xerror.UnsupportedProperty)
			}
			return p.Max, nil
		case "default":
			if p.Default == "" {
				return "", fmt.Errorf("property %q: %w", name, xerror.UnsupportedProperty)
			}
			return p.Default, nil
		default:
			return "", fmt.Errorf("property %q: %w", name, xerror.UnsupportedProperty)
		}
	}

	p, exists := s.props[name]
	if !exists {
		return "", fmt.Errorf("property %q: %w", name, xerror.UnknownProperty)
	}
	return p.Value, nil
}

// Set implements Surface. Subproperties are always read-only.
func (s *MapSurface) Set(name, value string) error {
	if _, _, ok := SplitSubproperty(name); ok {
		return fmt.Errorf("property %q: %w", name, xerror.ReadOnlyProperty)
	}
	p, exists := s.props[name]
	if !exists {
		return fmt.Errorf("property %q: %w", name, xerror.UnknownProperty)
	}
	p.Value = value
	return nil
}

// EnumerateAll implements Surface.
func (s *MapSurface) EnumerateAll() map[string]string {
	out := make(map[string]string, len(s.order))
	for _, name := range s.order {
		out[name] = s.props[name].Value
	}
	return out
}

// Names returns the property names in registration order.
func (s *MapSurface) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Metadata returns the min/max/default subproperties for name, and whether
// name is a known base property.
func (s *MapSurface) Metadata(name string) (Property, bool) {
	p, ok := s.props[name]
	if !ok {
		return Property{}, false
	}
	return *p, true
}
