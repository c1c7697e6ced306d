// internal/browser/jsconfig/registry.go
package jsconfig

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
)

// ConfigurationError is a fatal problem with the class table itself. It is reported when
// the configuration for a version is first built, never deferred to first use.
type ConfigurationError struct {
	Class      string
	Superclass string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if e.Superclass != "" {
		return fmt.Sprintf("class configuration error: %s extends %s: %s", e.Class, e.Superclass, e.Reason)
	}
	return fmt.Sprintf("class configuration error: %s: %s", e.Class, e.Reason)
}

// ClassSet is the linked class table for one browser version. Classes are stored in an
// arena in declaration order; superclass links are arena indices.
type ClassSet struct {
	version  *features.BrowserVersion
	classes  []*ClassConfiguration
	byName   map[string]int
	byNative map[reflect.Type]int
}

func (s *ClassSet) BrowserVersion() *features.BrowserVersion { return s.version }

// Classes returns the classes in declaration order. The slice must not be modified.
func (s *ClassSet) Classes() []*ClassConfiguration { return s.classes }

func (s *ClassSet) Len() int { return len(s.classes) }

func (s *ClassSet) ByName(name string) (*ClassConfiguration, bool) {
	id, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.classes[id], true
}

// ByNative finds the class exposing instances of the given Go type.
func (s *ClassSet) ByNative(t reflect.Type) (*ClassConfiguration, bool) {
	id, ok := s.byNative[t]
	if !ok {
		return nil, false
	}
	return s.classes[id], true
}

// Super returns the resolved superclass, or nil for a root class.
func (s *ClassSet) Super(c *ClassConfiguration) *ClassConfiguration {
	if c.superID < 0 {
		return nil
	}
	return s.classes[c.superID]
}

// Depth is the number of superclass hops from c to its root class.
func (s *ClassSet) Depth(c *ClassConfiguration) int {
	d := 0
	for p := s.Super(c); p != nil; p = s.Super(p) {
		d++
	}
	return d
}

// Registry builds and memoizes ClassSets from a declarative table, once per browser
// version.
type Registry struct {
	defs   []ClassDefinition
	logger *zap.Logger

	cache  sync.Map // nickname -> *ClassSet
	group  singleflight.Group
	builds atomic.Int64
}

// NewRegistry creates a registry over the given definitions. The slice is not copied and
// must not be modified afterwards.
func NewRegistry(logger *zap.Logger, defs []ClassDefinition) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		defs:   defs,
		logger: logger.Named("registry"),
	}
}

// Configuration returns the linked class table for v, building it on first use.
// Concurrent first callers share a single build. Failed builds are not cached.
func (r *Registry) Configuration(v *features.BrowserVersion) (*ClassSet, error) {
	if v == nil {
		return nil, fmt.Errorf("class configuration requested without a browser version")
	}
	key := v.Nickname()
	if cached, ok := r.cache.Load(key); ok {
		return cached.(*ClassSet), nil
	}

	res, err, _ := r.group.Do(key, func() (interface{}, error) {
		if cached, ok := r.cache.Load(key); ok {
			return cached, nil
		}
		set, err := r.build(v)
		if err != nil {
			return nil, err
		}
		r.cache.Store(key, set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*ClassSet), nil
}

// Builds reports how many class tables have been built so far.
func (r *Registry) Builds() int64 { return r.builds.Load() }

func (r *Registry) build(v *features.BrowserVersion) (*ClassSet, error) {
	r.builds.Add(1)
	set := &ClassSet{
		version:  v,
		byName:   make(map[string]int, len(r.defs)),
		byNative: make(map[reflect.Type]int, len(r.defs)),
	}

	for i := range r.defs {
		def := &r.defs[i]
		if !def.Gate.Allows(v) {
			continue
		}
		if def.Name == "" {
			return nil, &ConfigurationError{Class: fmt.Sprintf("#%d", i), Reason: "class has no name"}
		}
		if _, dup := set.byName[def.Name]; dup {
			return nil, &ConfigurationError{Class: def.Name, Reason: "declared more than once"}
		}
		c := def.resolve(v)
		c.id = len(set.classes)
		set.classes = append(set.classes, c)
		set.byName[c.ClassName] = c.id
		if c.Native != nil {
			if other, dup := set.byNative[c.Native]; dup {
				return nil, &ConfigurationError{
					Class:  c.ClassName,
					Reason: fmt.Sprintf("native type %s already bound to %s", c.Native, set.classes[other].ClassName),
				}
			}
			set.byNative[c.Native] = c.id
		}
	}

	if err := set.link(); err != nil {
		return nil, err
	}

	r.logger.Debug("Class configuration built",
		zap.String("browser", v.Nickname()),
		zap.Int("classes", len(set.classes)))
	return set, nil
}

// link resolves every superclass name to an arena index, then rejects cycles.
func (s *ClassSet) link() error {
	for _, c := range s.classes {
		if c.ExtendedClassName == "" {
			continue
		}
		id, ok := s.byName[c.ExtendedClassName]
		if !ok {
			return &ConfigurationError{Class: c.ClassName, Superclass: c.ExtendedClassName, Reason: "superclass is not defined"}
		}
		c.superID = id
	}

	// Any chain longer than the number of classes must revisit a class.
	limit := len(s.classes)
	for _, c := range s.classes {
		hops := 0
		for p := s.Super(c); p != nil; p = s.Super(p) {
			hops++
			if p == c || hops > limit {
				return &ConfigurationError{Class: c.ClassName, Superclass: c.ExtendedClassName, Reason: "inheritance cycle"}
			}
		}
	}
	return nil
}
