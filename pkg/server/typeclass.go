package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

// Typeclasses are identified by dotted paths ("world.objects.red_button").
// Paths rooted at core. or world. are taken as-is; anything else is
// qualified with a configured base path before lookup. All factories are
// registered at startup and validated then, so a path either resolves or
// cleanly does not; there is no ad-hoc code loading at dispatch time.

// Recognized top-level path roots.
var pathRoots = []string{"core.", "world."}

// TypeObject is the behavior attached to a game object typeclass.
type TypeObject interface {
	Key() string
	AtCreation(g *Game, obj *gamedb.Object) error
	AtLook(g *Game, obj *gamedb.Object, looker gamedb.DBRef) (string, error)
	// Scripts lists the registry paths of scripts attached to this typeclass.
	Scripts() []string
}

// Script is a behavior unit attachable to objects.
type Script interface {
	Key() string
	AtStart(g *Game, obj *gamedb.Object) error
	AtRepeat(g *Game, obj *gamedb.Object) error
}

// State is a behavior layer pushed onto a player's state stack. While
// active, its commands are dispatched before the global command table.
type State interface {
	Key() string
	Commands() []*Command
}

// Factory types. Each call must return a fresh instance.
type (
	ObjectFactory func() TypeObject
	ScriptFactory func() Script
	StateFactory  func() State
)

// Registry maps dotted paths to typeclass factories.
type Registry struct {
	mu      sync.RWMutex
	objects map[string]ObjectFactory
	scripts map[string]ScriptFactory
	states  map[string]StateFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[string]ObjectFactory),
		scripts: make(map[string]ScriptFactory),
		states:  make(map[string]StateFactory),
	}
}

// validatePath checks that a registry path is a rooted dotted identifier.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("typeclass: empty path")
	}
	rooted := false
	for _, root := range pathRoots {
		if strings.HasPrefix(path, root) {
			rooted = true
			break
		}
	}
	if !rooted {
		return fmt.Errorf("typeclass: path %q must start with core. or world.", path)
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return fmt.Errorf("typeclass: path %q has an empty segment", path)
		}
		for i := 0; i < len(seg); i++ {
			c := seg[i]
			if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_') {
				return fmt.Errorf("typeclass: path %q has invalid character %q", path, c)
			}
		}
	}
	return nil
}

// RegisterObject registers an object typeclass factory.
func (r *Registry) RegisterObject(path string, factory ObjectFactory) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("typeclass: nil factory for %q", path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.objects[path]; exists {
		return fmt.Errorf("typeclass: object path %q already registered", path)
	}
	r.objects[path] = factory
	return nil
}

// RegisterScript registers a script factory.
func (r *Registry) RegisterScript(path string, factory ScriptFactory) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("typeclass: nil factory for %q", path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.scripts[path]; exists {
		return fmt.Errorf("typeclass: script path %q already registered", path)
	}
	r.scripts[path] = factory
	return nil
}

// RegisterState registers a state factory.
func (r *Registry) RegisterState(path string, factory StateFactory) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("typeclass: nil factory for %q", path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.states[path]; exists {
		return fmt.Errorf("typeclass: state path %q already registered", path)
	}
	r.states[path] = factory
	return nil
}

// mustRegister panics on registration failure. Built-in registrations run
// at startup, where a bad path is a programming error.
func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

// ResolveObject looks up an object typeclass factory.
func (r *Registry) ResolveObject(path string) (ObjectFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.objects[path]
	if !ok {
		return nil, fmt.Errorf("typeclass: no object registered at %q", path)
	}
	return f, nil
}

// ResolveScript looks up a script factory.
func (r *Registry) ResolveScript(path string) (ScriptFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.scripts[path]
	if !ok {
		return nil, fmt.Errorf("typeclass: no script registered at %q", path)
	}
	return f, nil
}

// ResolveState looks up a state factory.
func (r *Registry) ResolveState(path string) (StateFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.states[path]
	if !ok {
		return nil, fmt.Errorf("typeclass: no state registered at %q", path)
	}
	return f, nil
}

// QualifyPath qualifies a user-supplied path against a base. Paths already
// rooted at a recognized root pass through unmodified.
func QualifyPath(path, base string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return path
	}
	for _, root := range pathRoots {
		if strings.HasPrefix(path, root) {
			return path
		}
	}
	return base + "." + path
}
