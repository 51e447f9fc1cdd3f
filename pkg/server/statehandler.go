package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

// StateHandler manages one player's state stack: an ordered list of State
// layers whose commands shadow the global table while active. The stack's
// configuration (the list of registry paths) persists across sessions.
type StateHandler struct {
	g      *Game
	player gamedb.DBRef

	mu    sync.Mutex
	stack []State
	paths []string // registry paths, bottom to top, mirrors stack
}

// newStateHandler creates a handler and loads any persisted configuration.
func newStateHandler(g *Game, player gamedb.DBRef) *StateHandler {
	sh := &StateHandler{g: g, player: player}
	if err := sh.Load(); err != nil {
		DebugLog("statehandler: load for %v: %v", player, err)
	}
	return sh
}

// Add resolves a state path, pushes a fresh instance onto the stack and
// persists the new configuration. The path is qualified against the
// configured state base if not already rooted.
func (sh *StateHandler) Add(path string) (State, error) {
	path = QualifyPath(path, sh.g.Conf.StateBase)
	factory, err := sh.g.Registry.ResolveState(path)
	if err != nil {
		return nil, err
	}
	st := factory()

	sh.mu.Lock()
	sh.stack = append(sh.stack, st)
	sh.paths = append(sh.paths, path)
	paths := append([]string(nil), sh.paths...)
	sh.mu.Unlock()

	if err := sh.persist(paths); err != nil {
		return st, fmt.Errorf("state %q added but not persisted: %w", st.Key(), err)
	}
	return st, nil
}

// Clear removes all states and drops the persisted configuration.
func (sh *StateHandler) Clear() error {
	sh.mu.Lock()
	sh.stack = nil
	sh.paths = nil
	sh.mu.Unlock()
	return sh.persist(nil)
}

// Load rebuilds the stack from the persisted configuration. Paths that no
// longer resolve are skipped with a log line rather than failing the load.
func (sh *StateHandler) Load() error {
	if sh.g.Store == nil {
		return nil
	}
	paths, err := sh.g.Store.StateStack(sh.player)
	if err != nil {
		return err
	}

	var stack []State
	var kept []string
	for _, path := range paths {
		factory, err := sh.g.Registry.ResolveState(path)
		if err != nil {
			DebugLog("statehandler: dropping unresolvable state %q for %v", path, sh.player)
			continue
		}
		stack = append(stack, factory())
		kept = append(kept, path)
	}

	sh.mu.Lock()
	sh.stack = stack
	sh.paths = kept
	sh.mu.Unlock()
	return nil
}

// State returns the active (topmost) state, or nil for an empty stack.
func (sh *StateHandler) State() State {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if len(sh.stack) == 0 {
		return nil
	}
	return sh.stack[len(sh.stack)-1]
}

// Keys returns the stacked state keys, bottom to top.
func (sh *StateHandler) Keys() []string {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	keys := make([]string, len(sh.stack))
	for i, st := range sh.stack {
		keys[i] = st.Key()
	}
	return keys
}

// String renders the stack for display.
func (sh *StateHandler) String() string {
	keys := sh.Keys()
	if len(keys) == 0 {
		return "State stack: <empty>"
	}
	return "State stack: " + strings.Join(keys, ", ")
}

// FindCommand searches the stack top-down for a command matching name.
func (sh *StateHandler) FindCommand(name string) *Command {
	name = strings.ToLower(name)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for i := len(sh.stack) - 1; i >= 0; i-- {
		for _, cmd := range sh.stack[i].Commands() {
			if strings.ToLower(cmd.Name) == name {
				return cmd
			}
			for _, alias := range cmd.Aliases {
				if strings.ToLower(alias) == name {
					return cmd
				}
			}
		}
	}
	return nil
}

// persist writes the path list through to the store.
func (sh *StateHandler) persist(paths []string) error {
	if sh.g.Store == nil {
		return nil
	}
	if len(paths) == 0 {
		return sh.g.Store.DeleteStateStack(sh.player)
	}
	return sh.g.Store.PutStateStack(sh.player, paths)
}

// StateHandlerFor returns the player's state handler, creating it on first
// use (which loads any persisted stack configuration).
func (g *Game) StateHandlerFor(player gamedb.DBRef) *StateHandler {
	g.statesMu.Lock()
	defer g.statesMu.Unlock()
	sh, ok := g.states[player]
	if !ok {
		sh = newStateHandler(g, player)
		g.states[player] = sh
	}
	return sh
}
