package server

import (
	"fmt"
	"strings"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

// Debug routines instantiate a typeclass from the registry, run each of its
// lifecycle hooks against a throwaway object and fold the outcomes into a
// single report string. Hook panics are caught so a broken typeclass never
// takes down the caller's session.

// runHook runs fn and reports "ok" or the error/panic text.
func runHook(name string, fn func() error) (line string) {
	defer func() {
		if r := recover(); r != nil {
			line = fmt.Sprintf("  %-12s PANIC: %v", name, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Sprintf("  %-12s ERROR: %v", name, err)
	}
	return fmt.Sprintf("  %-12s ok", name)
}

// DebugObject instantiates the object typeclass at path and exercises its
// hooks, using looker as the observer for AtLook.
func (g *Game) DebugObject(path string, looker gamedb.DBRef) string {
	factory, err := g.Registry.ResolveObject(path)
	if err != nil {
		return fmt.Sprintf("Debug object %s: %v", path, err)
	}

	tobj := factory()
	var b strings.Builder
	fmt.Fprintf(&b, "Debug object %s (key %q):\n", path, tobj.Key())

	obj := g.CreateObject(gamedb.Nothing, "debug_"+tobj.Key(), gamedb.TypeThing, looker)
	defer g.DeleteObject(obj.DBRef)

	b.WriteString(runHook("AtCreation", func() error {
		return tobj.AtCreation(g, obj)
	}))
	b.WriteByte('\n')
	b.WriteString(runHook("AtLook", func() error {
		desc, err := tobj.AtLook(g, obj, looker)
		if err != nil {
			return err
		}
		if desc == "" {
			return fmt.Errorf("empty look description")
		}
		return nil
	}))
	return b.String()
}

// DebugObjectScripts runs the debug routine for every script attached to
// the object typeclass at path.
func (g *Game) DebugObjectScripts(path string, looker gamedb.DBRef) string {
	factory, err := g.Registry.ResolveObject(path)
	if err != nil {
		return fmt.Sprintf("Debug scripts of %s: %v", path, err)
	}

	tobj := factory()
	scripts := tobj.Scripts()
	if len(scripts) == 0 {
		return fmt.Sprintf("Debug scripts of %s: no scripts attached.", path)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Debug scripts of %s (%d attached):\n", path, len(scripts))
	for i, spath := range scripts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(g.DebugScript(spath, looker))
	}
	return b.String()
}

// DebugScript instantiates the script at path and exercises its hooks.
func (g *Game) DebugScript(path string, looker gamedb.DBRef) string {
	factory, err := g.Registry.ResolveScript(path)
	if err != nil {
		return fmt.Sprintf("Debug script %s: %v", path, err)
	}

	script := factory()
	var b strings.Builder
	fmt.Fprintf(&b, "Debug script %s (key %q):\n", path, script.Key())

	obj := g.CreateObject(gamedb.Nothing, "debug_"+script.Key(), gamedb.TypeThing, looker)
	defer g.DeleteObject(obj.DBRef)

	b.WriteString(runHook("AtStart", func() error {
		return script.AtStart(g, obj)
	}))
	b.WriteByte('\n')
	b.WriteString(runHook("AtRepeat", func() error {
		return script.AtRepeat(g, obj)
	}))
	return b.String()
}
