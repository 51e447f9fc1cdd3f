package server

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emberline-mud/goember/pkg/boltstore"
	"github.com/emberline-mud/goember/pkg/events"
	"github.com/emberline-mud/goember/pkg/gamedb"
)

// CommandHandler is the signature for game command implementations.
type CommandHandler func(g *Game, d *Descriptor, args string, switches []string)

// Command represents a registered game command.
type Command struct {
	Name    string
	Aliases []string
	Perm    string // permission requirement; "" = everyone, "wizard" = staff
	Help    string // help category
	Handler CommandHandler
}

// InitCommands registers all available game commands. Duplicate keys or
// aliases are a startup error: the table must stay unambiguous.
func InitCommands() map[string]*Command {
	cmds := make(map[string]*Command)

	register := func(cmd *Command) {
		key := strings.ToLower(cmd.Name)
		if _, exists := cmds[key]; exists {
			log.Fatalf("commands: duplicate command key %q", cmd.Name)
		}
		cmds[key] = cmd
		for _, alias := range cmd.Aliases {
			akey := strings.ToLower(alias)
			if _, exists := cmds[akey]; exists {
				log.Fatalf("commands: duplicate command alias %q", alias)
			}
			cmds[akey] = cmd
		}
	}

	// Communication
	register(&Command{Name: "say", Aliases: []string{"\""}, Handler: cmdSay})
	register(&Command{Name: "pose", Aliases: []string{":"}, Handler: cmdPose})

	// Information
	register(&Command{Name: "look", Aliases: []string{"l"}, Handler: cmdLook})
	register(&Command{Name: "WHO", Handler: cmdWho})
	register(&Command{Name: "@version", Aliases: []string{"version"}, Handler: cmdVersion})

	// Session
	register(&Command{Name: "QUIT", Handler: cmdQuit})

	// Developer smoke tests (staff only)
	register(&Command{Name: "@test", Aliases: []string{"@te"}, Perm: "wizard", Help: "Testing", Handler: cmdTest})
	register(&Command{Name: "@testperm", Perm: "wizard", Help: "Testing", Handler: cmdTestPerm})
	register(&Command{Name: "@teststate", Aliases: []string{"@testingstate"}, Perm: "wizard", Help: "Testing", Handler: cmdTestState})
	register(&Command{Name: "@testcom", Perm: "wizard", Help: "Testing", Handler: cmdTestCom})
	register(&Command{Name: "@debug", Perm: "debug", Help: "Building", Handler: cmdDebugEntity})

	return cmds
}

// DispatchCommand parses a raw input line and runs the matching command.
func DispatchCommand(g *Game, d *Descriptor, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	d.CmdCount++
	if g.Metrics != nil {
		g.Metrics.CommandProcessed()
	}

	// Handle single-character prefixes: " for say, : for pose
	switch input[0] {
	case '"':
		cmdSay(g, d, input[1:], nil)
		return
	case ':':
		cmdPose(g, d, input[1:], nil)
		return
	}

	// Split command and args
	var cmdName, args string
	spaceIdx := strings.IndexByte(input, ' ')
	if spaceIdx >= 0 {
		cmdName = input[:spaceIdx]
		args = strings.TrimSpace(input[spaceIdx+1:])
	} else {
		cmdName = input
	}

	// Parse /switches from command name (e.g. "@teststate/add" -> "@teststate", ["add"])
	var switches []string
	if slashIdx := strings.IndexByte(cmdName, '/'); slashIdx >= 0 {
		parts := strings.Split(cmdName, "/")
		cmdName = parts[0]
		switches = parts[1:]
	}

	lower := strings.ToLower(cmdName)

	// State-stack commands shadow the global table.
	if sh := g.StateHandlerFor(d.Player); sh != nil {
		if cmd := sh.FindCommand(lower); cmd != nil {
			runCommand(g, d, cmd, args, switches)
			return
		}
	}

	// Global table (exact match first)
	if cmd, ok := g.Commands[lower]; ok {
		runCommand(g, d, cmd, args, switches)
		return
	}

	// Prefix matching for @-commands (e.g. @testp = @testperm)
	if len(lower) > 1 && lower[0] == '@' {
		var matchedCmd *Command
		matchCount := 0
		seen := make(map[string]bool)
		for name, cmd := range g.Commands {
			if strings.HasPrefix(name, lower) && !seen[cmd.Name] {
				seen[cmd.Name] = true
				matchedCmd = cmd
				matchCount++
			}
		}
		if matchCount == 1 && matchedCmd != nil {
			runCommand(g, d, matchedCmd, args, switches)
			return
		}
	}

	// Try channel alias matching
	if g.Comsys != nil {
		if ca := g.Comsys.LookupAlias(d.Player, lower); ca != nil {
			g.ComsysProcessAlias(d, ca, args)
			return
		}
	}

	d.Send("Huh?  (Type \"help\" for help.)")
}

// runCommand checks permissions and invokes a command handler.
func runCommand(g *Game, d *Descriptor, cmd *Command, args string, switches []string) {
	if !g.CheckCommandPerm(d.Player, cmd.Perm) {
		d.Send("Permission denied.")
		return
	}
	cmd.Handler(g, d, args, switches)
}

// HasSwitch checks if a switch list contains a specific switch (case-insensitive).
func HasSwitch(switches []string, name string) bool {
	for _, s := range switches {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// --- Base Commands ---

func cmdSay(g *Game, d *Descriptor, args string, _ []string) {
	args = strings.TrimSpace(args)
	if args == "" {
		d.Send("Say what?")
		return
	}
	name := g.PlayerName(d.Player)
	d.Send(fmt.Sprintf("You say, \"%s\"", args))
	ev := events.Event{
		Type:   events.EvSay,
		Source: d.Player,
		Text:   fmt.Sprintf("%s says, \"%s\"", name, args),
	}
	for _, p := range g.Conns.ConnectedPlayers() {
		if p != d.Player {
			g.EventBus.EmitToPlayer(p, ev)
		}
	}
}

func cmdPose(g *Game, d *Descriptor, args string, _ []string) {
	args = strings.TrimSpace(args)
	if args == "" {
		d.Send("Pose what?")
		return
	}
	text := fmt.Sprintf("%s %s", g.PlayerName(d.Player), args)
	g.EventBus.EmitToAll(events.Event{Type: events.EvPose, Source: d.Player, Text: text})
}

func cmdLook(g *Game, d *Descriptor, args string, _ []string) {
	args = strings.TrimSpace(args)
	var target *gamedb.Object
	if args == "" || strings.EqualFold(args, "here") {
		self, ok := g.DB.Objects[d.Player]
		if !ok {
			d.Send("You are nowhere.")
			return
		}
		target = g.DB.Objects[self.Location]
	} else {
		target = g.DB.Objects[g.DB.LookupPlayer(args)]
	}
	if target == nil {
		d.Send("You don't see that here.")
		return
	}
	d.Send(target.Name)
	if desc := target.Attr("desc"); desc != "" {
		d.Send(desc)
	}
}

func cmdWho(g *Game, d *Descriptor, _ string, _ []string) {
	players := g.Conns.ConnectedPlayers()
	names := make([]string, 0, len(players))
	for _, p := range players {
		if obj, ok := g.DB.Objects[p]; ok && obj.HasFlag(gamedb.FlagDark) && !Wizard(g, d.Player) {
			continue
		}
		names = append(names, g.PlayerName(p))
	}
	sort.Strings(names)
	d.Send(fmt.Sprintf("-- %s: %d connected --", g.Conf.MudName, len(names)))
	for _, n := range names {
		d.Send(n)
	}
}

func cmdVersion(g *Game, d *Descriptor, _ string, _ []string) {
	d.Send(VersionString())
}

func cmdQuit(g *Game, d *Descriptor, _ string, _ []string) {
	d.Send("May your journey home be swift.")
	d.Close()
}

// --- Game ---

// Game holds all runtime state for a running game.
type Game struct {
	DB       *gamedb.Database
	Conns    *ConnManager
	Commands map[string]*Command
	Store    *boltstore.Store // nil = no bbolt persistence
	Comsys   *Comsys          // channel system (nil if disabled)
	Msgs     *MessageLog      // SQLite message log (nil if disabled)
	Conf     *GameConf        // game configuration
	Registry *Registry        // typeclass registry
	Texts    *TextFiles       // cached text files (connect.txt, motd.txt, ...)
	TextDir  string           // path to text files directory
	EventBus *events.Bus      // structured event bus for multi-transport output
	Metrics  *Metrics         // prometheus metrics (nil if disabled)

	statesMu sync.Mutex
	states   map[gamedb.DBRef]*StateHandler
}

// NewGame creates a Game around a database with the built-in typeclasses
// and command table registered.
func NewGame(db *gamedb.Database, conf *GameConf) *Game {
	if conf == nil {
		conf = DefaultGameConf()
	}
	bus := events.NewBus()
	conns := NewConnManager()
	conns.EventBus = bus

	g := &Game{
		DB:       db,
		Conns:    conns,
		Commands: InitCommands(),
		Conf:     conf,
		Registry: NewRegistry(),
		EventBus: bus,
		states:   make(map[gamedb.DBRef]*StateHandler),
	}
	registerBuiltins(g.Registry)
	return g
}

// GodPlayer returns the configured God dbref.
func (g *Game) GodPlayer() gamedb.DBRef {
	if g.Conf != nil && g.Conf.GodDBRef != 0 {
		return gamedb.DBRef(g.Conf.GodDBRef)
	}
	return 1
}

// Emit sends an event to the player specified in ev.Player via the event bus.
func (g *Game) Emit(ev events.Event) {
	g.EventBus.Emit(ev)
}

// PersistObject writes a single object to the bolt store (no-op if Store is nil).
func (g *Game) PersistObject(obj *gamedb.Object) {
	if g.Store == nil || obj == nil {
		return
	}
	if err := g.Store.PutObject(obj); err != nil {
		log.Printf("persist: object %v: %v", obj.DBRef, err)
	}
}

// PersistObjects writes several objects in one transaction (no-op if Store is nil).
func (g *Game) PersistObjects(objs ...*gamedb.Object) {
	if g.Store == nil {
		return
	}
	if err := g.Store.PutObjects(objs...); err != nil {
		log.Printf("persist: objects: %v", err)
	}
}

// CreateObject allocates a new object, adds it to the database and persists it.
func (g *Game) CreateObject(parent gamedb.DBRef, name string, typ gamedb.ObjType, owner gamedb.DBRef) *gamedb.Object {
	obj := &gamedb.Object{
		DBRef:    g.DB.Allocate(),
		Name:     name,
		Type:     typ,
		Location: gamedb.Nothing,
		Owner:    owner,
		Parent:   parent,
		Created:  time.Now(),
	}
	g.DB.Add(obj)
	g.PersistObject(obj)
	if g.Store != nil {
		if err := g.Store.PutMeta(); err != nil {
			log.Printf("persist: meta: %v", err)
		}
	}
	return obj
}

// DeleteObject removes an object from the database and the store.
func (g *Game) DeleteObject(ref gamedb.DBRef) {
	g.DB.Remove(ref)
	if g.Store != nil {
		if err := g.Store.DeleteObject(ref); err != nil {
			log.Printf("persist: delete %v: %v", ref, err)
		}
	}
}

// PlayerName returns the display name for a player dbref.
func (g *Game) PlayerName(player gamedb.DBRef) string {
	if obj, ok := g.DB.Objects[player]; ok {
		return obj.Name
	}
	return player.String()
}
