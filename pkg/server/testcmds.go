package server

import (
	"fmt"
	"strings"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

// Developer smoke-test commands. These exercise the permission evaluator,
// the state handler, the comsys and the typeclass registry end to end from
// a live connection, so a staffer can verify a running server without
// attaching a debugger.

// cmdTest echoes back the parsed form of its input line, showing how the
// dispatcher split command, switches and arguments.
func cmdTest(g *Game, d *Descriptor, args string, switches []string) {
	d.Send("--- command parse test ---")
	d.Send("cmd:      @test")
	d.Send(fmt.Sprintf("switches: [%s]", strings.Join(switches, ", ")))
	d.Send(fmt.Sprintf("args:     %s", args))
	if eq := strings.IndexByte(args, '='); eq >= 0 {
		d.Send(fmt.Sprintf("lhs:      %s", strings.TrimSpace(args[:eq])))
		d.Send(fmt.Sprintf("rhs:      %s", strings.TrimSpace(args[eq+1:])))
	}
}

// cmdTestPerm runs a self-test of the permission evaluator using the
// caller's own keys. With arguments, it instead evaluates the given lock:
//
//	@testperm <lockstring>
//	@testperm <lockstring>=<comma-separated keys>
func cmdTestPerm(g *Game, d *Descriptor, args string, _ []string) {
	who, ok := g.DB.Objects[d.Player]
	if !ok {
		d.Send("You do not seem to exist.")
		return
	}

	if args = strings.TrimSpace(args); args != "" {
		testPermLock(g, d, who, args)
		return
	}

	if Superuser(g, d.Player) {
		d.Send("You are a superuser. Permission tests are pointless.")
		return
	}

	// Scratch object to carry the locks under test.
	obj := g.CreateObject(gamedb.Nothing, "accessed_object", gamedb.TypeThing, d.Player)
	d.Send(fmt.Sprintf("obj_attr: %s", obj.Attr("testattr")))

	show := func() {
		d.Send(fmt.Sprintf(" keys:[%s] locks:[%s]", who.PermString(), obj.PermString()))
	}
	d.Send("----------------")

	// Key lookups: default lock plus an skey-guarded lock.
	SetPerm(g, obj, "has_permission")
	AddPerm(g, obj, "skey:has_permission")
	show()
	d.Send(fmt.Sprintf("normal permtest: %v", HasPerm(g, who, obj)))
	d.Send(fmt.Sprintf("skey permtest: %v", HasPerm(g, who, obj, "skey")))

	AddPerm(g, who, "has_permission")
	show()
	d.Send(fmt.Sprintf("normal permtest: %v", HasPerm(g, who, obj)))
	d.Send(fmt.Sprintf("skey permtest: %v", HasPerm(g, who, obj, "skey")))

	// Predicate locks.
	SetPerm(g, obj, fmt.Sprintf("has_id(%d)", int(d.Player)))
	show()
	d.Send(fmt.Sprintf("functest: %v", HasPerm(g, who, obj)))

	who.SetAttr("testattr", "testattr_value")
	g.PersistObject(who)
	SetPerm(g, obj, "has_attr(testattr, testattr_value)")
	show()
	d.Send(fmt.Sprintf("functest: %v", HasPerm(g, who, obj)))

	// Cleanup: the caller and the db end up exactly as before the test.
	DelPerm(g, who, "has_permission")
	d.Send(fmt.Sprintf(" cleanup: keys:[%s] locks:[%s]", who.PermString(), obj.PermString()))
	g.DeleteObject(obj.DBRef)
	who.DelAttr("testattr")
	g.PersistObject(who)
}

// testPermLock evaluates an explicit lockstring. Left of "=" is the lock
// (";"-separated entries); right of "=", if present, is a comma-separated
// key list to test instead of the caller's own keys.
func testPermLock(g *Game, d *Descriptor, who *gamedb.Object, args string) {
	lockstr := args
	subject := who
	if eq := strings.IndexByte(args, '='); eq >= 0 {
		lockstr = strings.TrimSpace(args[:eq])
		var keys []string
		for _, k := range strings.Split(args[eq+1:], ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		subject = &gamedb.Object{Name: "permtest_subject", Perms: keys}
	}
	if lockstr == "" {
		d.Send("Usage: @testperm [lockstring] [=permstring]")
		return
	}

	var locks []string
	for _, l := range strings.Split(lockstr, ";") {
		if l = strings.TrimSpace(l); l != "" {
			locks = append(locks, l)
		}
	}
	target := &gamedb.Object{Name: "permtest_target", Perms: locks}
	d.Send(fmt.Sprintf("keys:[%s] locks:[%s] -> %v",
		subject.PermString(), target.PermString(), HasPerm(g, subject, target)))
}

// cmdTestState manipulates the caller's state stack.
func cmdTestState(g *Game, d *Descriptor, args string, switches []string) {
	sh := g.StateHandlerFor(d.Player)

	switch {
	case HasSwitch(switches, "clear"):
		if err := sh.Clear(); err != nil {
			d.Send(fmt.Sprintf("Could not clear states: %v", err))
			return
		}
		d.Send("All states cleared.")
	case HasSwitch(switches, "list"):
		d.Send(sh.String())
	case HasSwitch(switches, "reload"):
		if err := sh.Load(); err != nil {
			d.Send(fmt.Sprintf("Could not reload states: %v", err))
			return
		}
		d.Send("States reloaded.")
	case len(switches) == 0 || HasSwitch(switches, "add"):
		path := strings.TrimSpace(args)
		if path == "" {
			path = g.Conf.DefaultState
		}
		st, err := sh.Add(path)
		if err != nil {
			d.Send(fmt.Sprintf("Could not add state: %v", err))
			return
		}
		d.Send(fmt.Sprintf("Added state '%s'.", st.Key()))
	default:
		d.Send("Usage: @teststate[/add|clear|list|reload] [<state path>]")
	}
}

// cmdTestCom exercises channel creation and the message log.
func cmdTestCom(g *Game, d *Descriptor, args string, switches []string) {
	switch {
	case HasSwitch(switches, "create"):
		if g.Comsys == nil {
			d.Send("The channel system is not enabled.")
			return
		}
		name := strings.TrimSpace(args)
		if name == "" {
			break
		}
		ch, err := g.CreateChannel(name, d.Player)
		if err != nil {
			d.Send(fmt.Sprintf("Channel '%s' already exists.", name))
			return
		}
		if _, err := g.ConnectToChannel(d.Player, ch.Name, ""); err != nil {
			d.Send(fmt.Sprintf("Could not join channel %s: %v", ch.Name, err))
			return
		}
		d.Send(fmt.Sprintf("Created new channel %s", name))
		if _, err := g.PostToChannel(d.Player, ch.Name, "First post to new channel!"); err != nil {
			d.Send(fmt.Sprintf("Could not post to channel %s: %v", ch.Name, err))
		}
		return
	case HasSwitch(switches, "list"):
		if g.Msgs == nil {
			d.Send("The message log is not enabled.")
			return
		}
		msgs, err := g.Msgs.MessagesBySender(d.Player)
		if err != nil {
			d.Send(fmt.Sprintf("Could not read message log: %v", err))
			return
		}
		for _, m := range msgs {
			d.Send(fmt.Sprintf("%s [%s]: %s",
				m.Sent.Format("2006-01-02 15:04:05"),
				strings.Join(m.Channels, ", "), m.Body))
		}
		return
	}
	d.Send("Usage: @testcom/create channel")
}

// cmdDebugEntity creates the named typeclass and runs its hooks, reporting
// each outcome. Paths not rooted at core. or world. are qualified with the
// configured object or script base.
func cmdDebugEntity(g *Game, d *Descriptor, args string, switches []string) {
	args = strings.TrimSpace(args)
	if args == "" || len(switches) == 0 {
		d.Send("Usage: @debug[/obj][/script] <path>")
		return
	}

	switch {
	case HasSwitch(switches, "obj") || HasSwitch(switches, "object"):
		path := QualifyPath(args, g.Conf.ObjectBase)
		d.Send(g.DebugObject(path, d.Player))
		d.Send(g.DebugObjectScripts(path, d.Player))
	case HasSwitch(switches, "script"):
		path := QualifyPath(args, g.Conf.ScriptBase)
		d.Send(g.DebugScript(path, d.Player))
	default:
		d.Send("Usage: @debug[/obj][/script] <path>")
	}
}
