package server

import (
	"fmt"

	"github.com/emberline-mud/goember/pkg/events"
	"github.com/emberline-mud/goember/pkg/gamedb"
)

// Built-in typeclasses. These register at game startup and double as the
// reference targets for the @debug and @teststate commands.

func registerBuiltins(r *Registry) {
	mustRegister(r.RegisterObject("core.objects.base", func() TypeObject {
		return &BaseObject{}
	}))
	mustRegister(r.RegisterObject("world.objects.red_button", func() TypeObject {
		return &RedButton{}
	}))
	mustRegister(r.RegisterScript("world.scripts.blink", func() Script {
		return &BlinkScript{}
	}))
	mustRegister(r.RegisterState("world.states.example", func() State {
		return &ExampleState{}
	}))
}

// BaseObject is the default object typeclass: a plain thing with a
// description attribute.
type BaseObject struct{}

func (b *BaseObject) Key() string { return "base" }

func (b *BaseObject) AtCreation(g *Game, obj *gamedb.Object) error {
	if obj.Attr("desc") == "" {
		obj.SetAttr("desc", "You see nothing special.")
		g.PersistObject(obj)
	}
	return nil
}

func (b *BaseObject) AtLook(g *Game, obj *gamedb.Object, looker gamedb.DBRef) (string, error) {
	return fmt.Sprintf("%s(%s)\n%s", obj.Name, obj.DBRef, obj.Attr("desc")), nil
}

func (b *BaseObject) Scripts() []string { return nil }

// RedButton is a demonstration object: a big shiny button that blinks
// invitingly via its attached script.
type RedButton struct {
	BaseObject
}

func (b *RedButton) Key() string { return "red_button" }

func (b *RedButton) AtCreation(g *Game, obj *gamedb.Object) error {
	obj.SetAttr("desc", "A big red button with a digital display, blinking invitingly.")
	obj.SetAttr("presses", "0")
	g.PersistObject(obj)
	return nil
}

func (b *RedButton) Scripts() []string {
	return []string{"world.scripts.blink"}
}

// BlinkScript makes its holder blink at everyone in its location.
type BlinkScript struct{}

func (s *BlinkScript) Key() string { return "blink" }

func (s *BlinkScript) AtStart(g *Game, obj *gamedb.Object) error {
	if obj == nil {
		return fmt.Errorf("blink: no object to attach to")
	}
	return nil
}

func (s *BlinkScript) AtRepeat(g *Game, obj *gamedb.Object) error {
	if obj == nil {
		return fmt.Errorf("blink: lost the attached object")
	}
	for _, other := range g.DB.Objects {
		if other.Type == gamedb.TypePlayer && other.Location == obj.Location {
			g.EventBus.EmitToPlayer(other.DBRef, events.Event{
				Type:   events.EvText,
				Source: obj.DBRef,
				Text:   fmt.Sprintf("The %s blinks, demanding attention.", obj.Name),
			})
		}
	}
	return nil
}

// ExampleState demonstrates the state system. While active, its commands
// shadow the global table for that player.
type ExampleState struct{}

func (s *ExampleState) Key() string { return "example" }

func (s *ExampleState) Commands() []*Command {
	return []*Command{
		{Name: "smile", Handler: cmdStateSmile},
		{Name: "@testcommand", Handler: cmdStateTestCommand},
	}
}

func cmdStateSmile(g *Game, d *Descriptor, args string, _ []string) {
	name := g.PlayerName(d.Player)
	d.Send("You smile.")
	who, ok := g.DB.Objects[d.Player]
	if !ok {
		return
	}
	for _, other := range g.DB.Objects {
		if other.Type == gamedb.TypePlayer && other.DBRef != d.Player && other.Location == who.Location {
			g.EventBus.EmitToPlayer(other.DBRef, events.Event{
				Type:   events.EvPose,
				Source: d.Player,
				Text:   fmt.Sprintf("%s smiles.", name),
			})
		}
	}
}

func cmdStateTestCommand(g *Game, d *Descriptor, args string, switches []string) {
	sh := g.StateHandlerFor(d.Player)
	d.Send(fmt.Sprintf("State command works. %s", sh.String()))
}
