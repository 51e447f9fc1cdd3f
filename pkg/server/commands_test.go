package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

// testEnv holds the shared test infrastructure: a game with Limbo (#0),
// the God player (#1, wizard+immortal) and Bob (#2, wizard only, so the
// permission machinery actually runs for him).
type testEnv struct {
	game *Game
	god  *Descriptor
	bob  *Descriptor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := gamedb.NewDatabase()

	db.Objects[0] = &gamedb.Object{
		DBRef:    0,
		Name:     "Limbo",
		Type:     gamedb.TypeRoom,
		Location: gamedb.Nothing,
		Owner:    1,
		Parent:   gamedb.Nothing,
		Attrs:    map[string]string{"desc": "You float in a formless void."},
	}
	db.Objects[1] = &gamedb.Object{
		DBRef:    1,
		Name:     "God",
		Type:     gamedb.TypePlayer,
		Location: 0,
		Owner:    1,
		Parent:   gamedb.Nothing,
		Flags:    gamedb.FlagWizard | gamedb.FlagImmortal,
	}
	db.Objects[2] = &gamedb.Object{
		DBRef:    2,
		Name:     "Bob",
		Type:     gamedb.TypePlayer,
		Location: 0,
		Owner:    2,
		Parent:   gamedb.Nothing,
		Flags:    gamedb.FlagWizard,
	}
	db.NextRef = 3

	g := NewGame(db, nil)

	env := &testEnv{
		game: g,
		god:  makeTestDescriptor(t, g, 1),
		bob:  makeTestDescriptor(t, g, 2),
	}
	clearOutput(env.god)
	clearOutput(env.bob)
	return env
}

// makeTestDescriptor creates a logged-in Descriptor whose output is
// captured in a buffer instead of going to a socket.
func makeTestDescriptor(t *testing.T, g *Game, player gamedb.DBRef) *Descriptor {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})

	d := &Descriptor{
		ID:       g.Conns.NextID(),
		Conn:     &bufferConn{conn: serverConn},
		Reader:   bufio.NewReader(serverConn),
		State:    ConnConnected,
		Player:   player,
		Addr:     "test",
		ConnTime: time.Now(),
		LastCmd:  time.Now(),
		Retries:  3,
	}
	g.Conns.Add(d)
	g.Conns.Login(d, player)
	return d
}

// bufferConn satisfies net.Conn but stores all writes for inspection.
// net.Pipe is synchronous, so writing to it directly would deadlock.
type bufferConn struct {
	conn net.Conn
	buf  strings.Builder
}

func (b *bufferConn) Read([]byte) (int, error) {
	return 0, fmt.Errorf("read not supported on server side")
}

func (b *bufferConn) Write(p []byte) (int, error) {
	b.buf.Write(p)
	return len(p), nil
}

func (b *bufferConn) Close() error                     { return b.conn.Close() }
func (b *bufferConn) LocalAddr() net.Addr              { return b.conn.LocalAddr() }
func (b *bufferConn) RemoteAddr() net.Addr             { return b.conn.RemoteAddr() }
func (b *bufferConn) SetDeadline(time.Time) error      { return nil }
func (b *bufferConn) SetReadDeadline(time.Time) error  { return nil }
func (b *bufferConn) SetWriteDeadline(time.Time) error { return nil }

// getOutput returns all buffered output and clears the buffer.
func getOutput(d *Descriptor) string {
	w, ok := d.Conn.(*bufferConn)
	if !ok {
		return ""
	}
	s := w.buf.String()
	w.buf.Reset()
	return strings.TrimRight(s, "\r\n")
}

// clearOutput discards any buffered output.
func clearOutput(d *Descriptor) {
	if w, ok := d.Conn.(*bufferConn); ok {
		w.buf.Reset()
	}
}

// --- Tests ---

func TestDispatchCommand_Say(t *testing.T) {
	env := newTestEnv(t)

	DispatchCommand(env.game, env.bob, "say Hello World")
	out := getOutput(env.bob)
	if !strings.Contains(out, `You say, "Hello World"`) {
		t.Errorf("say: expected 'You say, \"Hello World\"', got: %s", out)
	}
	heard := getOutput(env.god)
	if !strings.Contains(heard, `Bob says, "Hello World"`) {
		t.Errorf("say: god expected to hear Bob, got: %s", heard)
	}
}

func TestDispatchCommand_SayQuotePrefix(t *testing.T) {
	env := newTestEnv(t)

	DispatchCommand(env.game, env.bob, `"hi there`)
	out := getOutput(env.bob)
	if !strings.Contains(out, `You say, "hi there"`) {
		t.Errorf("quote prefix: got: %s", out)
	}
}

func TestDispatchCommand_Huh(t *testing.T) {
	env := newTestEnv(t)

	DispatchCommand(env.game, env.bob, "frobnicate widget")
	out := getOutput(env.bob)
	if !strings.Contains(out, "Huh?") {
		t.Errorf("unknown command: expected Huh?, got: %s", out)
	}
}

func TestDispatchCommand_Version(t *testing.T) {
	env := newTestEnv(t)

	DispatchCommand(env.game, env.bob, "@version")
	out := getOutput(env.bob)
	if !strings.Contains(out, "goember") {
		t.Errorf("@version: got: %s", out)
	}
}

func TestDispatchCommand_Who(t *testing.T) {
	env := newTestEnv(t)

	DispatchCommand(env.game, env.bob, "WHO")
	out := getOutput(env.bob)
	if !strings.Contains(out, "2 connected") {
		t.Errorf("WHO: expected 2 connected, got: %s", out)
	}
	if !strings.Contains(out, "Bob") || !strings.Contains(out, "God") {
		t.Errorf("WHO: expected both players listed, got: %s", out)
	}
}

func TestDispatchCommand_PermissionDenied(t *testing.T) {
	env := newTestEnv(t)

	// Strip Bob's wizard flag so staff-only commands are refused.
	env.game.DB.Objects[2].ClearFlag(gamedb.FlagWizard)
	DispatchCommand(env.game, env.bob, "@test hello")
	out := getOutput(env.bob)
	if !strings.Contains(out, "Permission denied.") {
		t.Errorf("expected permission denied, got: %s", out)
	}
}

func TestDispatchCommand_SwitchParsing(t *testing.T) {
	env := newTestEnv(t)

	DispatchCommand(env.game, env.bob, "@test/one/two some args")
	out := getOutput(env.bob)
	if !strings.Contains(out, "switches: [one, two]") {
		t.Errorf("switch parsing: got: %s", out)
	}
	if !strings.Contains(out, "args:     some args") {
		t.Errorf("args parsing: got: %s", out)
	}
}

func TestDispatchCommand_AtPrefixMatch(t *testing.T) {
	env := newTestEnv(t)

	// @testp unambiguously prefixes @testperm.
	DispatchCommand(env.game, env.god, "@testp")
	out := getOutput(env.god)
	if !strings.Contains(out, "You are a superuser. Permission tests are pointless.") {
		t.Errorf("@testp prefix match: got: %s", out)
	}

	// @te is an exact alias of @test, so it resolves before prefix matching.
	DispatchCommand(env.game, env.god, "@te ping")
	out = getOutput(env.god)
	if !strings.Contains(out, "args:     ping") {
		t.Errorf("@te alias: got: %s", out)
	}
}

func TestCreateObjectAllocatesRefs(t *testing.T) {
	env := newTestEnv(t)

	a := env.game.CreateObject(gamedb.Nothing, "thing one", gamedb.TypeThing, 1)
	b := env.game.CreateObject(gamedb.Nothing, "thing two", gamedb.TypeThing, 1)
	if a.DBRef == b.DBRef {
		t.Fatalf("expected distinct refs, both got %s", a.DBRef)
	}
	if _, ok := env.game.DB.Objects[a.DBRef]; !ok {
		t.Fatalf("created object %s not in db", a.DBRef)
	}

	env.game.DeleteObject(a.DBRef)
	if _, ok := env.game.DB.Objects[a.DBRef]; ok {
		t.Fatalf("deleted object %s still in db", a.DBRef)
	}
}
