package server

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emberline-mud/goember/pkg/events"
	"github.com/emberline-mud/goember/pkg/gamedb"
)

// Server owns the network listeners and the connection lifecycle.
type Server struct {
	Conf        *GameConf
	Game        *Game
	listener    net.Listener
	tlsListener net.Listener
	web         *WebServer
}

// NewServer creates a server around an existing game.
func NewServer(game *Game) *Server {
	return &Server{
		Conf: game.Conf,
		Game: game,
	}
}

// Start begins listening for connections. It blocks until all listeners
// stop.
func (s *Server) Start() error {
	if !s.Conf.CleartextEnabled() && !s.Conf.TLS {
		return fmt.Errorf("both cleartext and TLS listeners are disabled; nothing to listen on")
	}

	log.Printf("Database: %d objects", len(s.Game.DB.Objects))

	playerCount := 0
	for _, obj := range s.Game.DB.Objects {
		if obj.Type == gamedb.TypePlayer && !obj.HasFlag(gamedb.FlagGoing) {
			playerCount++
		}
	}
	log.Printf("Players in database: %d", playerCount)

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	if s.Conf.CleartextEnabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Conf.Port))
			if err != nil {
				errCh <- fmt.Errorf("cleartext listener: %w", err)
				return
			}
			s.listener = ln
			log.Printf("Listening (cleartext) on port %d", s.Conf.Port)
			s.acceptLoop(ln)
		}()
	}

	if s.Conf.TLS {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cert, err := tls.LoadX509KeyPair(s.Conf.TLSCert, s.Conf.TLSKey)
			if err != nil {
				errCh <- fmt.Errorf("TLS cert load: %w", err)
				return
			}
			tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
			ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", s.Conf.TLSPort), tlsCfg)
			if err != nil {
				errCh <- fmt.Errorf("TLS listener: %w", err)
				return
			}
			s.tlsListener = ln
			log.Printf("Listening (TLS) on port %d", s.Conf.TLSPort)
			s.acceptLoop(ln)
		}()
	}

	if s.Conf.WebEnabled {
		s.web = NewWebServer(s.Game)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.web.Start(s.Conf.WebHost, s.Conf.WebPort); err != nil {
				errCh <- fmt.Errorf("web server: %w", err)
			}
		}()
	}

	// Catch early startup failures before blocking.
	select {
	case err := <-errCh:
		return err
	default:
	}

	wg.Wait()
	return nil
}

// acceptLoop accepts connections on the given listener until it is closed.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		go s.HandleConnection(conn)
	}
}

// Stop closes all active listeners.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	if s.tlsListener != nil {
		s.tlsListener.Close()
	}
	if s.web != nil {
		s.web.Stop()
	}
}

// HandleConnection manages a single client connection lifecycle.
func (s *Server) HandleConnection(conn net.Conn) {
	id := s.Game.Conns.NextID()
	d := NewDescriptor(id, conn)
	s.Game.Conns.Add(d)

	log.Printf("[%d] New connection from %s", d.ID, d.Addr)

	defer func() {
		s.Game.DisconnectPlayer(d)
		s.Game.Conns.Remove(d)
		d.Close()
		log.Printf("[%d] Connection closed from %s", d.ID, d.Addr)
	}()

	s.sendWelcome(d)

	scanner := bufio.NewScanner(d.Conn)
	scanner.Buffer(make([]byte, 8192), 8192)

	for scanner.Scan() {
		if d.IsClosed() {
			return
		}

		line := stripTelnet(scanner.Text())
		line = strings.TrimRight(line, "\r\n")
		d.LastCmd = time.Now()

		if d.State == ConnLogin {
			s.handleLoginCommand(d, line)
		} else {
			DispatchCommand(s.Game, d, line)
		}

		if d.IsClosed() {
			return
		}
	}
}

// sendWelcome shows the welcome screen, preferring connect.txt when loaded.
func (s *Server) sendWelcome(d *Descriptor) {
	if s.Game.Texts != nil {
		if txt := s.Game.Texts.GetConnect(); txt != "" {
			d.SendNoNewline(txt)
			return
		}
	}
	d.SendNoNewline(WelcomeText)
}

// handleLoginCommand processes pre-login commands.
func (s *Server) handleLoginCommand(d *Descriptor, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	upper := strings.ToUpper(input)
	if upper == "QUIT" {
		if s.Game.Texts != nil && s.Game.Texts.GetQuit() != "" {
			d.SendNoNewline(s.Game.Texts.GetQuit())
		} else {
			d.Send("Goodbye!")
		}
		d.Close()
		return
	}
	if upper == "WHO" {
		cmdWho(s.Game, d, "", nil)
		return
	}

	command, user, password := ParseConnect(input)

	switch {
	case strings.HasPrefix(command, "co"):
		s.handleConnect(d, user, password)
	case strings.HasPrefix(command, "cr"):
		s.handleCreate(d, user, password)
	default:
		d.Send(fmt.Sprintf("Welcome to %s. Commands: connect, create, WHO, QUIT", s.Conf.MudName))
	}
}

// loginFailure reports a failed attempt and disconnects after too many.
func loginFailure(d *Descriptor) {
	d.Send("Either that player does not exist, or has a different password.")
	d.Retries--
	if d.Retries <= 0 {
		d.Send("Too many failed attempts. Disconnecting.")
		d.Close()
	}
}

// handleConnect authenticates and logs in a player.
func (s *Server) handleConnect(d *Descriptor, user, password string) {
	if user == "" {
		d.Send("Usage: connect <name> <password>")
		return
	}

	player := s.Game.DB.LookupPlayer(user)
	if player == gamedb.Nothing {
		loginFailure(d)
		return
	}
	if !CheckPassword(s.Game.DB, player, password) {
		loginFailure(d)
		return
	}

	s.Game.Conns.Login(d, player)
	playerObj := s.Game.DB.Objects[player]
	log.Printf("[%d] Player %s(%s) connected from %s", d.ID, playerObj.Name, player, d.Addr)

	d.Send(fmt.Sprintf("Welcome back, %s!", playerObj.Name))
	if s.Game.Texts != nil {
		if txt := s.Game.Texts.GetMotd(); txt != "" {
			d.SendNoNewline(txt)
		}
	}

	s.Game.announceConnState(player, playerObj.Location, events.EvConnect,
		fmt.Sprintf("%s has connected.", playerObj.Name))
	cmdLook(s.Game, d, "", nil)
}

// handleCreate creates a new player and logs them in.
func (s *Server) handleCreate(d *Descriptor, user, password string) {
	if user == "" || password == "" {
		d.Send("Usage: create <name> <password>")
		return
	}
	if s.Game.DB.LookupPlayer(user) != gamedb.Nothing {
		d.Send("That name is already taken.")
		return
	}
	if len(user) < 2 {
		d.Send("That name is too short.")
		return
	}

	playerObj, err := s.Game.CreatePlayer(user, password)
	if err != nil {
		d.Send("That name contains illegal characters.")
		return
	}

	log.Printf("[%d] New player %s(%s) created from %s", d.ID, user, playerObj.DBRef, d.Addr)
	s.Game.Conns.Login(d, playerObj.DBRef)

	d.Send(fmt.Sprintf("Welcome to %s, %s! Your character has been created as %s.",
		s.Conf.MudName, user, playerObj.DBRef))
	if s.Game.Texts != nil {
		if txt := s.Game.Texts.GetNewUser(); txt != "" {
			d.SendNoNewline(txt)
		}
	}
	cmdLook(s.Game, d, "", nil)
}

// DisconnectPlayer announces a logout and clears the descriptor's player
// association. Safe to call for never-logged-in descriptors.
func (g *Game) DisconnectPlayer(d *Descriptor) {
	if d.State != ConnConnected || d.Player == gamedb.Nothing {
		return
	}
	playerObj, ok := g.DB.Objects[d.Player]
	if !ok {
		return
	}
	// Only announce when the last connection for this player drops.
	if len(g.Conns.GetByPlayer(d.Player)) <= 1 {
		g.announceConnState(d.Player, playerObj.Location, events.EvDisconnect,
			fmt.Sprintf("%s has disconnected.", playerObj.Name))
	}
}

// announceConnState tells everyone else in the room about a connection
// change.
func (g *Game) announceConnState(player gamedb.DBRef, loc gamedb.DBRef, typ events.EventType, msg string) {
	for _, other := range g.DB.Objects {
		if other.Type != gamedb.TypePlayer || other.DBRef == player || other.Location != loc {
			continue
		}
		g.EventBus.EmitToPlayer(other.DBRef, events.Event{
			Type:   typ,
			Source: player,
			Text:   msg,
		})
	}
}

// stripTelnet removes telnet IAC command sequences and stray control
// characters from input.
func stripTelnet(s string) string {
	var buf strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == 0xFF && i+2 < len(s) {
			i += 3
			continue
		}
		if s[i] == 0xFF && i+1 < len(s) {
			i += 2
			continue
		}
		if s[i] < 32 && s[i] != '\t' {
			i++
			continue
		}
		buf.WriteByte(s[i])
		i++
	}
	return buf.String()
}
