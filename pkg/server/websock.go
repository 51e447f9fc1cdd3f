package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emberline-mud/goember/pkg/events"
	"github.com/emberline-mud/goember/pkg/gamedb"
)

// WebServer serves the WebSocket transport. A WebSocket client gets a
// Descriptor like any telnet client; only the framing differs.
type WebServer struct {
	game     *Game
	srv      *http.Server
	upgrader websocket.Upgrader
}

// NewWebServer creates the WebSocket front end for a game.
func NewWebServer(game *Game) *WebServer {
	return &WebServer{
		game: game,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The game protocol carries no browser credentials.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start listens on host:port until Stop is called.
func (ws *WebServer) Start(host string, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.handleWebSocket)
	mux.HandleFunc("/healthz", ws.handleHealth)

	addr := fmt.Sprintf("%s:%d", host, port)
	ws.srv = &http.Server{Addr: addr, Handler: mux}
	log.Printf("Listening (websocket) on %s", addr)
	err := ws.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the web server down, allowing in-flight requests to finish.
func (ws *WebServer) Stop() {
	if ws.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws.srv.Shutdown(ctx)
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","players":%d}`, len(ws.game.Conns.ConnectedPlayers()))
}

// WSMessage is the JSON frame exchanged with WebSocket clients.
type WSMessage struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Channel string         `json:"channel,omitempty"`
	Command string         `json:"command,omitempty"`
}

// wsConn holds the WebSocket connection and its write mutex.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (wc *wsConn) sendJSON(msg WSMessage) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	wc.conn.WriteJSON(msg)
}

// handleWebSocket upgrades an HTTP connection and creates a game
// Descriptor for the client.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	remoteAddr := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			remoteAddr = strings.TrimSpace(xff[:idx])
		} else {
			remoteAddr = strings.TrimSpace(xff)
		}
	}

	d, wc := newWSDescriptor(ws.game, conn, remoteAddr)
	ws.game.Conns.Add(d)
	log.Printf("[ws:%d] New websocket connection from %s", d.ID, d.Addr)

	wc.sendJSON(WSMessage{
		Type: "welcome",
		Text: `Connected. Send {"type":"login","command":"connect name password"} to authenticate.`,
	})

	go ws.readLoop(d, wc)
}

// newWSDescriptor creates a Descriptor configured for WebSocket transport.
// SendFunc and ReceiveFunc route all output through JSON frames.
func newWSDescriptor(game *Game, conn *websocket.Conn, addr string) (*Descriptor, *wsConn) {
	wc := &wsConn{conn: conn}
	d := &Descriptor{
		ID:        game.Conns.NextID(),
		Conn:      nullConn{},
		State:     ConnLogin,
		Player:    gamedb.Nothing,
		Addr:      addr,
		ConnTime:  time.Now(),
		LastCmd:   time.Now(),
		Retries:   3,
		Transport: TransportWebSocket,
	}
	d.SendFunc = func(msg string) {
		wc.sendJSON(WSMessage{Type: "text", Text: msg})
	}
	d.ReceiveFunc = func(ev events.Event) {
		wc.sendJSON(WSMessage{
			Type:    ev.Type.String(),
			Text:    ev.Text,
			Data:    ev.Data,
			Channel: ev.Channel,
		})
	}
	return d, wc
}

func (ws *WebServer) readLoop(d *Descriptor, wc *wsConn) {
	defer func() {
		ws.game.DisconnectPlayer(d)
		ws.game.Conns.Remove(d)
		wc.conn.Close()
		log.Printf("[ws:%d] WebSocket closed from %s", d.ID, d.Addr)
	}()

	for {
		_, msgBytes, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws:%d] read error: %v", d.ID, err)
			}
			return
		}

		d.LastCmd = time.Now()

		var msg WSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			wc.sendJSON(WSMessage{Type: "error", Text: "Invalid JSON message"})
			continue
		}

		switch msg.Type {
		case "command":
			if d.State == ConnLogin {
				ws.handleLogin(d, wc, msg.Command)
			} else {
				DispatchCommand(ws.game, d, msg.Command)
			}
		case "login":
			ws.handleLogin(d, wc, msg.Command)
		default:
			wc.sendJSON(WSMessage{Type: "error", Text: fmt.Sprintf("Unknown message type: %s", msg.Type)})
		}
	}
}

func (ws *WebServer) handleLogin(d *Descriptor, wc *wsConn, input string) {
	command, user, password := ParseConnect(input)
	if !strings.HasPrefix(command, "co") {
		wc.sendJSON(WSMessage{Type: "error", Text: "Use: connect <name> <password>"})
		return
	}

	player := ws.game.DB.LookupPlayer(user)
	if player == gamedb.Nothing || !CheckPassword(ws.game.DB, player, password) {
		wc.sendJSON(WSMessage{Type: "error", Text: "Invalid credentials"})
		d.Retries--
		if d.Retries <= 0 {
			wc.sendJSON(WSMessage{Type: "error", Text: "Too many failed attempts."})
			wc.conn.Close()
		}
		return
	}

	ws.game.Conns.Login(d, player)
	wc.sendJSON(WSMessage{
		Type: "login",
		Data: map[string]any{
			"player_ref":  int(player),
			"player_name": ws.game.PlayerName(player),
		},
	})
	cmdLook(ws.game, d, "", nil)
}
