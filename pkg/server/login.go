package server

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

// ParseConnect parses a login-screen command into (command, user, password).
// Handles: "connect name password", "create name password".
func ParseConnect(msg string) (command, user, password string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", "", ""
	}

	parts := strings.SplitN(msg, " ", 2)
	command = strings.ToLower(parts[0])
	if len(parts) < 2 {
		return command, "", ""
	}

	rest := strings.TrimSpace(parts[1])
	if rest == "" {
		return command, "", ""
	}

	// Quoted names allow spaces.
	if rest[0] == '"' {
		end := strings.Index(rest[1:], "\"")
		if end >= 0 {
			user = rest[1 : end+1]
			password = strings.TrimSpace(rest[end+2:])
			return
		}
	}

	parts = strings.SplitN(rest, " ", 2)
	user = parts[0]
	if len(parts) > 1 {
		password = strings.TrimSpace(parts[1])
	}
	return
}

// CheckPassword verifies a password against a player's stored bcrypt hash.
func CheckPassword(db *gamedb.Database, player gamedb.DBRef, password string) bool {
	obj, ok := db.Objects[player]
	if !ok || obj.PassHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(obj.PassHash), []byte(password)) == nil
}

// SetPassword hashes and stores a player's password.
func SetPassword(obj *gamedb.Object, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	obj.PassHash = string(hash)
	return nil
}

// validPlayerName rejects names that would confuse the parser or collide
// with dbref notation.
func validPlayerName(name string) bool {
	if name == "" || len(name) > 32 {
		return false
	}
	if name[0] == '#' || name[0] == '@' || name[0] == '"' || name[0] == ':' {
		return false
	}
	return !strings.ContainsAny(name, "=&|()")
}

// CreatePlayer makes a new player object with the given name and password,
// placed in the starting room.
func (g *Game) CreatePlayer(name, password string) (*gamedb.Object, error) {
	name = strings.TrimSpace(name)
	if !validPlayerName(name) {
		return nil, fmt.Errorf("invalid player name %q", name)
	}
	if g.DB.LookupPlayer(name) != gamedb.Nothing {
		return nil, fmt.Errorf("player %q already exists", name)
	}

	obj := g.CreateObject(gamedb.Nothing, name, gamedb.TypePlayer, gamedb.Nothing)
	obj.Owner = obj.DBRef
	obj.Location = 0 // starting room
	if err := SetPassword(obj, password); err != nil {
		g.DeleteObject(obj.DBRef)
		return nil, err
	}
	g.PersistObject(obj)
	return obj, nil
}

// WelcomeText is the built-in welcome screen, shown when no connect.txt is
// configured.
const WelcomeText = `
                            _                   _ _
   __ _  ___   ___ _ __ ___ | |__   ___ _ __ ___| (_)_ __   ___
  / _` + "`" + ` |/ _ \ / _ \ '_ ` + "`" + ` _ \| '_ \ / _ \ '__/ __| | | '_ \ / _ \
 | (_| | (_) |  __/ | | | | | |_) |  __/ |  \__ \ | | | | |  __/
  \__, |\___/ \___|_| |_| |_|_.__/ \___|_|  |___/_|_|_| |_|\___|
  |___/

"connect <name> <password>" to connect to your existing character.
"create <name> <password>" to create a new character.
"WHO" to see who is connected.
"QUIT" to disconnect.

`
