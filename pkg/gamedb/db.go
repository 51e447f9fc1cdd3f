package gamedb

import (
	"fmt"
	"strings"
	"time"
)

// DBRef is a database reference number identifying a game object.
type DBRef int

// Nothing is the null dbref.
const Nothing DBRef = -1

// String renders a dbref in the conventional #n form.
func (r DBRef) String() string {
	return fmt.Sprintf("#%d", int(r))
}

// ObjType identifies the kind of game object.
type ObjType int

const (
	TypeRoom ObjType = iota
	TypeThing
	TypePlayer
	TypeExit
)

// String returns a human-readable name for the object type.
func (t ObjType) String() string {
	switch t {
	case TypeRoom:
		return "Room"
	case TypeThing:
		return "Thing"
	case TypePlayer:
		return "Player"
	case TypeExit:
		return "Exit"
	default:
		return "Unknown"
	}
}

// Object flag bits.
const (
	FlagWizard   = 1 << 0 // staff privileges
	FlagImmortal = 1 << 1 // superuser; bypasses all permission checks
	FlagDark     = 1 << 2 // hidden from WHO
	FlagGoing    = 1 << 3 // scheduled for destruction
)

// Object is a single game entity: room, thing, player or exit.
//
// Perms is the object's permission list. Entries on an acting object are
// the keys it holds; entries on an accessed object are the locks guarding
// it. A lock entry may carry a "name:" prefix selecting a named access
// mode, and may be a predicate call such as has_id(5) or
// has_attr(name, value).
type Object struct {
	DBRef    DBRef
	Name     string
	Type     ObjType
	Location DBRef
	Owner    DBRef
	Parent   DBRef
	Flags    int
	Perms    []string
	Attrs    map[string]string
	PassHash string // bcrypt hash, players only
	Created  time.Time
}

// HasFlag returns true if the given flag bit is set.
func (o *Object) HasFlag(flag int) bool {
	return o.Flags&flag != 0
}

// SetFlag sets a flag bit.
func (o *Object) SetFlag(flag int) {
	o.Flags |= flag
}

// ClearFlag clears a flag bit.
func (o *Object) ClearFlag(flag int) {
	o.Flags &^= flag
}

// Attr returns the value of a named attribute, or "" if unset.
func (o *Object) Attr(name string) string {
	if o.Attrs == nil {
		return ""
	}
	return o.Attrs[strings.ToLower(name)]
}

// SetAttr sets a named attribute.
func (o *Object) SetAttr(name, value string) {
	if o.Attrs == nil {
		o.Attrs = make(map[string]string)
	}
	o.Attrs[strings.ToLower(name)] = value
}

// DelAttr removes a named attribute.
func (o *Object) DelAttr(name string) {
	if o.Attrs != nil {
		delete(o.Attrs, strings.ToLower(name))
	}
}

// PermString renders the permission list for display.
func (o *Object) PermString() string {
	return strings.Join(o.Perms, ", ")
}

// Database is the in-memory object store. Command processing is
// synchronous per actor, so the map itself carries no lock; persistence
// transactions live in boltstore.
type Database struct {
	Objects map[DBRef]*Object
	NextRef DBRef
	Version int
}

// NewDatabase creates an empty database.
func NewDatabase() *Database {
	return &Database{
		Objects: make(map[DBRef]*Object),
		NextRef: 0,
		Version: 1,
	}
}

// Allocate reserves and returns the next free dbref.
func (db *Database) Allocate() DBRef {
	ref := db.NextRef
	db.NextRef++
	return ref
}

// Add inserts an object, bumping NextRef past it if needed.
func (db *Database) Add(o *Object) {
	db.Objects[o.DBRef] = o
	if o.DBRef >= db.NextRef {
		db.NextRef = o.DBRef + 1
	}
}

// Remove deletes an object from the database.
func (db *Database) Remove(ref DBRef) {
	delete(db.Objects, ref)
}

// LookupPlayer finds a player by name (case-insensitive exact match).
func (db *Database) LookupPlayer(name string) DBRef {
	name = strings.TrimSpace(name)
	for _, obj := range db.Objects {
		if obj.Type == TypePlayer && strings.EqualFold(obj.Name, name) {
			return obj.DBRef
		}
	}
	return Nothing
}
