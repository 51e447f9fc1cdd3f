package server

import (
	"log"
	"strconv"
	"strings"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

// The permission system works on the Perms list carried by every object.
// Entries on an acting object are the keys it holds; entries on an accessed
// object are locks. A lock entry is an expression over keys and predicate
// calls, optionally prefixed with "name:" to guard a named access mode:
//
//	has_permission
//	skey:has_permission
//	has_id(5) & !has_attr(banned)
//
// HasPerm grants access if ANY lock entry for the requested mode passes.
// An object with no locks for the requested mode is unrestricted.

// IsGod returns true if player is the God player.
func IsGod(g *Game, player gamedb.DBRef) bool {
	return player == g.GodPlayer()
}

// Wizard returns true if player carries staff privileges.
func Wizard(g *Game, player gamedb.DBRef) bool {
	o, ok := g.DB.Objects[player]
	if !ok {
		return false
	}
	return o.HasFlag(gamedb.FlagWizard) || o.HasFlag(gamedb.FlagImmortal)
}

// Superuser returns true if player bypasses all permission checks.
func Superuser(g *Game, player gamedb.DBRef) bool {
	o, ok := g.DB.Objects[player]
	if !ok {
		return false
	}
	return o.HasFlag(gamedb.FlagImmortal)
}

// Controls returns true if player may modify target: self, God, wizards,
// or the target's owner.
func Controls(g *Game, player, target gamedb.DBRef) bool {
	if player == target {
		return true
	}
	if IsGod(g, target) && !IsGod(g, player) {
		return false
	}
	if Wizard(g, player) {
		return true
	}
	tObj, ok := g.DB.Objects[target]
	return ok && tObj.Owner == player
}

// SetPerm replaces an object's permission list with the single given entry.
func SetPerm(g *Game, obj *gamedb.Object, perm string) {
	perm = strings.TrimSpace(perm)
	if perm == "" {
		obj.Perms = nil
	} else {
		obj.Perms = []string{perm}
	}
	g.PersistObject(obj)
}

// AddPerm appends an entry to an object's permission list if not present.
func AddPerm(g *Game, obj *gamedb.Object, perm string) {
	perm = strings.TrimSpace(perm)
	if perm == "" {
		return
	}
	for _, p := range obj.Perms {
		if strings.EqualFold(p, perm) {
			return
		}
	}
	obj.Perms = append(obj.Perms, perm)
	g.PersistObject(obj)
}

// DelPerm removes an entry from an object's permission list.
func DelPerm(g *Game, obj *gamedb.Object, perm string) {
	perm = strings.TrimSpace(perm)
	for i, p := range obj.Perms {
		if strings.EqualFold(p, perm) {
			obj.Perms = append(obj.Perms[:i], obj.Perms[i+1:]...)
			g.PersistObject(obj)
			return
		}
	}
}

// ClearPerms removes all entries from an object's permission list.
func ClearPerms(g *Game, obj *gamedb.Object) {
	obj.Perms = nil
	g.PersistObject(obj)
}

// HasPerm checks whether who passes target's locks. With no skey, the
// default (unprefixed) locks apply; with an skey, only locks carrying that
// prefix apply. Superusers always pass.
func HasPerm(g *Game, who, target *gamedb.Object, skey ...string) bool {
	if who == nil || target == nil {
		return false
	}
	if who.HasFlag(gamedb.FlagImmortal) {
		return true
	}
	mode := ""
	if len(skey) > 0 {
		mode = strings.ToLower(skey[0])
	}

	matched := false
	for _, entry := range target.Perms {
		prefix, expr := SplitSKey(entry)
		if prefix != mode {
			continue
		}
		matched = true
		if EvalPermExpr(g, who, expr) {
			return true
		}
	}
	// No locks for this mode means unrestricted.
	return !matched
}

// SplitSKey splits a lock entry into its access-mode prefix and expression.
// "skey:has_permission" -> ("skey", "has_permission"); entries without a
// bare-identifier prefix return ("", entry). The colon must come before any
// parenthesis so predicate arguments are never mistaken for a prefix.
func SplitSKey(entry string) (string, string) {
	entry = strings.TrimSpace(entry)
	colon := strings.IndexByte(entry, ':')
	if colon <= 0 {
		return "", entry
	}
	if paren := strings.IndexByte(entry, '('); paren >= 0 && paren < colon {
		return "", entry
	}
	prefix := strings.TrimSpace(entry[:colon])
	for i := 0; i < len(prefix); i++ {
		if !isPermIdentByte(prefix[i]) {
			return "", entry
		}
	}
	return strings.ToLower(prefix), strings.TrimSpace(entry[colon+1:])
}

// ---------- Parser ----------

// permParser holds the state for parsing a lock expression.
type permParser struct {
	g   *Game
	who *gamedb.Object
	src string
	pos int
	bad bool
}

func (p *permParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *permParser) advance() byte {
	ch := p.peek()
	if ch != 0 {
		p.pos++
	}
	return ch
}

func (p *permParser) skipSpaces() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

// EvalPermExpr evaluates a lock expression against who.
// Grammar:
//
//	E → T ('|' E)?
//	T → F ('&' T)?
//	F → '!' F | '(' E ')' | name '(' args ')' | name
//
// Malformed expressions evaluate false and are logged; a bad lock denies.
func EvalPermExpr(g *Game, who *gamedb.Object, expr string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false
	}
	p := &permParser{g: g, who: who, src: expr}
	result := p.parseE()
	p.skipSpaces()
	if p.bad || p.pos != len(p.src) {
		log.Printf("perms: malformed lock %q at %d", expr, p.pos)
		return false
	}
	return result
}

func (p *permParser) parseE() bool {
	left := p.parseT()
	p.skipSpaces()
	if p.peek() == '|' {
		p.advance()
		right := p.parseE()
		return left || right
	}
	return left
}

func (p *permParser) parseT() bool {
	left := p.parseF()
	p.skipSpaces()
	if p.peek() == '&' {
		p.advance()
		right := p.parseT()
		return left && right
	}
	return left
}

func (p *permParser) parseF() bool {
	p.skipSpaces()
	switch p.peek() {
	case '!':
		p.advance()
		return !p.parseF()
	case '(':
		p.advance()
		result := p.parseE()
		p.skipSpaces()
		if p.peek() != ')' {
			p.bad = true
			return false
		}
		p.advance()
		return result
	}
	return p.parseLeaf()
}

// parseLeaf handles a bare key or a predicate call.
func (p *permParser) parseLeaf() bool {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.src) && isPermIdentByte(p.src[p.pos]) {
		p.pos++
	}
	name := p.src[start:p.pos]
	if name == "" {
		p.bad = true
		return false
	}

	p.skipSpaces()
	if p.peek() != '(' {
		// Bare key: who must hold it.
		return holdsKey(p.who, name)
	}

	// Predicate call.
	p.advance()
	depth := 1
	argStart := p.pos
	for p.pos < len(p.src) && depth > 0 {
		switch p.src[p.pos] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth > 0 {
			p.pos++
		}
	}
	rawArgs := p.src[argStart:p.pos]
	if p.peek() != ')' {
		p.bad = true
		return false
	}
	p.advance()

	var args []string
	if strings.TrimSpace(rawArgs) != "" {
		for _, a := range strings.Split(rawArgs, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}

	pred, ok := permPredicates[strings.ToLower(name)]
	if !ok {
		log.Printf("perms: unknown predicate %q in lock %q", name, p.src)
		return false
	}
	return pred(p.g, p.who, args)
}

func isPermIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// holdsKey checks if who carries the given key in its permission list.
// Lock-style entries (prefixed or predicate calls) never match as keys.
func holdsKey(who *gamedb.Object, key string) bool {
	for _, p := range who.Perms {
		if strings.EqualFold(p, key) {
			return true
		}
	}
	return false
}

// ---------- Predicates ----------

// PermPredicate evaluates a function-style lock term against the accessor.
type PermPredicate func(g *Game, who *gamedb.Object, args []string) bool

var permPredicates = map[string]PermPredicate{
	"has_id":   predHasID,
	"has_attr": predHasAttr,
}

// predHasID passes if who's dbref equals the single numeric argument.
func predHasID(g *Game, who *gamedb.Object, args []string) bool {
	if len(args) != 1 {
		return false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		return false
	}
	return who.DBRef == gamedb.DBRef(n)
}

// predHasAttr passes if who carries the named attribute; with a second
// argument the value must also match.
func predHasAttr(g *Game, who *gamedb.Object, args []string) bool {
	if len(args) == 0 {
		return false
	}
	val := who.Attr(args[0])
	if len(args) == 1 {
		return val != ""
	}
	return val == args[1]
}

// CheckCommandPerm checks a command's permission requirement for a player.
// "" is open to everyone, "wizard" requires staff, and any other word is a
// key the player must hold (staff pass all key requirements).
func (g *Game) CheckCommandPerm(player gamedb.DBRef, perm string) bool {
	if perm == "" {
		return true
	}
	if Wizard(g, player) {
		return true
	}
	if strings.EqualFold(perm, "wizard") {
		return false
	}
	o, ok := g.DB.Objects[player]
	return ok && holdsKey(o, perm)
}
