package registry

import (
	"fmt"
	"strings"
)

// Kind is a transport kind.
type Kind string

const (
	KindTelegram Kind = "telegram"
	KindTerminal Kind = "terminal"
)

// Valid reports whether k is a known transport.
func (k Kind) Valid() bool {
	return k == KindTelegram || k == KindTerminal
}

// Lineage builds the conversation key for a session, e.g. "telegram:42".
func Lineage(kind Kind, id string) string {
	return string(kind) + ":" + id
}

// Scope selects the sessions a broadcast reaches.
type Scope struct {
	kind    Kind
	lineage string
}

// ScopeAll matches every session.
var ScopeAll = Scope{}

// ParseScope accepts "all", a transport kind ("telegram", "terminal") or a
// lineage ("telegram:<chat id>", "terminal:<user id>"). Empty means all.
func ParseScope(s string) (Scope, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return ScopeAll, nil
	}

	kindPart, id, hasID := strings.Cut(s, ":")
	kind := Kind(strings.ToLower(kindPart))
	if !kind.Valid() {
		return Scope{}, fmt.Errorf("unknown scope %q: want all, telegram, terminal or <kind>:<id>", s)
	}
	if !hasID {
		return Scope{kind: kind}, nil
	}
	if id == "" {
		return Scope{}, fmt.Errorf("scope %q: empty session id", s)
	}
	return Scope{kind: kind, lineage: Lineage(kind, id)}, nil
}

// IsAll reports whether the scope matches every session.
func (s Scope) IsAll() bool {
	return s.kind == ""
}

// Matches reports whether sess is inside the scope.
func (s Scope) Matches(sess Session) bool {
	switch {
	case s.IsAll():
		return true
	case s.lineage != "":
		return sess.Lineage == s.lineage
	default:
		return sess.Kind == s.kind
	}
}

func (s Scope) String() string {
	switch {
	case s.IsAll():
		return "all"
	case s.lineage != "":
		return s.lineage
	default:
		return string(s.kind)
	}
}
