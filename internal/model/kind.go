package model

import (
	"fmt"
	"strings"
)

// Kind identifies which family of content an operation targets.
//
// Clients send kinds as strings in several spellings ("curso", "cursos",
// "Curso", "course"...). We parse those ONCE at the HTTP
// boundary with ParseKind and pass a typed Kind everywhere else, so the core
// never concatenates strings to find a collection or a field name.
type Kind string

const (
	KindCourse      Kind = "course"
	KindEvent       Kind = "event"
	KindOpportunity Kind = "opportunity"
)

// KindSpec is one row of the dispatch table: everything the core needs to
// know about a kind, resolved at startup.
type KindSpec struct {
	Kind Kind
	// Slug is the plural path segment used in URLs: /api/cursos, /api/eventos...
	Slug string
	// Collection is the table / collection the store keeps these offerings in.
	Collection string
	// Enrollable reports whether users can hold seats (capacity semantics).
	Enrollable bool
	// CheckIn reports whether attendance check-ins are accepted.
	CheckIn bool
}

var kindTable = map[Kind]KindSpec{
	KindCourse: {
		Kind:       KindCourse,
		Slug:       "cursos",
		Collection: "courses",
		Enrollable: true,
		CheckIn:    true,
	},
	KindEvent: {
		Kind:       KindEvent,
		Slug:       "eventos",
		Collection: "events",
		Enrollable: true,
		CheckIn:    true,
	},
	KindOpportunity: {
		Kind:       KindOpportunity,
		Slug:       "oportunidades",
		Collection: "opportunities",
	},
}

// kindAliases maps every accepted spelling to its Kind.
var kindAliases = map[string]Kind{
	"course": KindCourse, "courses": KindCourse, "curso": KindCourse, "cursos": KindCourse,
	"event": KindEvent, "events": KindEvent, "evento": KindEvent, "eventos": KindEvent,
	"opportunity": KindOpportunity, "opportunities": KindOpportunity,
	"oportunidade": KindOpportunity, "oportunidades": KindOpportunity,
}

// Kinds returns every known kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindCourse, KindEvent, KindOpportunity}
}

// ParseKind resolves a user-supplied kind string (case-insensitive).
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown content kind %q", s)
	}
	return k, nil
}

// Spec returns the dispatch entry for k. Unknown kinds return the zero
// KindSpec, whose flags are all false.
func (k Kind) Spec() KindSpec {
	return kindTable[k]
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}
