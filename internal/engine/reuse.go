package engine

import (
	"fmt"
	"strings"
)

// Reuse selects how much dataflow state universes share with the shared
// graph and with each other.
type Reuse int

const (
	// NoReuse gives every universe a private copy of every relation and query.
	NoReuse Reuse = iota
	// Finkelstein shares relations no policy covers; queries stay private.
	Finkelstein
	// Relaxed additionally shares queries that read no filtered relation.
	Relaxed
	// Full additionally folds identical query definitions onto one node.
	Full
)

var reuseNames = map[Reuse]string{
	NoReuse:     "noreuse",
	Finkelstein: "finkelstein",
	Relaxed:     "relaxed",
	Full:        "full",
}

// ParseReuse maps a selector name to a Reuse. Names are case-insensitive.
func ParseReuse(name string) (Reuse, error) {
	for r, n := range reuseNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return r, nil
		}
	}
	return 0, newError(CodeUnknownReuse, name, nil,
		"reuse must be one of noreuse, finkelstein, relaxed, full")
}

func (r Reuse) String() string {
	if n, ok := reuseNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Reuse(%d)", int(r))
}

// sharesRelations reports whether uncovered base relations are read directly.
func (r Reuse) sharesRelations() bool { return r >= Finkelstein }

// sharesQueries reports whether queries over unfiltered inputs are shared.
func (r Reuse) sharesQueries() bool { return r >= Relaxed }

// foldsDefinitions reports whether identical definitions collapse to one node.
func (r Reuse) foldsDefinitions() bool { return r >= Full }
