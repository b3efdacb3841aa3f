// Package wordid produces the human-facing participant ids: three
// words drawn from a seeded shuffle of a fixed word list. The mapping
// is a pure function of the seed and the registration sequence number,
// so ids are reproducible across restarts. It is not a hash: ids cycle
// after one million registrations, which is documented and accepted
// for the registration lifetime of a single event.
package wordid

import (
	"hash/fnv"
	"math/rand"
	"strings"
)

// multiplier is 7^6 * 3^6. It shares no common divisors with the
// modulus, so the index triple repeats only every million sequence
// numbers.
const (
	multiplier = 85766121
	modulus    = 1000000
)

// Generator maps sequence numbers to three-word ids.
type Generator struct {
	words []string
}

// New builds a Generator whose word order is a deterministic shuffle
// of the built-in list under the given seed.
func New(seed string) *Generator {
	words := make([]string, len(languages))
	copy(words, languages)

	h := fnv.New64a()
	h.Write([]byte(seed))
	r := rand.New(rand.NewSource(int64(h.Sum64())))
	r.Shuffle(len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})
	return &Generator{words: words}
}

// ID returns the id for sequence number n.
func (g *Generator) ID(n int) string {
	num := n * multiplier % modulus
	return strings.Join([]string{
		g.words[num/10000%100],
		g.words[num/100%100],
		g.words[num%100],
	}, "-")
}

// languages is the fixed word list the ids are drawn from. Only the
// first 100 entries of the shuffled order are ever indexed.
var languages = []string{
	"ada", "algol", "apl", "assembly", "awk", "bash", "basic", "brainfuck",
	"c", "carbon", "ceylon", "clojure", "cobol", "coffeescript", "coq",
	"cpp", "crystal", "csharp", "css", "d", "dart", "delphi", "eiffel",
	"elixir", "elm", "erlang", "fsharp", "factor", "forth", "fortran",
	"go", "groovy", "hack", "haskell", "haxe", "html", "icon", "idris",
	"io", "j", "java", "javascript", "julia", "kotlin", "labview",
	"lisp", "logo", "lua", "matlab", "mercury", "ml", "modula", "nim",
	"oberon", "objectivec", "ocaml", "octave", "pascal", "perl", "php",
	"pike", "postscript", "prolog", "purescript", "python", "qbasic",
	"r", "racket", "raku", "reason", "rebol", "rexx", "ruby", "rust",
	"sas", "scala", "scheme", "scratch", "sed", "simula", "smalltalk",
	"snobol", "solidity", "sql", "squirrel", "standardml", "swift",
	"tcl", "typescript", "unicon", "v", "vala", "verilog", "vhdl",
	"vimscript", "visualbasic", "webassembly", "whitespace", "x10",
	"xquery", "zig", "zsh", "ats", "boo", "chapel", "clean", "dylan",
	"euphoria", "fantom", "gambas", "harbour", "inform", "jade",
	"ladder", "maple", "mathematica", "nemerle", "opal", "oz", "pl1",
	"pony", "q", "rpg", "sather", "self", "turing", "ursula", "xojo",
}
