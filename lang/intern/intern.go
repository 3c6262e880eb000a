// Package intern implements the string table used to
// deduplicate string values so that equality of two strings reduces to
// pointer identity, per the language's string data model.
package intern

import (
	"github.com/dolthub/swiss"
)

// String is an interned string handle. Two Strings holding byte-equal text
// are always the same *String value; callers should compare handles with
// ==, never by comparing the underlying Go string.
type String struct {
	text string
	hash uint64
}

// String returns the underlying Go string. It satisfies the machine Value
// interface's String method (the value's own textual representation).
func (s *String) String() string { return s.text }

// Type satisfies the machine Value interface.
func (s *String) Type() string { return "string" }

// Go returns the underlying Go string, named distinctly from String to avoid
// ambiguity at call sites that also deal with fmt.Stringer values.
func (s *String) Go() string { return s.text }

// Len returns the number of bytes in the interned text.
func (s *String) Len() int { return len(s.text) }

// Pool is a set of interned strings keyed by content. A Pool is not safe for
// concurrent use by multiple goroutines; each VM owns its own Pool (see
// spec's note on process-wide vs per-VM intern pools).
type Pool struct {
	m *swiss.Map[string, *String]
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{m: swiss.NewMap[string, *String](64)}
}

// Intern returns the canonical handle for text, creating and storing one if
// this is the first time text is seen by the pool.
func (p *Pool) Intern(text string) *String {
	if s, ok := p.m.Get(text); ok {
		return s
	}
	s := &String{text: text, hash: fnv64a(text)}
	p.m.Put(text, s)
	return s
}

// Hash returns the cached content hash of the handle, useful for building
// hash-table keys over interned strings without rehashing their bytes.
func (s *String) Hash() uint64 { return s.hash }

// fnv64a is the 64-bit FNV-1a hash, used only to give each handle the cached
// hash returned by Hash. No table in this module keys on it: the swiss.Map
// backing the pool, the VM's globals and class method tables all key on the
// raw Go string.
func fnv64a(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
