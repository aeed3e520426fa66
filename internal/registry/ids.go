package registry

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// IDGenerator hands out spot ids as namespace plus a process-wide monotonic
// counter, so ids never repeat within one run.
type IDGenerator struct {
	n atomic.Uint64
}

// NewIDGenerator creates a generator starting at 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns a fresh id in the given namespace.
func (g *IDGenerator) Next(namespace string) string {
	return fmt.Sprintf("%s-%d", sanitize(namespace), g.n.Add(1))
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "id"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 6
	codeSpace    = 2176782336 // 36^6
	// codeStride is coprime with 36^6, so n*codeStride mod 36^6 visits every
	// code exactly once before repeating.
	codeStride = 1_000_000_007 % codeSpace
	codeOffset = 48_271
)

// CodeGenerator produces 6-character uppercase alphanumeric confirmation codes.
// The sequence is a fixed permutation of the counter, so codes look opaque but
// are reproducible and do not collide within 36^6 draws.
type CodeGenerator struct {
	n atomic.Uint64
}

// NewCodeGenerator creates a code generator positioned at the start of the
// sequence.
func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{}
}

// Next returns the next confirmation code.
func (g *CodeGenerator) Next() string {
	n := g.n.Add(1)
	v := ((n%codeSpace)*codeStride + codeOffset) % codeSpace

	var buf [codeLength]byte
	for i := codeLength - 1; i >= 0; i-- {
		buf[i] = codeAlphabet[v%36]
		v /= 36
	}
	return string(buf[:])
}
