// Package idgen generates the random identifiers used to tag bridge messages.
//
// Identifiers are version 4 UUIDs in the canonical 8-4-4-4-12 layout. They are
// unique tags, not secrets: the default source is math/rand/v2 and nothing
// tracks previously issued values.
package idgen

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Source supplies pseudorandom 64-bit values.
// Every math/rand/v2 source (PCG, ChaCha8) satisfies it.
type Source interface {
	Uint64() uint64
}

// Generator produces message identifiers from a Source.
// A Generator is safe for concurrent use when its Source is.
type Generator struct {
	src Source
}

// New creates a Generator reading from src.
// A nil src falls back to the process-wide math/rand/v2 generator.
func New(src Source) *Generator {
	if src == nil {
		src = globalSource{}
	}
	return &Generator{src: src}
}

var defaultGenerator = New(nil)

// Default returns the shared generator backed by the process-wide source.
func Default() *Generator {
	return defaultGenerator
}

// NewID returns a new identifier from the default generator.
func NewID() string {
	return defaultGenerator.NewID()
}

// NewID returns a new random identifier such as
// "9b2f1c7e-4d3a-4f8e-a1b2-0c3d4e5f6a7b".
func (g *Generator) NewID() string {
	id, err := uuid.NewRandomFromReader(&sourceReader{src: g.src})
	if err != nil {
		// sourceReader never returns an error
		panic(err)
	}
	return id.String()
}

// globalSource draws from the top-level math/rand/v2 functions,
// which are safe for concurrent use.
type globalSource struct{}

func (globalSource) Uint64() uint64 {
	return rand.Uint64()
}

// sourceReader adapts a Source to io.Reader for uuid.NewRandomFromReader.
type sourceReader struct {
	src Source
	buf [8]byte
	n   int
}

func (r *sourceReader) Read(p []byte) (int, error) {
	for i := range p {
		if r.n == 0 {
			binary.BigEndian.PutUint64(r.buf[:], r.src.Uint64())
			r.n = len(r.buf)
		}
		p[i] = r.buf[len(r.buf)-r.n]
		r.n--
	}
	return len(p), nil
}
