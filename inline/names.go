package inline

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultNameTag prefixes every generated internal value name.
const DefaultNameTag = "Func_"

// TokenSource hands out the uniqueness token of a call site that has no explicit
// name. Each call to Token must return a value never returned before.
type TokenSource interface {
	Token() string
}

// Counter is a TokenSource returning "1", "2", ... It is safe for concurrent use,
// and deterministic when expansions happen in a fixed order.
type Counter struct {
	n atomic.Uint64
}

// Token implements TokenSource.
func (c *Counter) Token() string {
	return strconv.FormatUint(c.n.Add(1), 10)
}

// UUIDTokens is a TokenSource returning random UUIDs, for callers expanding into
// destinations shared across processes where a counter cannot be coordinated.
type UUIDTokens struct{}

// Token implements TokenSource.
func (UUIDTokens) Token() string {
	return uuid.NewString()
}

// NameGenerator derives the names of a function's internal values at one call site.
//
// A generated name is Tag + len(callName) + "_" + callName + "_" + internal. Encoding
// the length makes the name injective in (callName, internal): two call sites with
// different names never produce the same value name, whatever characters the names
// contain.
type NameGenerator struct {
	Tag string
}

// Name returns the generated name of internal value internal at call site callName.
func (g NameGenerator) Name(callName, internal string) string {
	tag := g.Tag
	if tag == "" {
		tag = DefaultNameTag
	}
	return tag + strconv.Itoa(len(callName)) + "_" + callName + "_" + internal
}
