// Package urlcheck evaluates URL validation patterns written as JavaScript
// regular expression literals, such as /sora\.com|sora2\./i, with the same
// semantics the page scripts get in a browser.
//
// Patterns run inside an embedded JavaScript engine: goja by default, otto
// as a fallback for environments that prefer it. The literal source and
// flags are passed to the engine as data and never evaluated as code.
package urlcheck

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Engine selects the JavaScript engine that evaluates a pattern.
type Engine int

const (
	// EngineGoja runs patterns on goja, including lookahead assertions.
	EngineGoja Engine = iota
	// EngineOtto runs patterns on otto; it has no lookahead support.
	EngineOtto
)

func (e Engine) String() string {
	switch e {
	case EngineGoja:
		return "goja"
	case EngineOtto:
		return "otto"
	default:
		return fmt.Sprintf("engine(%d)", int(e))
	}
}

// ErrInvalidPattern is returned for literals the engine rejects.
var ErrInvalidPattern = errors.New("invalid url pattern")

var literalRe = regexp.MustCompile(`^/(.+)/([dgimsuy]*)$`)

// helpers is run once per engine after __src and __flags are set.
const helpers = `
var __re = new RegExp(__src, __flags);
function __match(s) { __re.lastIndex = 0; return __re.test(s); }
function __extract(s) {
	__re.lastIndex = 0;
	var m = __re.exec(s);
	if (m === null || m.length < 2 || m[1] === undefined) { return null; }
	return String(m[1]);
}
`

type matcher interface {
	match(s string) (bool, error)
	extract(s string) (string, bool, error)
}

// Pattern is a compiled validation pattern. It is safe for concurrent use;
// calls are serialised because the engines are single-threaded.
type Pattern struct {
	literal string
	engine  Engine

	mu sync.Mutex
	m  matcher
}

// Compile compiles literal with the goja engine.
func Compile(literal string) (*Pattern, error) {
	return CompileWith(literal, EngineGoja)
}

// MustCompile is like Compile but panics on error.
func MustCompile(literal string) *Pattern {
	p, err := Compile(literal)
	if err != nil {
		panic(err)
	}
	return p
}

// CompileWith compiles literal with the given engine. An empty literal
// yields a pattern that accepts everything. A literal without enclosing
// slashes is taken as the pattern source with no flags.
func CompileWith(literal string, engine Engine) (*Pattern, error) {
	literal = strings.TrimSpace(literal)
	p := &Pattern{literal: literal, engine: engine}
	if literal == "" {
		return p, nil
	}
	src, flags := literal, ""
	if m := literalRe.FindStringSubmatch(literal); m != nil {
		src, flags = m[1], m[2]
	}

	var err error
	switch engine {
	case EngineGoja:
		p.m, err = newGojaMatcher(src, flags)
	case EngineOtto:
		p.m, err = newOttoMatcher(src, flags)
	default:
		return nil, fmt.Errorf("%w: unknown %s", ErrInvalidPattern, engine)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s (%s): %v", ErrInvalidPattern, literal, engine, err)
	}
	return p, nil
}

// Match reports whether s matches. Engine failures count as no match.
func (p *Pattern) Match(s string) bool {
	if p == nil || p.m == nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ok, err := p.m.match(s)
	return err == nil && ok
}

// Extract returns the first capture group of the first match.
func (p *Pattern) Extract(s string) (string, bool) {
	if p == nil || p.m == nil {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok, err := p.m.extract(s)
	if err != nil {
		return "", false
	}
	return v, ok
}

// Engine returns the engine the pattern runs on.
func (p *Pattern) Engine() Engine { return p.engine }

// String returns the literal the pattern was compiled from.
func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	return p.literal
}
