// Package autoreply matches chat messages against a persisted keyword table
// and picks replies, with an optional fuzzy phase for near misses.
package autoreply

import (
	"log/slog"
	"math/rand"
	"strings"
	"sync"
)

// similarityThreshold is strict: a candidate at exactly 0.8 does not match.
const similarityThreshold = 0.8

// Engine holds the rule table. Rules are matched in keyword insertion
// order; on load from disk the order is the sorted key order, which keeps
// matching deterministic across restarts.
type Engine struct {
	path string

	mu         sync.Mutex
	order      []string
	rules      map[string][]string
	aiMatching bool

	intn func(int) int // reply picker, swapped in tests
}

// New constructs an engine backed by the config file at path and loads it.
// A missing or corrupt file yields an empty table with AI matching off.
func New(path string) *Engine {
	e := &Engine{
		path:  path,
		rules: make(map[string][]string),
		intn:  rand.Intn,
	}
	e.load()
	return e
}

// Reply returns a reply for the message, or ok=false when nothing matches.
//
// Phase 1 takes the first rule whose keyword is a literal substring of the
// message. Phase 2, only when AI matching is on, takes the first rule whose
// keyword is similar enough to the whole message; first-above-threshold
// wins, not best-match.
func (e *Engine) Reply(message string) (string, bool) {
	if message == "" {
		return "", false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, keyword := range e.order {
		if strings.Contains(message, keyword) {
			return e.pickLocked(keyword)
		}
	}

	if !e.aiMatching {
		return "", false
	}
	for _, keyword := range e.order {
		if similarity(message, keyword) > similarityThreshold {
			return e.pickLocked(keyword)
		}
	}
	return "", false
}

func (e *Engine) pickLocked(keyword string) (string, bool) {
	replies := e.rules[keyword]
	if len(replies) == 0 {
		return "", false
	}
	return replies[e.intn(len(replies))], true
}

// AddRule registers a reply for a keyword. Empty keywords are ignored, and
// a reply already present for the keyword is not added twice.
func (e *Engine) AddRule(keyword, reply string) {
	if keyword == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	replies, exists := e.rules[keyword]
	if !exists {
		e.order = append(e.order, keyword)
	}
	for _, r := range replies {
		if r == reply {
			return
		}
	}
	e.rules[keyword] = append(replies, reply)
}

// RemoveRule drops a keyword and all its replies.
func (e *Engine) RemoveRule(keyword string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[keyword]; !ok {
		return
	}
	delete(e.rules, keyword)
	for i, k := range e.order {
		if k == keyword {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// ClearRules empties the rule table.
func (e *Engine) ClearRules() {
	e.mu.Lock()
	e.rules = make(map[string][]string)
	e.order = nil
	e.mu.Unlock()
}

// Rules returns a copy of the rule table.
func (e *Engine) Rules() map[string][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]string, len(e.rules))
	for k, v := range e.rules {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// SetAIMatching toggles the fuzzy phase.
func (e *Engine) SetAIMatching(enable bool) {
	e.mu.Lock()
	e.aiMatching = enable
	e.mu.Unlock()
}

func (e *Engine) AIMatching() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aiMatching
}

// similarity is 1 - editDistance/maxLen over lower-cased runes. Two empty
// strings are identical by definition.
func similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes single-character edit distance with unit costs,
// using a rolling row.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func logLoadFailure(path string, err error) {
	slog.Error("autoreply: config load failed, starting empty", "path", path, "err", err)
}
