// Package markov implements an order-1 Markov chain text model.
//
// The chain maps each word to the list of words observed after it, with
// repetition preserved so that transition frequency weights random selection.
// Training is incremental and safe for concurrent use with generation.
package markov

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// Chain is an order-1 word-level Markov model.
//
// The zero value is not usable; construct with New.
type Chain struct {
	mu       sync.RWMutex
	states   map[string][]string
	starters []string

	// rngMu serializes rng; rand.Rand is not safe for concurrent use.
	rngMu sync.Mutex
	rng   *rand.Rand
}

func (c *Chain) intn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Intn(n)
}

// New returns an empty chain whose random walk is driven by the given seed.
func New(seed int64) *Chain {
	return &Chain{
		states: make(map[string][]string),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Train feeds text into the chain. Words are split on whitespace; the
// first word of each training text becomes a sentence starter. Texts with
// fewer than two words contribute a starter at most.
func (c *Chain) Train(text string) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.addStarter(words[0])
	for i := 0; i < len(words)-1; i++ {
		c.states[words[i]] = append(c.states[words[i]], words[i+1])
	}
}

// addStarter keeps starters sorted and deduplicated. Caller holds mu.
func (c *Chain) addStarter(word string) {
	i := sort.SearchStrings(c.starters, word)
	if i < len(c.starters) && c.starters[i] == word {
		return
	}
	c.starters = append(c.starters, "")
	copy(c.starters[i+1:], c.starters[i:])
	c.starters[i] = word
}

// States returns the number of distinct words with at least one observed
// successor.
func (c *Chain) States() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states)
}

// Trained reports whether the chain can generate text.
func (c *Chain) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states) > 0 && len(c.starters) > 0
}

// Generate produces up to maxLength words by random walk.
//
// When seed is non-empty and its last whitespace-separated token is a known
// state, the walk starts from that token and the seed counts toward the
// length budget. Otherwise the walk starts from a random starter word.
// The walk stops early when it reaches a word with no observed successor.
// Returns "" when the chain is untrained or maxLength is zero.
func (c *Chain) Generate(maxLength int, seed string) string {
	if maxLength <= 0 {
		return ""
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.states) == 0 || len(c.starters) == 0 {
		return ""
	}

	var out []string
	var current string

	if seedWords := strings.Fields(seed); len(seedWords) > 0 {
		last := seedWords[len(seedWords)-1]
		if _, known := c.states[last]; known {
			out = append(out, seedWords...)
			current = last
		}
	}
	if current == "" {
		current = c.starters[c.intn(len(c.starters))]
		out = append(out, current)
	}

	for len(out) < maxLength {
		next, ok := c.states[current]
		if !ok || len(next) == 0 {
			break
		}
		current = next[c.intn(len(next))]
		out = append(out, current)
	}

	if len(out) > maxLength {
		out = out[:maxLength]
	}
	return strings.Join(out, " ")
}
