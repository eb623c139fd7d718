package expressions

import "sync"

// programCache maps source text to a compiled program. A limit above zero
// flushes the whole cache once it holds that many programs.
type programCache[P any] struct {
	mu    sync.RWMutex
	progs map[string]P
	limit int
}

func newProgramCache[P any](limit int) *programCache[P] {
	return &programCache[P]{progs: make(map[string]P), limit: limit}
}

// get returns the program for src, compiling it at most once per cache
// generation. Compile failures are not cached.
func (c *programCache[P]) get(src string, compile func(string) (P, error)) (P, error) {
	c.mu.RLock()
	p, ok := c.progs[src]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.progs[src]; ok {
		return p, nil
	}
	p, err := compile(src)
	if err != nil {
		return p, err
	}
	if c.limit > 0 && len(c.progs) >= c.limit {
		c.progs = make(map[string]P)
	}
	c.progs[src] = p
	return p, nil
}

func (c *programCache[P]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.progs)
}
