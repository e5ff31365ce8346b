package connection

import (
	"sort"
	"strings"
	"sync"
)

// ConfigClient owns the symbols given in ManagerConfig.Symbols.
const ConfigClient = "config"

// Subscriptions tracks the symbols each client wants. The stream carries
// the union, which is rebuilt whenever it changes. Safe for concurrent use.
type Subscriptions struct {
	mu      sync.RWMutex
	clients map[string]map[string]struct{}
	refs    map[string]int // symbol -> number of clients wanting it
	version uint64
	changed chan struct{}
}

// NewSubscriptions creates an empty subscription set.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		clients: make(map[string]map[string]struct{}),
		refs:    make(map[string]int),
		changed: make(chan struct{}, 1),
	}
}

// Subscribe adds symbols for client. It reports whether the union changed.
func (s *Subscriptions) Subscribe(client string, symbols ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.clients[client]
	if set == nil {
		set = make(map[string]struct{})
		s.clients[client] = set
	}

	changed := false
	for _, sym := range symbols {
		sym = normalize(sym)
		if sym == "" {
			continue
		}
		if _, ok := set[sym]; ok {
			continue
		}
		set[sym] = struct{}{}
		s.refs[sym]++
		if s.refs[sym] == 1 {
			changed = true
		}
	}
	if len(set) == 0 {
		delete(s.clients, client)
	}
	if changed {
		s.bump()
	}
	return changed
}

// Unsubscribe removes symbols for client. A symbol leaves the union only
// when no other client still wants it. It reports whether the union changed.
func (s *Subscriptions) Unsubscribe(client string, symbols ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.clients[client]
	if set == nil {
		return false
	}
	changed := false
	for _, sym := range symbols {
		sym = normalize(sym)
		if _, ok := set[sym]; !ok {
			continue
		}
		delete(set, sym)
		if s.release(sym) {
			changed = true
		}
	}
	if len(set) == 0 {
		delete(s.clients, client)
	}
	if changed {
		s.bump()
	}
	return changed
}

// UnsubscribeAll removes every symbol of client.
func (s *Subscriptions) UnsubscribeAll(client string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.clients[client]
	if set == nil {
		return false
	}
	changed := false
	for sym := range set {
		if s.release(sym) {
			changed = true
		}
	}
	delete(s.clients, client)
	if changed {
		s.bump()
	}
	return changed
}

// Client returns the sorted symbols of client.
func (s *Subscriptions) Client(client string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.clients[client])
}

// Clients returns the sorted ids of clients subscribed to symbol.
func (s *Subscriptions) Clients(symbol string) []string {
	symbol = normalize(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for id, set := range s.clients {
		if _, ok := set[symbol]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Symbols returns the sorted union and the version it belongs to.
func (s *Subscriptions) Symbols() ([]string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.refs))
	for sym := range s.refs {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, s.version
}

// Has reports whether any client wants symbol. It does not allocate.
func (s *Subscriptions) Has(symbol []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.refs[string(symbol)]
	return ok
}

// Len returns the number of symbols in the union.
func (s *Subscriptions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refs)
}

// Version increases every time the union changes.
func (s *Subscriptions) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Changed is signalled after the union changes.
func (s *Subscriptions) Changed() <-chan struct{} {
	return s.changed
}

// release drops one reference and reports whether sym left the union.
func (s *Subscriptions) release(sym string) bool {
	s.refs[sym]--
	if s.refs[sym] > 0 {
		return false
	}
	delete(s.refs, sym)
	return true
}

func (s *Subscriptions) bump() {
	s.version++
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func normalize(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
