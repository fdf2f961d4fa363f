package dashboard

import "sync/atomic"

// Ticket identifies one issued fetch
type Ticket uint64

// Sequence hands out increasing tickets so that only the response to the
// most recently issued fetch is applied, whatever order responses arrive in.
type Sequence struct {
	latest atomic.Uint64
}

// Issue returns a ticket newer than every ticket issued before
func (s *Sequence) Issue() Ticket {
	return Ticket(s.latest.Add(1))
}

// IsLatest reports whether t is still the newest issued ticket
func (s *Sequence) IsLatest(t Ticket) bool {
	return s.latest.Load() == uint64(t)
}
