package server

import (
	"sync/atomic"
	"time"
)

// Stats is a snapshot of a running server.
type Stats struct {
	ID      string    `json:"id"`
	Addr    string    `json:"addr"`
	Workdir string    `json:"workdir"`
	Started time.Time `json:"started"`
	// Served counts responses sent; Failed is the subset reporting an error.
	Served uint64 `json:"served"`
	Failed uint64 `json:"failed"`
	// Dropped counts connections closed without a response.
	Dropped uint64 `json:"dropped"`
}

type counters struct {
	served  atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	st := Stats{
		ID:      s.id,
		Workdir: s.wd.String(),
		Started: s.started,
		Served:  s.counters.served.Load(),
		Failed:  s.counters.failed.Load(),
		Dropped: s.counters.dropped.Load(),
	}
	if addr := s.Addr(); addr != nil {
		st.Addr = addr.String()
	}
	return st
}
