package client

import (
	"sync"

	"github.com/google/uuid"

	"driftchat/internal/events"
)

// Roster maintains the online-user set from an initial snapshot plus the
// presence event stream.
type Roster struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
}

func NewRoster() *Roster {
	return &Roster{online: make(map[uuid.UUID]bool)}
}

// Seed loads the snapshot fetched at session start.
func (r *Roster) Seed(userIDs []uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range userIDs {
		r.online[id] = true
	}
}

func (r *Roster) HandleEnvelope(env events.Envelope) {
	if env.AggregateType != events.AggregateTypePresence {
		return
	}
	var doc events.PresenceDoc
	if err := env.Decode(&doc); err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.IsOnline {
		r.online[doc.UserID] = true
	} else {
		delete(r.online, doc.UserID)
	}
}

func (r *Roster) IsOnline(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[userID]
}

func (r *Roster) Online() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uuid.UUID, 0, len(r.online))
	for id := range r.online {
		out = append(out, id)
	}
	return out
}
