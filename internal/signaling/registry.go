package signaling

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/wojtas-j/cam-relay/internal/auth"
)

var (
	// ErrReceiverLimit is returned when a receiver-role peer tries to register
	// while another receiver session is active.
	ErrReceiverLimit = errors.New("receiver limit reached")
	// ErrPeerLimit is returned when a user/admin peer tries to register while
	// another user/admin session is active.
	ErrPeerLimit = errors.New("user/admin limit reached")
)

// maxSessions bounds the registry regardless of role classes. The class
// limits already imply it; this is a backstop.
const maxSessions = 2

// Handle is the write side of a registered session. Implementations must be
// safe for concurrent use.
type Handle interface {
	// WriteText sends one text frame. Best effort; an error means the frame
	// was not delivered and the session is likely going away.
	WriteText(data []byte) error
	// Open reports whether the session can still accept writes.
	Open() bool
}

type entry struct {
	handle   Handle
	receiver bool
}

// Registry tracks the active signaling sessions by username. Admission
// control (one receiver, one user/admin) happens inside Register so the
// capacity check and the insert are a single critical section.
type Registry struct {
	log      *slog.Logger
	onChange func(roster []string, recipients []Handle)

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry builds an empty registry. onChange is invoked after every
// membership change, outside the registry lock, with a sorted roster snapshot
// and the handles registered at snapshot time. It may be nil.
func NewRegistry(log *slog.Logger, onChange func(roster []string, recipients []Handle)) *Registry {
	return &Registry{
		log:      log,
		onChange: onChange,
		entries:  make(map[string]*entry),
	}
}

// Register admits a session under the peer's username. At most one receiver
// and one user/admin session may exist at a time; a registration that would
// exceed either limit fails with ErrReceiverLimit or ErrPeerLimit and leaves
// the registry unchanged.
//
// Re-registration by the same username replaces the previous session. The
// replaced entry is excluded from the capacity check, so a reconnect in the
// same class always succeeds, but a reconnect that switches class is still
// held to the new class's limit. The displaced handle, if any, is returned so
// the caller can close it.
func (r *Registry) Register(p auth.Principal, h Handle) (displaced Handle, err error) {
	receiver := p.IsReceiver()

	r.mu.Lock()
	old, replacing := r.entries[p.Username]
	sameClass := 0
	for username, e := range r.entries {
		if e.receiver == receiver && username != p.Username {
			sameClass++
		}
	}
	if sameClass >= 1 || (!replacing && len(r.entries) >= maxSessions) {
		r.mu.Unlock()
		if receiver {
			return nil, ErrReceiverLimit
		}
		return nil, ErrPeerLimit
	}
	r.entries[p.Username] = &entry{handle: h, receiver: receiver}
	roster, recipients := r.snapshotLocked()
	r.mu.Unlock()

	if replacing {
		displaced = old.handle
	}
	r.log.Debug("session registered", "username", p.Username, "receiver", receiver, "replaced", replacing)
	r.notify(roster, recipients)
	return displaced, nil
}

// Unregister removes the session bound to username, but only when it still
// owns the entry: a session displaced by re-registration must not tear down
// its successor. Reports whether an entry was removed. Safe to call multiple
// times.
func (r *Registry) Unregister(username string, h Handle) bool {
	r.mu.Lock()
	e, ok := r.entries[username]
	if !ok || e.handle != h {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, username)
	roster, recipients := r.snapshotLocked()
	r.mu.Unlock()

	r.log.Debug("session unregistered", "username", username)
	r.notify(roster, recipients)
	return true
}

// Lookup returns the handle registered under username.
func (r *Registry) Lookup(username string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[username]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// Roster returns the sorted usernames of all registered sessions.
func (r *Registry) Roster() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roster, _ := r.snapshotLocked()
	return roster
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) CountReceivers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked(true)
}

func (r *Registry) CountNonReceivers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked(false)
}

func (r *Registry) countLocked(receiver bool) int {
	n := 0
	for _, e := range r.entries {
		if e.receiver == receiver {
			n++
		}
	}
	return n
}

func (r *Registry) snapshotLocked() ([]string, []Handle) {
	roster := make([]string, 0, len(r.entries))
	recipients := make([]Handle, 0, len(r.entries))
	for username, e := range r.entries {
		roster = append(roster, username)
		recipients = append(recipients, e.handle)
	}
	sort.Strings(roster)
	return roster, recipients
}

func (r *Registry) notify(roster []string, recipients []Handle) {
	if r.onChange == nil {
		return
	}
	r.onChange(roster, recipients)
}
