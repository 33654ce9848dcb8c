package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Initialization outcomes reported to the Observer.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeAnonymous     = "anonymous"
	OutcomeRejected      = "rejected"
	OutcomeFailed        = "failed"
	OutcomeMalformed     = "malformed"
	OutcomeSuperseded    = "superseded"
)

// Observer receives initialization outcomes (metrics).
type Observer interface {
	InitializeFinished(outcome string)
}

// Config wires a State to its collaborators.
type Config struct {
	Key      string // session id, used in logs only
	Store    Store
	Verifier Verifier
	Observer Observer
}

// State is the authenticated identity and tenant selection of one browser
// session. Only its own methods mutate it; everything else reads Snapshots.
type State struct {
	key      string
	store    Store
	verifier Verifier
	observer Observer

	mu       sync.RWMutex
	phase    Phase
	identity *Identity
	selected string
	gen      uint64
	ready    chan struct{}
	subs     map[int]chan struct{}
	nextSub  int
	released bool

	// outcome of the last applied initialization and when it settled
	lastOutcome string
	settledAt   time.Time
}

// New returns an uninitialized State.
func New(cfg Config) *State {
	return &State{
		key:      cfg.Key,
		store:    cfg.Store,
		verifier: cfg.Verifier,
		observer: cfg.Observer,
		ready:    make(chan struct{}),
		subs:     make(map[int]chan struct{}),
	}
}

// Initialize loads the persisted identity and reconciles it with the auth
// service. Every call supersedes the ones still in flight: only the latest
// call's result is applied. Failures settle in the unauthenticated Ready
// phase; only a malformed payload is returned as an error.
func (s *State) Initialize(ctx context.Context) error {
	gen := s.begin()
	res := s.resolve(ctx)
	return s.finish(ctx, gen, res)
}

// Establish adopts an identity freshly issued by a login and persists it.
func (s *State) Establish(ctx context.Context, id Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	checkIntegrity(s.key, id.Memberships)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.adoptLocked(cloneIdentity(&id))
	s.lastOutcome = OutcomeAuthenticated
	s.readyLocked()
	s.notifyLocked()
	if err := s.store.Save(ctx, s.identity); err != nil {
		log.Error().Err(err).Str("session", s.key).Msg("session: persist identity after login")
		return err
	}
	return nil
}

// SetSelectedSchool switches the active tenant. Ids that are not among the
// user's memberships are ignored and the previous selection is kept.
// It reports whether schoolID is the selection afterwards.
func (s *State) SetSelectedSchool(ctx context.Context, schoolID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil || !hasSchool(s.identity.Memberships, schoolID) {
		log.Debug().Str("session", s.key).Str("school_id", schoolID).Msg("session: ignoring selection of unknown school")
		return false
	}
	if s.selected == schoolID {
		return true
	}
	s.selected = schoolID
	s.identity.SelectedSchoolID = schoolID
	s.notifyLocked()
	if err := s.store.Save(ctx, s.identity); err != nil {
		log.Warn().Err(err).Str("session", s.key).Msg("session: persist school selection")
	}
	return true
}

// Clear logs the session out and erases the persisted copy. Any
// initialization still in flight is superseded.
func (s *State) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.identity = nil
	s.selected = ""
	s.lastOutcome = ""
	s.readyLocked()
	s.notifyLocked()
	return s.store.Erase(ctx)
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Phase returns the current lifecycle phase.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// LastOutcome is the outcome of the last initialization applied to the
// State. Establish reports OutcomeAuthenticated and Clear resets it.
func (s *State) LastOutcome() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOutcome
}

// Retry puts a State whose last initialization failed transiently back into
// Loading, at most once per backoff, and reports whether the caller must now
// run Initialize. Readers see Loading from the moment Retry returns true.
func (s *State) Retry(backoff time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Ready || s.identity != nil || s.lastOutcome != OutcomeFailed {
		return false
	}
	if time.Since(s.settledAt) < backoff {
		return false
	}
	s.lastOutcome = ""
	s.ready = make(chan struct{})
	s.phase = Loading
	s.notifyLocked()
	return true
}

// WaitReady blocks until the State is Ready or ctx is done. On ctx expiry
// it returns the current snapshot together with ctx.Err().
func (s *State) WaitReady(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.RLock()
		if s.phase == Ready {
			snap := s.snapshotLocked()
			s.mu.RUnlock()
			return snap, nil
		}
		ch := s.ready
		s.mu.RUnlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

// Subscribe returns a channel that receives a signal after every change.
// Signals coalesce: a reader that falls behind sees one pending signal and
// should re-read Snapshot. The cancel func closes the channel. The channel
// is also closed once the State is released; a released State hands out
// closed channels.
func (s *State) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// Release closes every subscription. The Registry calls it when it drops
// the State, so watchers stop instead of observing a State no request will
// touch again. Pending change signals stay readable.
func (s *State) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

type resolution struct {
	identity *Identity
	outcome  string
	erase    bool
	err      error
}

func (s *State) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.phase != Loading {
		if s.phase == Ready {
			s.ready = make(chan struct{})
		}
		s.phase = Loading
		s.notifyLocked()
	}
	return s.gen
}

// resolve performs the I/O of an initialization without touching the state.
func (s *State) resolve(ctx context.Context) resolution {
	cached, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrMalformedIdentity) {
			log.Warn().Err(err).Str("session", s.key).Msg("session: discarding corrupted persisted identity")
			return resolution{outcome: OutcomeAnonymous, erase: true}
		}
		log.Warn().Err(err).Str("session", s.key).Msg("session: load persisted identity")
		return resolution{outcome: OutcomeFailed}
	}
	if cached == nil || cached.Token == "" {
		return resolution{outcome: OutcomeAnonymous, erase: cached != nil}
	}

	fresh, err := s.verifier.Verify(ctx, cached.Token)
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return resolution{outcome: OutcomeRejected, erase: true}
	case errors.Is(err, ErrMalformedIdentity):
		log.Error().Err(err).Str("session", s.key).Msg("session: auth service returned a malformed identity")
		return resolution{outcome: OutcomeMalformed, err: err}
	case err != nil:
		log.Warn().Err(err).Str("session", s.key).Msg("session: verify failed, settling unauthenticated")
		return resolution{outcome: OutcomeFailed}
	}
	if err := fresh.Validate(); err != nil {
		log.Error().Err(err).Str("session", s.key).Msg("session: auth service returned a malformed identity")
		return resolution{outcome: OutcomeMalformed, err: err}
	}
	checkIntegrity(s.key, fresh.Memberships)

	id := cloneIdentity(fresh)
	if id.Token == "" {
		id.Token = cached.Token
	}
	if cached.SelectedSchoolID != "" {
		id.SelectedSchoolID = cached.SelectedSchoolID
	}
	return resolution{identity: id, outcome: OutcomeAuthenticated}
}

func (s *State) finish(ctx context.Context, gen uint64, res resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.observe(OutcomeSuperseded)
		return nil
	}
	s.observe(res.outcome)
	s.lastOutcome = res.outcome
	s.settledAt = time.Now()

	if res.identity != nil {
		s.adoptLocked(res.identity)
	} else {
		s.identity = nil
		s.selected = ""
	}
	s.readyLocked()
	s.notifyLocked()

	switch {
	case res.identity != nil:
		if err := s.store.Save(ctx, s.identity); err != nil {
			log.Warn().Err(err).Str("session", s.key).Msg("session: persist verified identity")
		}
	case res.erase:
		if err := s.store.Erase(ctx); err != nil {
			log.Warn().Err(err).Str("session", s.key).Msg("session: erase persisted identity")
		}
	}
	return res.err
}

func (s *State) adoptLocked(id *Identity) {
	s.selected = defaultSelection(id.Memberships, id.SelectedSchoolID)
	id.SelectedSchoolID = s.selected
	s.identity = id
}

func (s *State) readyLocked() {
	if s.phase != Ready {
		s.phase = Ready
		close(s.ready)
	}
}

func (s *State) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *State) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:            s.phase,
		SelectedSchoolID: s.selected,
		Generation:       s.gen,
	}
	if s.identity != nil {
		u := s.identity.User
		snap.Authenticated = true
		snap.User = &u
		snap.Memberships = append([]Membership(nil), s.identity.Memberships...)
	}
	return snap
}

func (s *State) observe(outcome string) {
	if s.observer != nil {
		s.observer.InitializeFinished(outcome)
	}
}

func checkIntegrity(key string, ms []Membership) {
	if err := ValidateMemberships(ms); err != nil {
		log.Error().Err(err).Str("session", key).Msg("session: membership data-integrity violation, first match wins")
	}
}

func cloneIdentity(id *Identity) *Identity {
	out := *id
	out.Memberships = append([]Membership(nil), id.Memberships...)
	return &out
}

// NewAnonymous returns a Ready, unauthenticated State that persists nothing.
// It serves requests that carry no session cookie.
func NewAnonymous() *State {
	s := New(Config{Key: "anonymous", Store: discardStore{}})
	s.phase = Ready
	close(s.ready)
	return s
}

type discardStore struct{}

func (discardStore) Load(context.Context) (*Identity, error) { return nil, nil }
func (discardStore) Save(context.Context, *Identity) error   { return nil }
func (discardStore) Erase(context.Context) error             { return nil }
