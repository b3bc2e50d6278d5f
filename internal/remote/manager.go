package remote

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"photovault/internal/icloud"
	"photovault/internal/logging"
)

// State is the position of one connected remote account in the import
// workflow.
type State string

const (
	// StateUnauthenticated means no usable remote session exists.
	StateUnauthenticated State = "unauthenticated"
	// StatePendingChallenge means sign-in succeeded but a two-factor code
	// is still required.
	StatePendingChallenge State = "pending_challenge"
	// StateListing means the session can list and download photos.
	StateListing State = "listing"
	// StateDone means an import completed and the session was cleared.
	StateDone State = "done"
)

// Errors returned by the manager.
var (
	// ErrNoSession indicates the handle does not reference a live session.
	ErrNoSession = errors.New("no remote session")
	// ErrNotReady indicates listing or download was attempted before the
	// two-factor challenge was satisfied.
	ErrNotReady = errors.New("remote session not ready")
)

// maxChallengeAttempts bounds how many times a verification code may be
// rejected before the session is torn down.
const maxChallengeAttempts = 3

type connection struct {
	owner             int64
	session           *icloud.Session
	state             State
	challenge         icloud.ChallengeKind
	challengeAttempts int
}

// Manager tracks remote sessions per browser session. Callers address a
// session by an opaque handle; credentials never leave the manager and
// are never logged.
type Manager struct {
	client *icloud.Client

	mu          sync.Mutex
	connections map[string]*connection
}

// NewManager creates a Manager backed by the given remote client.
func NewManager(client *icloud.Client) *Manager {
	return &Manager{
		client:      client,
		connections: make(map[string]*connection),
	}
}

// Begin signs in to the remote account and registers a session for owner.
// The returned state is StateListing when no challenge is required, or
// StatePendingChallenge when a verification code must be submitted first.
func (m *Manager) Begin(ctx context.Context, owner int64, appleID, password string) (string, State, error) {
	session, err := m.client.Authenticate(ctx, appleID, password)
	if err != nil {
		return "", StateUnauthenticated, err
	}

	conn := &connection{
		owner:   owner,
		session: session,
		state:   StateListing,
	}
	if session.Requires2FA {
		conn.state = StatePendingChallenge
		conn.challenge = session.Challenge
	}

	handle := uuid.NewString()
	state := conn.state

	m.mu.Lock()
	m.connections[handle] = conn
	m.mu.Unlock()

	logging.Info("remote session started for owner %d (state: %s)", owner, state)
	return handle, state, nil
}

// Verify submits a two-factor code for a pending session. A terminal
// rejection, or exhausting the attempt budget, clears the session and
// returns the caller to StateUnauthenticated.
func (m *Manager) Verify(ctx context.Context, handle, code string) (State, error) {
	owner, session, state, err := m.lookup(handle)
	if err != nil {
		return StateUnauthenticated, err
	}
	if state != StatePendingChallenge {
		return state, nil
	}

	if err := session.SubmitCode(ctx, code); err != nil {
		if errors.Is(err, icloud.ErrInvalidCode) {
			if m.recordRejection(handle) {
				logging.Warn("verification attempts exhausted for owner %d", owner)
				return StateUnauthenticated, err
			}
			return StatePendingChallenge, err
		}
		if icloud.IsTerminal(err) {
			m.Clear(handle)
			return StateUnauthenticated, err
		}
		return StatePendingChallenge, err
	}

	m.markListing(handle)
	logging.Info("remote session verified for owner %d", owner)
	return StateListing, nil
}

// ListPage returns one page of the remote library. Only reachable in
// StateListing; terminal remote failures clear the session.
func (m *Manager) ListPage(ctx context.Context, handle string, offset, limit int) ([]icloud.PhotoDescriptor, int, error) {
	session, err := m.ready(handle)
	if err != nil {
		return nil, 0, err
	}

	photos, total, err := session.ListPhotos(ctx, offset, limit)
	if err != nil {
		m.clearIfTerminal(handle, err)
		return nil, 0, err
	}
	return photos, total, nil
}

// Fetch downloads one photo in the requested variant. Only reachable in
// StateListing; terminal remote failures clear the session.
func (m *Manager) Fetch(ctx context.Context, handle string, desc icloud.PhotoDescriptor, variant icloud.Variant) (io.ReadCloser, error) {
	session, err := m.ready(handle)
	if err != nil {
		return nil, err
	}

	body, err := session.Download(ctx, desc, variant)
	if err != nil {
		m.clearIfTerminal(handle, err)
		return nil, err
	}
	return body, nil
}

// Owner returns the local user the handle's session belongs to.
func (m *Manager) Owner(handle string) (int64, error) {
	owner, _, _, err := m.lookup(handle)
	return owner, err
}

// State returns the current workflow state for a handle. Handles that
// were cleared (or never existed) report StateUnauthenticated.
func (m *Manager) State(handle string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.connections[handle]
	if !ok {
		return StateUnauthenticated
	}
	return conn.state
}

// Challenge reports which verification mechanism a pending handle is
// waiting on. ChallengeNone for ready, cleared, or unknown handles.
func (m *Manager) Challenge(handle string) icloud.ChallengeKind {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.connections[handle]
	if !ok || conn.state != StatePendingChallenge {
		return icloud.ChallengeNone
	}
	return conn.challenge
}

// Complete marks an import finished and discards the session. Imports
// are one-shot: a new sign-in is required for the next batch.
func (m *Manager) Complete(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.connections[handle]; ok {
		delete(m.connections, handle)
		logging.Info("remote session completed for owner %d", conn.owner)
	}
}

// Clear discards the session for a handle, if any.
func (m *Manager) Clear(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, handle)
}

// lookup copies a connection's fields under the lock. Callers must not
// touch the connection struct itself; Complete and Clear mutate it
// concurrently with in-flight requests on the same handle.
func (m *Manager) lookup(handle string) (owner int64, session *icloud.Session, state State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.connections[handle]
	if !ok {
		return 0, nil, StateUnauthenticated, ErrNoSession
	}
	return conn.owner, conn.session, conn.state, nil
}

func (m *Manager) ready(handle string) (*icloud.Session, error) {
	_, session, state, err := m.lookup(handle)
	if err != nil {
		return nil, err
	}
	if state != StateListing {
		return nil, ErrNotReady
	}
	return session, nil
}

// recordRejection counts one rejected verification code and tears the
// session down once the attempt limit is reached. Reports whether the
// session was cleared.
func (m *Manager) recordRejection(handle string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.connections[handle]
	if !ok {
		return true
	}
	conn.challengeAttempts++
	if conn.challengeAttempts >= maxChallengeAttempts {
		delete(m.connections, handle)
		return true
	}
	return false
}

func (m *Manager) markListing(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.connections[handle]; ok {
		conn.state = StateListing
	}
}

func (m *Manager) clearIfTerminal(handle string, err error) {
	if icloud.IsTerminal(err) {
		logging.Warn("terminal remote failure, clearing session: %v", err)
		m.Clear(handle)
	}
}
