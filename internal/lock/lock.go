// Package lock implements the exclusive inter-process write lock with
// stale-lock reclamation (spec §4.4). It is a pure filesystem protocol: no
// in-process mutex is required across processes, but a single process
// with multiple concurrent callers should additionally serialize with an
// in-process mutex to avoid self-deadlock on the filesystem lock (spec §9
// Design Notes) — see Manager.mu below.
package lock

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/BumpyClock/tasque/internal/metrics"
	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// DefaultTimeout is the fallback acquisition deadline (spec §6.3
// TSQ_LOCK_TIMEOUT_MS).
const DefaultTimeout = 3 * time.Second

// Payload is the JSON content of the lockfile.
type Payload struct {
	Host      string    `json:"host"`
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
}

// staleAfter is the minimum lock age before a same-host reclamation
// attempt is permitted (spec §4.4 step 2).
const staleAfter = 30 * time.Second

// Manager holds the in-process mutex guarding this process's own attempts
// to enter the locked section, plus the logger used for contention/
// reclamation diagnostics.
type Manager struct {
	layout  paths.Layout
	timeout time.Duration
	host    string
	mu      sync.Mutex
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New returns a Manager for the given layout. timeout <= 0 uses
// DefaultTimeout.
func New(l paths.Layout, timeout time.Duration, logger zerolog.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	host, _ := os.Hostname()
	return &Manager{layout: l, timeout: timeout, host: host, log: logger}
}

// WithMetrics attaches optional Prometheus instrumentation to an existing
// Manager and returns it for chaining.
func (m *Manager) WithMetrics(mx *metrics.Metrics) *Manager {
	m.metrics = mx
	return m
}

// Handle is returned by Acquire and must be passed to Release.
type Handle struct {
	payload Payload
}

// Acquire blocks (up to the manager's timeout) until the lock is held,
// per spec §4.4's acquisition loop.
func (m *Manager) Acquire() (*Handle, error) {
	m.mu.Lock()
	start := time.Now()
	deadline := start.Add(m.timeout)

	payload := Payload{Host: m.host, PID: os.Getpid(), CreatedAt: time.Now()}
	for {
		ok, err := m.tryCreate(payload)
		if err != nil {
			m.mu.Unlock()
			return nil, tasqerr.Wrap(tasqerr.CodeLockAcquireFailed, err, "create lockfile")
		}
		if ok {
			m.log.Debug().Int("pid", payload.PID).Msg("lock acquired")
			if m.metrics != nil {
				m.metrics.LockWaitSeconds.Observe(time.Since(start).Seconds())
			}
			return &Handle{payload: payload}, nil
		}
		m.metrics.IncLockContention()

		reclaimed, err := m.tryReclaim()
		if err != nil {
			m.log.Debug().Err(err).Msg("stale reclamation attempt failed")
		}
		if reclaimed {
			continue
		}

		if time.Now().After(deadline) {
			m.mu.Unlock()
			return nil, tasqerr.New(tasqerr.CodeLockTimeout, "timed out waiting for %s after %s", m.layout.Lock, m.timeout)
		}
		time.Sleep(backoff())
	}
}

func backoff() time.Duration {
	return time.Duration(20+rand.Intn(61)) * time.Millisecond
}

// Release unlinks the lockfile if it still matches this handle's payload
// (spec §4.4 Release), then releases the in-process mutex.
func (m *Manager) Release(h *Handle) error {
	defer m.mu.Unlock()
	cur, err := readPayload(m.layout.Lock)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return tasqerr.Wrap(tasqerr.CodeLockReleaseFailed, err, "read lockfile before release")
	}
	if cur.Host != h.payload.Host || cur.PID != h.payload.PID || !cur.CreatedAt.Equal(h.payload.CreatedAt) {
		// Someone else reclaimed us already; leave it (spec §4.4 Release).
		return nil
	}
	if err := os.Remove(m.layout.Lock); err != nil && !os.IsNotExist(err) {
		return tasqerr.Wrap(tasqerr.CodeLockReleaseFailed, err, "remove lockfile")
	}
	return nil
}

// ForceUnlock unconditionally removes the lockfile, returning the prior
// payload if readable. Used only by the repair command with explicit
// consent (spec §4.4 Force unlock).
func ForceUnlock(l paths.Layout) (*Payload, error) {
	prior, err := readPayload(l.Lock)
	var priorPtr *Payload
	if err == nil {
		priorPtr = &prior
	}
	if rmErr := os.Remove(l.Lock); rmErr != nil && !os.IsNotExist(rmErr) {
		return priorPtr, tasqerr.Wrap(tasqerr.CodeLockRemoveFailed, rmErr, "remove lockfile")
	}
	return priorPtr, nil
}

func (m *Manager) tryCreate(payload Payload) (bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	f, err := os.OpenFile(m.layout.Lock, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return false, err
	}
	return true, f.Sync()
}

// tryReclaim implements spec §4.4's stale reclamation: only by the same
// host, only after staleAfter, only if the OS reports the pid as absent
// (never our own pid), via a rename-compare-unlink dance that avoids a
// cross-process race on the unlink itself.
func (m *Manager) tryReclaim() (bool, error) {
	cur, err := readPayload(m.layout.Lock)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil // someone else already cleared it; retry create
		}
		return false, err
	}
	if cur.Host != m.host {
		return false, nil
	}
	if time.Since(cur.CreatedAt) < staleAfter {
		return false, nil
	}
	if cur.PID == os.Getpid() || processAlive(cur.PID) {
		return false, nil
	}

	renameTarget := fmt.Sprintf("%s.stale-%s", m.layout.Lock, uuid.NewString()[:8])
	if err := os.Rename(m.layout.Lock, renameTarget); err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	renamed, err := readPayload(renameTarget)
	if err != nil || renamed.Host != cur.Host || renamed.PID != cur.PID || !renamed.CreatedAt.Equal(cur.CreatedAt) {
		_ = os.Rename(renameTarget, m.layout.Lock)
		return false, nil
	}
	if err := os.Remove(renameTarget); err != nil {
		return false, err
	}
	m.log.Debug().Int("stale_pid", cur.PID).Msg("reclaimed stale lock")
	return true, nil
}

func readPayload(path string) (Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, tasqerr.Wrap(tasqerr.CodeLockCheckFailed, err, "parse lockfile %s", path)
	}
	return p, nil
}
