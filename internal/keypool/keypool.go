// Package keypool manages a pool of API credentials for a rate-limited
// external service. Keys are handed out round-robin; a key that reports a
// rate-limit failure is benched for a cooldown interval and skipped until the
// interval elapses.
package keypool

import (
	"log"
	"sync"
	"time"
)

// DefaultCooldown is the bench interval applied to a rate-limited key.
const DefaultCooldown = 5 * time.Minute

// State describes whether a credential is currently selectable.
type State string

// Credential states
const (
	StateAvailable   State = "available"
	StateCoolingDown State = "cooling_down"
)

// credential is one API key plus its health metadata. The value is immutable
// after construction; everything else is guarded by the Manager mutex.
type credential struct {
	value               string
	coolingUntil        time.Time // zero means not cooling down
	consecutiveFailures int
	lastUsedAt          time.Time
}

// Manager owns a fixed set of credentials and the round-robin cursor.
// All methods are safe for concurrent use; the mutex is held only for
// in-memory state transitions, never across external calls.
type Manager struct {
	mu               sync.Mutex
	creds            []*credential
	cursor           int
	cooldown         time.Duration
	failureThreshold int              // 0 disables generic-failure cooldown
	now              func() time.Time // injectable for tests
}

// Option configures a Manager.
type Option func(*Manager)

// WithCooldown sets the bench interval for rate-limited keys.
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) { m.cooldown = d }
}

// WithFailureThreshold enables cooldown after n consecutive non-rate-limit
// failures. Zero (the default) disables the policy.
func WithFailureThreshold(n int) Option {
	return func(m *Manager) { m.failureThreshold = n }
}

// WithClock overrides the time source. Used by tests to simulate cooldown
// expiry without sleeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager over the given keys. The key set is fixed for the
// Manager's lifetime. Returns ErrEmptyPool if no keys are provided, so the
// process can refuse to start rather than run without credentials.
func New(keys []string, opts ...Option) (*Manager, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyPool
	}

	m := &Manager{
		creds:    make([]*credential, 0, len(keys)),
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
	for _, k := range keys {
		m.creds = append(m.creds, &credential{value: k})
	}
	for _, opt := range opts {
		opt(m)
	}

	log.Printf("[keypool] initialized with %d keys (cooldown %s)", len(m.creds), m.cooldown)
	return m, nil
}

// Size returns the number of keys in the pool.
func (m *Manager) Size() int {
	return len(m.creds)
}

// Acquire returns the next usable key. It scans one full lap starting at the
// cursor, skipping keys still cooling down; a key whose cooldown has elapsed
// is flipped back to available before being considered. On success the cursor
// advances past the chosen key so the next call starts one position later.
//
// If every key is cooling down, Acquire returns a *NoKeysAvailableError
// carrying the time until the earliest key frees up.
func (m *Manager) Acquire() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for i := 0; i < len(m.creds); i++ {
		idx := (m.cursor + i) % len(m.creds)
		c := m.creds[idx]

		// Lazy cooldown expiry: no background timer, state flips here.
		if !c.coolingUntil.IsZero() && !now.Before(c.coolingUntil) {
			c.coolingUntil = time.Time{}
		}
		if !c.coolingUntil.IsZero() {
			continue
		}

		c.lastUsedAt = now
		m.cursor = (idx + 1) % len(m.creds)
		return c.value, nil
	}

	// Full lap found nothing; report when the earliest key frees up.
	var earliest time.Time
	for _, c := range m.creds {
		if earliest.IsZero() || c.coolingUntil.Before(earliest) {
			earliest = c.coolingUntil
		}
	}
	return "", &NoKeysAvailableError{RetryAfter: earliest.Sub(now)}
}

// ReportSuccess resets the failure count for the given key. A key not in the
// pool is logged and ignored.
func (m *Manager) ReportSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.find(key)
	if c == nil {
		log.Printf("[keypool] success reported for unknown key %s", Mask(key))
		return
	}
	c.consecutiveFailures = 0
}

// ReportFailure records a failed call with the given key. A rate-limit signal
// benches the key immediately for the cooldown interval regardless of the
// failure count. Generic failures grow the count; if a failure threshold is
// configured and reached, the key is benched as well. A key not in the pool
// is logged and ignored.
func (m *Manager) ReportFailure(key string, rateLimited bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.find(key)
	if c == nil {
		log.Printf("[keypool] failure reported for unknown key %s", Mask(key))
		return
	}

	c.consecutiveFailures++
	if rateLimited {
		c.coolingUntil = m.now().Add(m.cooldown)
		log.Printf("[keypool] key %s rate limited, cooling down for %s", Mask(c.value), m.cooldown)
		return
	}
	if m.failureThreshold > 0 && c.consecutiveFailures >= m.failureThreshold {
		c.coolingUntil = m.now().Add(m.cooldown)
		log.Printf("[keypool] key %s reached %d consecutive failures, cooling down for %s",
			Mask(c.value), c.consecutiveFailures, m.cooldown)
	}
}

// KeyStatus is a read-only snapshot of one credential's health.
type KeyStatus struct {
	Key                 string        `json:"key"` // masked
	State               State         `json:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	CooldownRemaining   time.Duration `json:"cooldown_remaining"`
}

// Status returns a snapshot of every key's health, in pool order. Keys are
// masked. Status never mutates state: a key whose cooldown has elapsed but
// has not yet been re-selected is reported as available with zero remaining.
func (m *Manager) Status() []KeyStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]KeyStatus, 0, len(m.creds))
	for _, c := range m.creds {
		s := KeyStatus{
			Key:                 Mask(c.value),
			State:               StateAvailable,
			ConsecutiveFailures: c.consecutiveFailures,
		}
		if !c.coolingUntil.IsZero() && now.Before(c.coolingUntil) {
			s.State = StateCoolingDown
			s.CooldownRemaining = c.coolingUntil.Sub(now)
		}
		out = append(out, s)
	}
	return out
}

// find returns the credential for a key value, or nil. Caller holds the lock.
func (m *Manager) find(key string) *credential {
	for _, c := range m.creds {
		if c.value == key {
			return c
		}
	}
	return nil
}

// Mask hides all but a short prefix and suffix of a key for logs and status
// output.
func Mask(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
