// Package circuit guards outbound fetches per target domain. Each domain
// gets its own three-state breaker; five consecutive failures open it,
// and two consecutive successes after the recovery timeout close it
// again. gobreaker closes a breaker once ConsecutiveSuccesses reaches
// MaxRequests, so half-open admits up to SuccessThreshold trial
// requests; capping it at one would close after a single success.
package circuit

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/fx"

	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/logger"
)

var Module = fx.Module("circuit",
	fx.Provide(NewManager),
)

// ErrOpen is returned by Acquire while the domain's breaker rejects
// requests.
var ErrOpen = errors.New("circuit open for domain")

const maxReasonRing = 10

// Done reports the outcome of an acquired request slot. The reason is
// recorded only on failure.
type Done func(success bool, reason string)

// BlockedDomain describes a currently open breaker.
type BlockedDomain struct {
	Domain            string        `json:"domain"`
	ConsecutiveFails  int           `json:"consecutive_fails"`
	OpenedAt          time.Time     `json:"opened_at"`
	TimeUntilHalfOpen time.Duration `json:"time_until_half_open"`
	LastReasons       []string      `json:"last_reasons"`
}

// domainState carries the bookkeeping gobreaker does not expose. Its
// mutex is leaf-level: never acquire the manager mutex or call breaker
// methods while holding it (OnStateChange fires under gobreaker's own
// lock).
type domainState struct {
	breaker *gobreaker.TwoStepCircuitBreaker

	mu           sync.Mutex
	openedAt     time.Time
	lastActivity time.Time
	reasons      []string // ring, newest last
}

// Manager owns one breaker per domain.
type Manager struct {
	mu      sync.Mutex // guards the domains map only
	cfg     config.CircuitConfig
	log     *slog.Logger
	domains map[string]*domainState
	now     func() time.Time
}

// NewManager creates the per-domain breaker manager.
func NewManager(cfg *config.Config, log *slog.Logger) *Manager {
	return &Manager{
		cfg:     cfg.Circuit,
		log:     log.With(logger.Scope("circuit")),
		domains: make(map[string]*domainState),
		now:     time.Now,
	}
}

// DomainOf extracts the breaker key from a URL: lowercased host without a
// leading www. Unparseable inputs are keyed as-is.
func DomainOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Acquire asks for a request slot against the domain of rawURL. While the
// breaker is open it returns ErrOpen; otherwise the caller must invoke the
// returned Done with the outcome.
func (m *Manager) Acquire(rawURL string) (Done, error) {
	st := m.state(DomainOf(rawURL))

	st.mu.Lock()
	st.lastActivity = m.now()
	st.mu.Unlock()

	done, err := st.breaker.Allow()
	if err != nil {
		return nil, ErrOpen
	}

	return func(success bool, reason string) {
		done(success)
		if !success && reason != "" {
			st.mu.Lock()
			st.reasons = append(st.reasons, reason)
			if len(st.reasons) > maxReasonRing {
				st.reasons = st.reasons[len(st.reasons)-maxReasonRing:]
			}
			st.mu.Unlock()
		}
	}, nil
}

// Allowed reports whether the domain would currently accept a request,
// without consuming a half-open probe slot.
func (m *Manager) Allowed(rawURL string) bool {
	m.mu.Lock()
	st, ok := m.domains[DomainOf(rawURL)]
	m.mu.Unlock()
	if !ok {
		return true
	}
	return st.breaker.State() != gobreaker.StateOpen
}

// BlockedDomains lists every domain whose breaker is open, with the time
// remaining until its half-open probe window.
func (m *Manager) BlockedDomains() []BlockedDomain {
	m.mu.Lock()
	snapshot := make(map[string]*domainState, len(m.domains))
	for domain, st := range m.domains {
		snapshot[domain] = st
	}
	m.mu.Unlock()

	var blocked []BlockedDomain
	for domain, st := range snapshot {
		if st.breaker.State() != gobreaker.StateOpen {
			continue
		}
		counts := st.breaker.Counts()

		st.mu.Lock()
		openedAt := st.openedAt
		reasons := append([]string(nil), st.reasons...)
		st.mu.Unlock()

		remaining := m.cfg.RecoveryTimeout - m.now().Sub(openedAt)
		if remaining < 0 {
			remaining = 0
		}
		blocked = append(blocked, BlockedDomain{
			Domain:            domain,
			ConsecutiveFails:  int(counts.ConsecutiveFailures),
			OpenedAt:          openedAt,
			TimeUntilHalfOpen: remaining,
			LastReasons:       reasons,
		})
	}
	return blocked
}

// CleanupInactive drops breakers whose domain saw no activity within the
// configured window. Returns the number removed.
func (m *Manager) CleanupInactive() int {
	cutoff := m.now().Add(-m.cfg.InactiveCleanup)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for domain, st := range m.domains {
		st.mu.Lock()
		inactive := st.lastActivity.Before(cutoff)
		st.mu.Unlock()
		if inactive {
			delete(m.domains, domain)
			removed++
		}
	}
	if removed > 0 {
		m.log.Debug("inactive circuit breakers removed", slog.Int("count", removed))
	}
	return removed
}

func (m *Manager) state(domain string) *domainState {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.domains[domain]
	if ok {
		return st
	}

	st = &domainState{lastActivity: m.now()}
	st.breaker = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name: domain,
		// Half-open must admit SuccessThreshold trial requests:
		// gobreaker closes at ConsecutiveSuccesses >= MaxRequests.
		MaxRequests: uint32(m.cfg.SuccessThreshold),
		Timeout:     m.cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= m.cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				st.mu.Lock()
				st.openedAt = m.now()
				st.mu.Unlock()
			}
			m.log.Info("circuit state change",
				slog.String("domain", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	m.domains[domain] = st
	return st
}
