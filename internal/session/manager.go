// Package session owns the authenticated HTTP session used to probe and
// validate links against the hosting site.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

// ErrAuthRetriesExhausted is returned when self-heal keeps getting 401
// for the maximum number of attempts.
var ErrAuthRetriesExhausted = errors.New("session: auth retries exhausted")

var errUnauthorized = errors.New("session: unauthorized")

const maxHealAttempts = 10

// Browser-like identities rotated on self-heal. The exact strings do not
// matter, only that consecutive attempts differ.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.7; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// Config carries the knobs tests need to override. Zero values fall back
// to production defaults.
type Config struct {
	// ProbeURL is a known-good video page used for liveness probes.
	ProbeURL string
	// Domain is the substring a link must contain to be considered ours.
	Domain string
	// HealInterval is the pause between self-heal attempts.
	HealInterval time.Duration
	// Timeout bounds every probe request.
	Timeout time.Duration
}

// Manager holds one authenticated session per process. The session
// (client + identity headers) is replaced wholesale on re-authentication,
// never partially mutated.
type Manager struct {
	mu      sync.Mutex
	client  *http.Client
	headers http.Header

	probeURL     string
	domain       string
	healInterval time.Duration
	timeout      time.Duration
}

func New(cfg Config) *Manager {
	if cfg.ProbeURL == "" {
		cfg.ProbeURL = "https://rutube.ru/video/4e1db85ae675260ca419924462182261/"
	}
	if cfg.Domain == "" {
		cfg.Domain = "rutube.ru"
	}
	if cfg.HealInterval == 0 {
		cfg.HealInterval = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	m := &Manager{
		probeURL:     cfg.ProbeURL,
		domain:       cfg.Domain,
		healInterval: cfg.HealInterval,
		timeout:      cfg.Timeout,
	}
	m.rotate()
	return m
}

// Init performs the first liveness probe. A failure here is fatal for the
// process.
func (m *Manager) Init(ctx context.Context) error {
	if err := m.probe(ctx, m.probeURL); err != nil {
		if errors.Is(err, errUnauthorized) {
			return m.heal(ctx)
		}
		return fmt.Errorf("session init: %w", err)
	}
	logger.Info("session initialized")
	return nil
}

// Validate reports whether the link points at the supported domain and is
// reachable with the current session. Links outside the domain are
// rejected without any network probe. A 401 triggers self-heal; the link
// is considered valid iff the heal succeeds.
func (m *Manager) Validate(ctx context.Context, link string) bool {
	if !strings.Contains(link, m.domain) {
		logger.Warn("not a supported link", "link", link)
		return false
	}

	err := m.probe(ctx, link)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errUnauthorized):
		logger.Warn("probe unauthorized, healing session")
		if healErr := m.heal(ctx); healErr != nil {
			logger.Error("session heal failed", "error", healErr)
			return false
		}
		return true
	default:
		logger.Error("link probe failed", "link", link, "error", err)
		return false
	}
}

// heal replaces the identity and the session object and re-probes, up to
// maxHealAttempts times. Only 401 is retryable; anything else aborts.
func (m *Manager) heal(ctx context.Context) error {
	attempt := 0
	op := func() error {
		attempt++
		m.rotate()
		logger.Info("retrying probe with fresh session", "attempt", attempt)

		err := m.probe(ctx, m.probeURL)
		if err == nil {
			return nil
		}
		if errors.Is(err, errUnauthorized) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.healInterval), maxHealAttempts-1),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, errUnauthorized) {
			return fmt.Errorf("%w after %d attempts", ErrAuthRetriesExhausted, attempt)
		}
		return err
	}
	logger.Info("session healed", "attempts", attempt)
	return nil
}

// rotate swaps in a fresh client and a new identity. The next identity is
// always different from the current one, so repeated 401s are never
// caused by re-sending a rejected identity.
func (m *Manager) rotate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := ""
	if m.headers != nil {
		current = m.headers.Get("User-Agent")
	}
	next := userAgents[rand.Intn(len(userAgents))]
	for next == current {
		next = userAgents[rand.Intn(len(userAgents))]
	}

	h := http.Header{}
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Referer", "https://rutube.ru/")
	h.Set("User-Agent", next)

	m.headers = h
	m.client = &http.Client{Timeout: m.timeout}
}

// HTTPClient returns a client that attaches the current session identity
// to every request. Headers are read per request, so callers pick up
// self-heal rotations without re-wiring.
func (m *Manager) HTTPClient() *http.Client {
	return &http.Client{Transport: &sessionTransport{m: m}, Timeout: m.timeout}
}

type sessionTransport struct {
	m *Manager
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.m.mu.Lock()
	headers := t.m.headers.Clone()
	t.m.mu.Unlock()

	req = req.Clone(req.Context())
	for key, values := range headers {
		if len(req.Header.Values(key)) == 0 {
			req.Header[key] = values
		}
	}
	return http.DefaultTransport.RoundTrip(req)
}

func (m *Manager) probe(ctx context.Context, rawURL string) error {
	m.mu.Lock()
	client := m.client
	headers := m.headers.Clone()
	m.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header = headers

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	logger.Debug("probe", "url", rawURL, "status", resp.StatusCode)
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return errUnauthorized
	default:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
}
