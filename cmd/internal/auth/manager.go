// Package auth owns the credential lifecycle of the engine: acquisition,
// validation, and wholesale replacement of the bearer token and the
// authorization scope derived from it.
//
// The manager holds exactly one credential/scope pair at a time. The pair
// is installed and cleared together; readers never observe a half-updated
// state. Anonymous issuance is coalesced so concurrent callers share one
// outstanding request instead of minting two anonymous identities.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizlive/cmd/internal/faults"
	"quizlive/cmd/internal/ids"
	"quizlive/cmd/internal/metrics"
)

// Command/query discriminants of the auth service contract (wire-stable).
const (
	cmdPostAnonymousToken = "COMMAND_POST_ANONYMOUS_TOKEN"
	cmdPostSignInToken    = "COMMAND_POST_SIGN_IN_TOKEN"
	qryGetStatusToken     = "QUERY_GET_STATUS_TOKEN"
	qryGetScopeToken      = "QUERY_GET_SCOPE_TOKEN"
)

const defaultTimeout = 10 * time.Second

// Records is the durable storage the manager persists the pair into.
// Implemented by the store package; tests supply an in-memory fake.
type Records interface {
	Get(ctx context.Context, name string) (body []byte, found bool, err error)
	Put(ctx context.Context, name string, body []byte) error
	Delete(ctx context.Context, name string) error
}

// Record names in durable storage.
const (
	recordCredential = "token"
	recordScope      = "scope"
)

// Config holds the manager's runtime configuration.
type Config struct {
	// BaseURL is the auth service base, e.g. "https://auth.example.com".
	BaseURL string

	// Timeout bounds each auth request.
	Timeout time.Duration
}

// Manager is the token lifecycle manager. Construct with New; it is safe
// for concurrent use.
type Manager struct {
	cfg     Config
	log     *slog.Logger
	http    *http.Client
	records Records
	metrics *metrics.Metrics

	flight singleflight.Group

	mu    sync.RWMutex
	cred  Credential
	scope Scope
	ok    bool
}

// New constructs a Manager and loads any persisted credential/scope pair.
// A missing or unparseable record degrades to "no pair"; startup never fails
// on corrupt local state.
func New(cfg Config, log *slog.Logger, records Records, client *http.Client, m *metrics.Metrics) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	mgr := &Manager{
		cfg:     cfg,
		log:     log,
		http:    client,
		records: records,
		metrics: m,
	}
	mgr.loadPersisted()
	return mgr
}

func (m *Manager) loadPersisted() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
	defer cancel()

	credBody, credFound, err := m.records.Get(ctx, recordCredential)
	if err != nil {
		m.log.Warn("auth.load.credential.fail", "err", err)
		return
	}
	scopeBody, scopeFound, err := m.records.Get(ctx, recordScope)
	if err != nil {
		m.log.Warn("auth.load.scope.fail", "err", err)
		return
	}
	// The pair is only usable complete; a lone credential fails closed.
	if !credFound || !scopeFound {
		return
	}

	var cred Credential
	var scope Scope
	if json.Unmarshal(credBody, &cred) != nil || json.Unmarshal(scopeBody, &scope) != nil {
		m.log.Warn("auth.load.parse.fail")
		return
	}
	if cred.IsZero() {
		return
	}

	m.mu.Lock()
	m.cred, m.scope, m.ok = cred, scope, true
	m.mu.Unlock()
}

// Current returns the credential/scope pair as one consistent read.
func (m *Manager) Current() (Credential, Scope, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred, m.scope, m.ok
}

// IsAuthenticated reports whether the current scope carries an identified role.
func (m *Manager) IsAuthenticated() bool {
	_, scope, ok := m.Current()
	return ok && !scope.Has(RoleAnonymous)
}

// IsAnonymous reports whether the client currently holds an anonymous scope
// (or no scope at all).
func (m *Manager) IsAnonymous() bool {
	return !m.IsAuthenticated()
}

// EnsureAnonymous guarantees the client holds some usable credential.
//
// When the stored credential is still ACTIVE per the server-side status
// check this is a no-op. Otherwise one anonymous issuance request runs;
// overlapping callers await its result instead of double-issuing.
func (m *Manager) EnsureAnonymous(ctx context.Context) (Credential, error) {
	if cred, _, ok := m.Current(); ok && m.CheckStatus(ctx, cred.Token) {
		return cred, nil
	}

	v, err, _ := m.flight.Do("anonymous", func() (any, error) {
		// Re-check inside the flight: a caller that observed "no credential"
		// may arrive after a finished flight already installed one.
		if cred, _, ok := m.Current(); ok && m.CheckStatus(ctx, cred.Token) {
			return cred, nil
		}
		return m.issueAnonymous(ctx)
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

func (m *Manager) issueAnonymous(ctx context.Context) (Credential, error) {
	u := fmt.Sprintf("%s/auth/v1/post/anonymous/token/%s", m.cfg.BaseURL, cmdPostAnonymousToken)

	var cred Credential
	err := m.postForm(ctx, u, "", nil, &cred)
	m.metrics.CountToken("anonymous", err)
	if err != nil {
		m.log.Error("auth.anonymous.issue.fail", "err", err)
		return Credential{}, err
	}

	scope, err := m.fetchScope(ctx, cred.Token)
	if err != nil {
		return Credential{}, err
	}

	if err := m.install(ctx, cred, scope); err != nil {
		return Credential{}, err
	}

	m.log.Info("auth.anonymous.issued", "expiry", cred.ExpiryAt)
	return cred, nil
}

func (m *Manager) fetchScope(ctx context.Context, token string) (Scope, error) {
	u := fmt.Sprintf("%s/auth/v1/get/scope/token/%s", m.cfg.BaseURL, qryGetScopeToken)

	var scope Scope
	err := m.getJSON(ctx, u, token, &scope)
	m.metrics.CountToken("scope", err)
	if err != nil {
		m.log.Error("auth.scope.fetch.fail", "err", err)
		return Scope{}, err
	}
	return scope, nil
}

// install persists then publishes the pair. Both records are written before
// the in-memory swap so a restart never loads a newer credential with an
// older scope.
func (m *Manager) install(ctx context.Context, cred Credential, scope Scope) error {
	credBody, err := json.Marshal(cred)
	if err != nil {
		return faults.New(faults.UnexpectedError, "encode credential record", "report this issue", err)
	}
	scopeBody, err := json.Marshal(scope)
	if err != nil {
		return faults.New(faults.UnexpectedError, "encode scope record", "report this issue", err)
	}

	if err := m.records.Put(ctx, recordCredential, credBody); err != nil {
		return faults.New(faults.UnexpectedError, "persist credential record", "check local storage path and permissions", err)
	}
	if err := m.records.Put(ctx, recordScope, scopeBody); err != nil {
		// Roll the credential record back so storage never holds a lone credential.
		_ = m.records.Delete(ctx, recordCredential)
		return faults.New(faults.UnexpectedError, "persist scope record", "check local storage path and permissions", err)
	}

	m.mu.Lock()
	m.cred, m.scope, m.ok = cred, scope, true
	m.mu.Unlock()
	return nil
}

// SignIn exchanges the current (anonymous) credential for an identified one.
//
// On success the old pair is discarded and the new pair installed atomically.
// On any failure the old pair remains active and usable.
func (m *Manager) SignIn(ctx context.Context, login, code, password string) error {
	cred, _, ok := m.Current()
	if !ok {
		return faults.New(faults.InvalidToken, "sign in without a current credential", "run EnsureAnonymous first", ErrNoCredential)
	}

	u := fmt.Sprintf("%s/auth/v1/post/sign/in/token/%s", m.cfg.BaseURL, cmdPostSignInToken)
	form := url.Values{}
	form.Set("login", login)
	form.Set("code", code)
	form.Set("password", password)

	var next Credential
	err := m.postForm(ctx, u, cred.Token, form, &next)
	m.metrics.CountToken("sign_in", err)
	if err != nil {
		m.log.Error("auth.signin.fail", "login", login, "err", err)
		return err
	}
	if next.IsZero() {
		m.log.Info("auth.signin.rejected", "login", login)
		return faults.New(faults.InvalidToken, "server did not grant an identified token", "check login, code, and password", ErrExchangeRejected)
	}

	scope, err := m.fetchScope(ctx, next.Token)
	if err != nil {
		return err
	}

	if err := m.install(ctx, next, scope); err != nil {
		return err
	}

	m.log.Info("auth.signin.ok", "login", login, "roles", scope.Roles)
	return nil
}

// CheckStatus queries the server-side activation status of token.
// Any transport or decode failure reads as "not valid" (fail closed).
func (m *Manager) CheckStatus(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	u := fmt.Sprintf("%s/auth/v1/get/status/token/%s", m.cfg.BaseURL, qryGetStatusToken)

	var status tokenStatusResponse
	err := m.getJSON(ctx, u, token, &status)
	m.metrics.CountToken("status", err)
	if err != nil {
		m.log.Info("auth.status.check.fail", "err", err)
		return false
	}
	return status.Status == TokenActive
}

// SignOut clears the pair (memory and durable storage), then re-establishes
// an anonymous credential so the client always holds some usable identity.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.cred, m.scope, m.ok = Credential{}, Scope{}, false
	m.mu.Unlock()

	if err := m.records.Delete(ctx, recordCredential); err != nil {
		m.log.Warn("auth.signout.clear.credential.fail", "err", err)
	}
	if err := m.records.Delete(ctx, recordScope); err != nil {
		m.log.Warn("auth.signout.clear.scope.fail", "err", err)
	}

	_, err := m.EnsureAnonymous(ctx)
	return err
}

func (m *Manager) getJSON(ctx context.Context, rawURL, bearer string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return faults.New(faults.UnexpectedError, "build auth request", "report this issue", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return m.send(req, bearer, dst)
}

func (m *Manager) postForm(ctx context.Context, rawURL, bearer string, form url.Values, dst any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, body)
	if err != nil {
		return faults.New(faults.UnexpectedError, "build auth request", "report this issue", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return m.send(req, bearer, dst)
}

func (m *Manager) send(req *http.Request, bearer string, dst any) error {
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("X-Request-Id", ids.RequestID())

	resp, err := m.http.Do(req)
	if err != nil {
		return faults.New(faults.ConnectionFailed, "auth service unreachable", "check auth service availability and QUIZLIVE_AUTH_URL", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return faults.New(faults.InvalidToken, "auth service rejected the credential", "re-run EnsureAnonymous or sign in again", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return faults.New(faults.UnexpectedError, "auth service returned an unexpected status", "check auth service logs", fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return faults.New(faults.InvalidResponse, "decode auth response", "check auth service contract version", err)
	}
	return nil
}
