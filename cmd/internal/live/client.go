// Package live implements the client side of the live-session contract:
// the command client issuing role-gated state transitions, the stream
// consumer keeping a push channel per session key, and the snapshot types
// both speak.
//
// Every command response is the authoritative new session snapshot. The
// client never computes the next state from old state plus intent; callers
// feed snapshots into the local cache as a full replace.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quizlive/cmd/internal/auth"
	"quizlive/cmd/internal/faults"
	"quizlive/cmd/internal/ids"
	"quizlive/cmd/internal/metrics"
)

// Command/query discriminants of the live service contract (wire-stable).
const (
	cmdPostNewLive           = "COMMAND_POST_NEW_LIVE"
	cmdPatchAddPupilToLobby  = "COMMAND_PATCH_ADD_PUPIL_TO_LOBBY"
	cmdPatchRemovePupilLobby = "COMMAND_PATCH_REMOVE_PUPIL_FROM_LOBBY"
	cmdPatchNextPosition     = "COMMAND_PATCH_NEXT_POSITION"
	cmdPatchPreviousPosition = "COMMAND_PATCH_PREVIOUS_POSITION"
	cmdPatchAddPupilAnswer   = "COMMAND_PATCH_ADD_PUPIL_ANSWER_TO_QUIZ"
	cmdPatchEndLive          = "COMMAND_PATCH_END_LIVE"
	qryGetLive               = "QUERY_GET_LIVE"
	qryGetLiveStream         = "QUERY_GET_LIVE_STREAM"
)

const defaultTimeout = 10 * time.Second

// Credentials resolves the current credential/scope pair as one consistent
// read. Implemented by the auth manager.
type Credentials interface {
	Current() (auth.Credential, auth.Scope, bool)
}

// ClientConfig holds the command client's runtime configuration.
type ClientConfig struct {
	// BaseURL is the live service base, e.g. "https://live.example.com".
	BaseURL string

	// Timeout bounds each command round trip.
	Timeout time.Duration
}

// Client issues commands and queries against the live-session resource.
// Construct with NewClient; it is safe for concurrent use.
type Client struct {
	cfg     ClientConfig
	log     *slog.Logger
	http    *http.Client
	creds   Credentials
	metrics *metrics.Metrics
}

// NewClient constructs a command client.
func NewClient(cfg ClientConfig, log *slog.Logger, creds Credentials, client *http.Client, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, log: log, http: client, creds: creds, metrics: m}
}

// Create starts a new live session for the given quiz. Teacher-gated.
func (c *Client) Create(ctx context.Context, quizKey string) (Live, error) {
	cred, scope, err := c.requireRole(auth.RoleTeacher)
	if err != nil {
		return Live{}, err
	}

	u := fmt.Sprintf("%s/live/v1/post/new/live/%s", c.cfg.BaseURL, cmdPostNewLive)
	form := url.Values{}
	form.Set("login", scope.Login)
	form.Set("code", scope.Code)
	form.Set("keyQuiz", quizKey)

	return c.do(ctx, "create", http.MethodPost, u, cred.Token, form)
}

// AddPupil joins the caller to the session lobby. Pupil-initiated, ungated.
func (c *Client) AddPupil(ctx context.Context, liveKey string) (Live, error) {
	cred, scope, err := c.require()
	if err != nil {
		return Live{}, err
	}

	u := fmt.Sprintf("%s/live/v1/patch/add/pupil/to/lobby/%s", c.cfg.BaseURL, cmdPatchAddPupilToLobby)
	return c.do(ctx, "add_pupil", http.MethodPatch, u, cred.Token, pupilForm(scope, liveKey))
}

// RemovePupil removes a participant from the lobby. Teacher-gated.
func (c *Client) RemovePupil(ctx context.Context, pupilLogin, pupilCode, liveKey string) (Live, error) {
	cred, scope, err := c.requireRole(auth.RoleTeacher)
	if err != nil {
		return Live{}, err
	}

	u := fmt.Sprintf("%s/live/v1/patch/remove/pupil/from/lobby/%s", c.cfg.BaseURL, cmdPatchRemovePupilLobby)
	form := url.Values{}
	form.Set("login", scope.Login)
	form.Set("code", scope.Code)
	form.Set("pupilLogin", pupilLogin)
	form.Set("pupilCode", pupilCode)
	form.Set("keyLive", liveKey)

	return c.do(ctx, "remove_pupil", http.MethodPatch, u, cred.Token, form)
}

// NextPosition advances the session position. Teacher-gated.
func (c *Client) NextPosition(ctx context.Context, liveKey string) (Live, error) {
	return c.teacherPatch(ctx, "next_position", cmdPatchNextPosition, "next/position", liveKey)
}

// PreviousPosition retreats the session position. Teacher-gated.
func (c *Client) PreviousPosition(ctx context.Context, liveKey string) (Live, error) {
	return c.teacherPatch(ctx, "previous_position", cmdPatchPreviousPosition, "previous/position", liveKey)
}

// End terminates the session. Teacher-gated.
func (c *Client) End(ctx context.Context, liveKey string) (Live, error) {
	return c.teacherPatch(ctx, "end", cmdPatchEndLive, "end/live", liveKey)
}

// SubmitAnswer submits the caller's answers for the current item.
// Pupil-initiated, ungated. Answer values ride as repeated query params.
func (c *Client) SubmitAnswer(ctx context.Context, liveKey string, answers []string) (Live, error) {
	cred, scope, err := c.require()
	if err != nil {
		return Live{}, err
	}

	u := fmt.Sprintf("%s/live/v1/patch/add/pupil/answer/to/quiz/%s", c.cfg.BaseURL, cmdPatchAddPupilAnswer)
	if len(answers) > 0 {
		params := url.Values{}
		for _, a := range answers {
			params.Add("answerItem", a)
		}
		u += "?" + params.Encode()
	}

	return c.do(ctx, "submit_answer", http.MethodPatch, u, cred.Token, pupilForm(scope, liveKey))
}

// Get fetches the session snapshot by key. Any role.
func (c *Client) Get(ctx context.Context, liveKey string) (Live, error) {
	cred, _, err := c.require()
	if err != nil {
		return Live{}, err
	}

	u := fmt.Sprintf("%s/live/v1/get/live/%s/%s", c.cfg.BaseURL, qryGetLive, url.PathEscape(liveKey))
	return c.do(ctx, "get", http.MethodGet, u, cred.Token, nil)
}

func (c *Client) teacherPatch(ctx context.Context, op, command, path, liveKey string) (Live, error) {
	cred, scope, err := c.requireRole(auth.RoleTeacher)
	if err != nil {
		return Live{}, err
	}

	u := fmt.Sprintf("%s/live/v1/patch/%s/%s", c.cfg.BaseURL, path, command)
	form := url.Values{}
	form.Set("login", scope.Login)
	form.Set("code", scope.Code)
	form.Set("keyLive", liveKey)

	return c.do(ctx, op, http.MethodPatch, u, cred.Token, form)
}

func pupilForm(scope auth.Scope, liveKey string) url.Values {
	form := url.Values{}
	form.Set("pupilLogin", scope.Login)
	form.Set("pupilCode", scope.Code)
	form.Set("keyLive", liveKey)
	return form
}

// require resolves the current pair, failing closed without one.
func (c *Client) require() (auth.Credential, auth.Scope, error) {
	cred, scope, ok := c.creds.Current()
	if !ok || cred.IsZero() {
		return auth.Credential{}, auth.Scope{}, faults.New(faults.InvalidToken,
			"no credential for live command", "run EnsureAnonymous first", auth.ErrNoCredential)
	}
	return cred, scope, nil
}

// requireRole additionally checks the scope client-side. A missing role
// returns ErrRoleDenied before any network traffic; the server still
// enforces authorization on its own.
func (c *Client) requireRole(role auth.Role) (auth.Credential, auth.Scope, error) {
	cred, scope, err := c.require()
	if err != nil {
		return auth.Credential{}, auth.Scope{}, err
	}
	if !scope.Has(role) {
		c.log.Info("live.command.role_denied", "required", role, "roles", scope.Roles)
		return auth.Credential{}, auth.Scope{}, ErrRoleDenied
	}
	return cred, scope, nil
}

func (c *Client) do(ctx context.Context, op, method, rawURL, bearer string, form url.Values) (Live, error) {
	start := time.Now()
	l, err := c.roundTrip(ctx, method, rawURL, bearer, form)
	c.metrics.ObserveCommand(op, time.Since(start), err)

	if err != nil {
		c.log.Error("live.command.fail", "op", op, "err", err)
		return Live{}, err
	}
	c.log.Debug("live.command.ok", "op", op, "key", l.Key, "status", l.Status)
	return l, nil
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL, bearer string, form url.Values) (Live, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return Live{}, faults.New(faults.UnexpectedError, "build live request", "report this issue", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("X-Request-Id", ids.RequestID())

	resp, err := c.http.Do(req)
	if err != nil {
		return Live{}, faults.New(faults.ConnectionFailed, "live service unreachable", "check live service availability and QUIZLIVE_LIVE_URL", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Live{}, faults.New(faults.InvalidToken, "live service rejected the credential", "re-run EnsureAnonymous or sign in again", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Live{}, faults.New(faults.UnexpectedError, "live service returned an unexpected status", "check live service logs", fmt.Errorf("status %d", resp.StatusCode))
	}

	var l Live
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return Live{}, faults.New(faults.InvalidResponse, "decode live snapshot", "check live service contract version", err)
	}
	return l, nil
}
