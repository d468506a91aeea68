// Package session holds the signed-in state of the client: the bearer token,
// the auth payload returned at login and the current project id. Values are
// mirrored into the local store so they survive between invocations.
package session

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"

	"greenpath/internal/logging"
	"greenpath/internal/store"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Persisted keys.
const (
	KeyToken     = "token"
	KeyAuth      = "auth"
	KeyProjectID = "currentProjectId"
)

// KV is the persistence the session writes through to.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Session is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	kv        KV
	token     string
	auth      json.RawMessage
	projectID string
	log       *zap.Logger
}

// New creates a session backed by kv. kv may be nil for an in-memory session.
func New(kv KV) *Session {
	return &Session{kv: kv, log: logging.Get(logging.CategorySession)}
}

// Init loads persisted values. Missing keys are not an error.
func (s *Session) Init(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	token, err := s.load(ctx, KeyToken)
	if err != nil {
		return err
	}
	auth, err := s.load(ctx, KeyAuth)
	if err != nil {
		return err
	}
	projectID, err := s.load(ctx, KeyProjectID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if auth != "" && gjson.Valid(auth) {
		s.auth = json.RawMessage(auth)
	}
	s.projectID = projectID
	s.log.Debug("session loaded",
		zap.Bool("has_token", token != ""),
		zap.Bool("has_auth", s.auth != nil),
		zap.String("project_id", projectID))
	return nil
}

func (s *Session) load(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to load session %s", key)
	}
	return v, nil
}

func (s *Session) persist(key, value string) error {
	if s.kv == nil {
		return nil
	}
	ctx := context.Background()
	if value == "" {
		return s.kv.Delete(ctx, key)
	}
	return s.kv.Put(ctx, key, value)
}

// Token returns the bearer token, or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken stores a new bearer token. An empty token clears it.
func (s *Session) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return s.persist(KeyToken, token)
}

// ClearToken drops the token. The API client calls this on every 401.
func (s *Session) ClearToken() error {
	s.log.Info("token cleared")
	return s.SetToken("")
}

// SetAuth stores the login payload ({access_token, user}). nil clears it.
func (s *Session) SetAuth(auth json.RawMessage) error {
	if auth != nil && !gjson.ValidBytes(auth) {
		return errors.New("auth payload is not valid JSON")
	}
	s.mu.Lock()
	s.auth = auth
	s.mu.Unlock()
	return s.persist(KeyAuth, string(auth))
}

// UserID returns auth.user.id, or "" when nobody is logged in.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return ""
	}
	v := gjson.GetBytes(s.auth, "user.id")
	switch v.Type {
	case gjson.Number:
		return v.Raw
	case gjson.String:
		return strings.TrimSpace(v.Str)
	default:
		return ""
	}
}

// UserName returns auth.user.name, falling back to the email.
func (s *Session) UserName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name := gjson.GetBytes(s.auth, "user.name").String(); name != "" {
		return name
	}
	return gjson.GetBytes(s.auth, "user.email").String()
}

// ProjectID returns the current project id, or "".
func (s *Session) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

// SetProject makes id the current project.
func (s *Session) SetProject(id string) error {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	s.projectID = id
	s.mu.Unlock()
	return s.persist(KeyProjectID, id)
}

// ResolveProject picks the project id from, in order, an explicit value, a
// query-string style argument ("project_id=..."), and the persisted current
// project. A found id becomes the current project. ok is false when no source
// yields one.
func (s *Session) ResolveProject(explicit, query string) (id string, ok bool, err error) {
	id = strings.TrimSpace(explicit)
	if id == "" {
		id = projectFromQuery(query)
	}
	if id == "" {
		id = s.ProjectID()
	}
	if id == "" {
		return "", false, nil
	}
	if err := s.SetProject(id); err != nil {
		return id, true, err
	}
	return id, true, nil
}

func projectFromQuery(query string) string {
	query = strings.TrimSpace(query)
	if i := strings.IndexByte(query, '?'); i >= 0 {
		query = query[i+1:]
	}
	if query == "" {
		return ""
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(values.Get("project_id"))
}

// Clear logs out: token, auth and current project are all dropped.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.auth = nil
	s.projectID = ""
	s.mu.Unlock()
	if s.kv == nil {
		return nil
	}
	return s.kv.Delete(context.Background(), KeyToken, KeyAuth, KeyProjectID)
}
