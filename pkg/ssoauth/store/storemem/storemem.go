// Package storemem is a hand-written in-memory fake of store.Store,
// used by the engine's tests in place of a real database
// (mirrors how the teacher's apikeysrv/otpsrv services are tested
// against their repository interfaces rather than a live Postgres).
package storemem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
)

// Store is a single-process, mutex-guarded implementation of
// store.Store. It does not attempt to be efficient; it attempts to be
// obviously correct against the keyset/consuming-read contracts.
type Store struct {
	mu       sync.Mutex
	services map[ssoid.ServiceID]model.Service
	users    map[ssoid.UserID]model.User
	keys     map[ssoid.KeyID]model.Key
	csrf     map[string]model.Csrf
	audits   map[ssoid.AuditID]model.Audit
	auditSeq []ssoid.AuditID
	locks    map[int64]*sync.RWMutex
}

func New() *Store {
	return &Store{
		services: map[ssoid.ServiceID]model.Service{},
		users:    map[ssoid.UserID]model.User{},
		keys:     map[ssoid.KeyID]model.Key{},
		csrf:     map[string]model.Csrf{},
		audits:   map[ssoid.AuditID]model.Audit{},
		locks:    map[int64]*sync.RWMutex{},
	}
}

func (s *Store) lockFor(key int64) *sync.RWMutex {
	l, ok := s.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) ExclusiveLock(ctx context.Context, key int64, fn func(context.Context) error) error {
	s.mu.Lock()
	l := s.lockFor(key)
	s.mu.Unlock()
	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

func (s *Store) SharedLock(ctx context.Context, key int64, fn func(context.Context) error) error {
	s.mu.Lock()
	l := s.lockFor(key)
	s.mu.Unlock()
	l.RLock()
	defer l.RUnlock()
	return fn(ctx)
}

// --- Service ---

func (s *Store) ServiceCreate(ctx context.Context, svc model.Service) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	svc.CreatedAt, svc.UpdatedAt = now, now
	s.services[svc.ID] = svc
	return svc, nil
}

func (s *Store) ServiceRead(ctx context.Context, id ssoid.ServiceID) (*model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, nil
	}
	return &svc, nil
}

func (s *Store) ServiceUpdate(ctx context.Context, svc model.Service) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[svc.ID]; !ok {
		return model.Service{}, ssoerr.NotFound("service not found")
	}
	svc.UpdatedAt = time.Now().UTC()
	s.services[svc.ID] = svc
	return svc, nil
}

func (s *Store) ServiceDelete(ctx context.Context, id ssoid.ServiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services, id)
	return nil
}

func (s *Store) ServiceList(ctx context.Context, p store.ListParams) ([]model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]model.Service, 0, len(s.services))
	for _, svc := range s.services {
		all = append(all, svc)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return applyCursor(all, p, func(svc model.Service) time.Time { return svc.CreatedAt }), nil
}

// --- User ---

func (s *Store) UserCreate(ctx context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return model.User{}, ssoerr.Conflict("email already registered")
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserRead(ctx context.Context, id ssoid.UserID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) UserReadByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) UserUpdate(ctx context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return model.User{}, ssoerr.NotFound("user not found")
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserDelete(ctx context.Context, id ssoid.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *Store) UserList(ctx context.Context, p store.ListParams) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return applyCursor(all, p, func(u model.User) time.Time { return u.CreatedAt }), nil
}

// --- Key ---

func (s *Store) KeyCreate(ctx context.Context, k model.Key) (model.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	k.CreatedAt, k.UpdatedAt = now, now
	s.keys[k.ID] = k
	return k, nil
}

func (s *Store) KeyRead(ctx context.Context, id ssoid.KeyID) (*model.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return nil, nil
	}
	return &k, nil
}

func (s *Store) KeyReadByValue(ctx context.Context, value string) (*model.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.Value == value {
			cp := k
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) KeyReadByUser(ctx context.Context, serviceID ssoid.ServiceID, userID ssoid.UserID, t model.KeyType) (*model.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ServiceID != nil && *k.ServiceID == serviceID &&
			k.UserID != nil && *k.UserID == userID && k.Type == t {
			cp := k
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) KeyUpdate(ctx context.Context, k model.Key) (model.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[k.ID]; !ok {
		return model.Key{}, ssoerr.NotFound("key not found")
	}
	k.UpdatedAt = time.Now().UTC()
	s.keys[k.ID] = k
	return k, nil
}

func (s *Store) KeyDelete(ctx context.Context, id ssoid.KeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, id)
	return nil
}

func (s *Store) KeyList(ctx context.Context, serviceID *ssoid.ServiceID, p store.ListParams) ([]model.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]model.Key, 0, len(s.keys))
	for _, k := range s.keys {
		if serviceID != nil && (k.ServiceID == nil || *k.ServiceID != *serviceID) {
			continue
		}
		all = append(all, k)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return applyCursor(all, p, func(k model.Key) time.Time { return k.CreatedAt }), nil
}

func (s *Store) KeyUpdateManyByUser(ctx context.Context, userID ssoid.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, k := range s.keys {
		if k.UserID != nil && *k.UserID == userID {
			k.IsEnabled = false
			k.IsRevoked = true
			k.UpdatedAt = time.Now().UTC()
			s.keys[id] = k
			count++
		}
	}
	return count, nil
}

// --- Csrf ---

func (s *Store) CsrfCreate(ctx context.Context, c model.Csrf) (model.Csrf, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.CreatedAt = time.Now().UTC()
	s.csrf[c.Key] = c
	return c, nil
}

func (s *Store) CsrfReadOpt(ctx context.Context, key string) (*model.Csrf, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for k, c := range s.csrf {
		if !c.TTL.After(now) {
			delete(s.csrf, k)
		}
	}
	c, ok := s.csrf[key]
	if !ok {
		return nil, nil
	}
	delete(s.csrf, key)
	return &c, nil
}

// --- Audit ---

func (s *Store) AuditCreate(ctx context.Context, a model.Audit) (model.Audit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.CreatedAt = time.Now().UTC()
	s.audits[a.ID] = a
	s.auditSeq = append(s.auditSeq, a.ID)
	return a, nil
}

func (s *Store) AuditRead(ctx context.Context, id ssoid.AuditID) (*model.Audit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// AuditList applies the service, created_at range and type filters and
// Limit; the Gt/Lt/OffsetID cursors are not applied.
func (s *Store) AuditList(ctx context.Context, p store.AuditListParams) ([]model.Audit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Audit, 0, len(s.auditSeq))
	for _, id := range s.auditSeq {
		a := s.audits[id]
		if p.ServiceID != nil && (a.ServiceID == nil || *a.ServiceID != *p.ServiceID) {
			continue
		}
		if p.CreatedGe != nil && a.CreatedAt.Before(*p.CreatedGe) {
			continue
		}
		if p.CreatedLe != nil && a.CreatedAt.After(*p.CreatedLe) {
			continue
		}
		if len(p.Types) > 0 && !containsStr(p.Types, a.Type) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

// cursorLayout matches storepg.EncodeCursor's RFC3339Nano created_at
// cursor format, so a fake-backed test and a real-backed test can share
// the same ListParams values.
const cursorLayout = time.RFC3339Nano

// applyCursor filters an ascending-by-created_at slice against a
// created_at keyset cursor and applies the limit. When only Lt is set,
// the result is taken from the tail (the most recent page) rather than
// the head, matching storepg's "fetch descending, reverse" contract.
func applyCursor[T any](all []T, p store.ListParams, createdAt func(T) time.Time) []T {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	var gt, lt *time.Time
	if p.Gt != nil {
		if t, err := time.Parse(cursorLayout, *p.Gt); err == nil {
			gt = &t
		}
	}
	if p.Lt != nil {
		if t, err := time.Parse(cursorLayout, *p.Lt); err == nil {
			lt = &t
		}
	}

	filtered := make([]T, 0, len(all))
	for _, v := range all {
		ts := createdAt(v)
		if gt != nil && !ts.After(*gt) {
			continue
		}
		if lt != nil && !ts.Before(*lt) {
			continue
		}
		filtered = append(filtered, v)
	}

	if gt == nil && lt != nil {
		if len(filtered) > limit {
			filtered = filtered[len(filtered)-limit:]
		}
		return filtered
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
