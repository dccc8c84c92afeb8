package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store and Denylist for tests and local development.
// A unit of work holds the store lock for its whole duration and stages writes until commit.
type MemoryStore struct {
	mu sync.Mutex

	roles         map[string]Role
	principals    map[int64]Principal
	refresh       map[int64]RefreshTokenRecord
	refreshByHash map[string]int64
	denied        map[string]time.Time

	nextRoleID      int64
	nextPrincipalID int64
	nextRefreshID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:         make(map[string]Role),
		principals:    make(map[int64]Principal),
		refresh:       make(map[int64]RefreshTokenRecord),
		refreshByHash: make(map[string]int64),
		denied:        make(map[string]time.Time),
	}
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:      m,
		principals: make(map[int64]Principal),
		refresh:    make(map[int64]RefreshTokenRecord),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, p := range tx.principals {
		m.principals[id] = p
	}
	for id, record := range tx.refresh {
		m.refresh[id] = record
		m.refreshByHash[record.TokenHash] = id
	}

	return nil
}

func (m *MemoryStore) EnsureRoles(ctx context.Context, roles []Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, role := range roles {
		if _, ok := m.roles[role.Name]; ok {
			continue
		}
		m.nextRoleID++
		role.ID = m.nextRoleID
		role.CreatedAt = time.Now().UTC()
		m.roles[role.Name] = role
	}
	return nil
}

func (m *MemoryStore) UpsertPrincipal(ctx context.Context, np NewPrincipal) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[np.RoleName]
	if !ok {
		return Principal{}, fmt.Errorf("role %q: %w", np.RoleName, ErrNotFound)
	}

	now := time.Now().UTC()
	for id, existing := range m.principals {
		if existing.Email != np.Email {
			continue
		}
		existing.Username = np.Username
		existing.PasswordHash = np.PasswordHash
		existing.RoleID = role.ID
		existing.RoleName = role.Name
		existing.UpdatedAt = now
		m.principals[id] = existing
		return existing, nil
	}

	m.nextPrincipalID++
	p := Principal{
		ID:           m.nextPrincipalID,
		Email:        np.Email,
		Username:     np.Username,
		PasswordHash: np.PasswordHash,
		RoleID:       role.ID,
		RoleName:     role.Name,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.principals[p.ID] = p
	return p, nil
}

func (m *MemoryStore) Revoke(ctx context.Context, key string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.denied[key] = expiresAt
	return nil
}

func (m *MemoryStore) IsRevoked(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.denied[key]
	return ok, nil
}

type memoryTx struct {
	store      *MemoryStore
	principals map[int64]Principal
	refresh    map[int64]RefreshTokenRecord
}

func (t *memoryTx) principal(id int64) (Principal, bool) {
	if p, ok := t.principals[id]; ok {
		return p, true
	}
	p, ok := t.store.principals[id]
	return p, ok
}

func (t *memoryTx) PrincipalByIdentifier(ctx context.Context, identifier string) (Principal, error) {
	var byUsername *Principal
	for id := range t.store.principals {
		p, _ := t.principal(id)
		if p.Email == identifier {
			return p, nil
		}
		if p.Username != nil && *p.Username == identifier && byUsername == nil {
			match := p
			byUsername = &match
		}
	}
	if byUsername != nil {
		return *byUsername, nil
	}
	return Principal{}, ErrNotFound
}

func (t *memoryTx) PrincipalByID(ctx context.Context, id int64) (Principal, error) {
	p, ok := t.principal(id)
	if !ok {
		return Principal{}, ErrNotFound
	}
	return p, nil
}

func (t *memoryTx) SaveLoginState(ctx context.Context, principalID int64, state LoginState) error {
	p, ok := t.principal(principalID)
	if !ok {
		return ErrNotFound
	}
	p.LoginState = state
	p.UpdatedAt = time.Now().UTC()
	t.principals[principalID] = p
	return nil
}

func (t *memoryTx) RefreshTokenByDigest(ctx context.Context, digest string) (RefreshTokenRecord, error) {
	for _, record := range t.refresh {
		if record.TokenHash == digest {
			return record, nil
		}
	}
	id, ok := t.store.refreshByHash[digest]
	if !ok {
		return RefreshTokenRecord{}, ErrNotFound
	}
	return t.store.refresh[id], nil
}

func (t *memoryTx) RevokeRefreshToken(ctx context.Context, id int64) error {
	record, ok := t.refresh[id]
	if !ok {
		record, ok = t.store.refresh[id]
	}
	if !ok {
		return ErrNotFound
	}
	record.Revoked = true
	t.refresh[id] = record
	return nil
}

func (t *memoryTx) InsertRefreshToken(ctx context.Context, record RefreshTokenRecord) (RefreshTokenRecord, error) {
	t.store.nextRefreshID++
	record.ID = t.store.nextRefreshID
	record.Revoked = false
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	t.refresh[record.ID] = record
	return record, nil
}
