package rbac

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested actor has no grants.
var ErrNotFound = errors.New("rbac: not found")

// Service orchestrates RBAC lookups.
type Service struct {
	store Store
}

// NewService constructs a Service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// EffectivePermissions returns the normalized permissions granted to actor.
func (s *Service) EffectivePermissions(ctx context.Context, actor string) ([]string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, ErrNotFound
	}
	if s == nil || s.store == nil {
		return nil, nil
	}
	perms, err := s.store.Permissions(ctx, actor)
	if err != nil {
		return nil, err
	}
	normalized := normalizePermissions(perms)
	sort.Strings(normalized)
	return normalized, nil
}

// PostgresStore reads grants from ledger_actor_permissions.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Permissions implements Store.
func (s *PostgresStore) Permissions(ctx context.Context, actor string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT permission FROM ledger_actor_permissions WHERE actor = $1`, actor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// Grant inserts the grants, ignoring ones that already exist.
func (s *PostgresStore) Grant(ctx context.Context, grants ...Grant) error {
	for _, g := range grants {
		if _, err := s.pool.Exec(ctx, `INSERT INTO ledger_actor_permissions (actor, permission) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			strings.TrimSpace(g.Actor), strings.ToLower(strings.TrimSpace(g.Permission))); err != nil {
			return err
		}
	}
	return nil
}

// MemoryStore keeps grants in process. It backs the memory store driver and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[string]map[string]struct{}
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[string]map[string]struct{})}
}

// Grant records the grants.
func (s *MemoryStore) Grant(grants ...Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range grants {
		actor := strings.TrimSpace(g.Actor)
		if actor == "" {
			continue
		}
		set, ok := s.grants[actor]
		if !ok {
			set = make(map[string]struct{})
			s.grants[actor] = set
		}
		set[strings.ToLower(strings.TrimSpace(g.Permission))] = struct{}{}
	}
}

// Permissions implements Store.
func (s *MemoryStore) Permissions(ctx context.Context, actor string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.grants[actor]
	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	return perms, nil
}

// ParseGrants reads "actor=perm1|perm2;actor2=*" specs. "*" expands to every scope.
func ParseGrants(spec string, scopes []string) []Grant {
	var grants []Grant
	for _, entry := range strings.Split(spec, ";") {
		actor, perms, ok := strings.Cut(strings.TrimSpace(entry), "=")
		actor = strings.TrimSpace(actor)
		if !ok || actor == "" {
			continue
		}
		for _, p := range strings.Split(perms, "|") {
			p = strings.TrimSpace(p)
			switch p {
			case "":
			case "*":
				for _, scope := range scopes {
					grants = append(grants, Grant{Actor: actor, Permission: scope})
				}
			default:
				grants = append(grants, Grant{Actor: actor, Permission: p})
			}
		}
	}
	return grants
}
