package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/provider"
	"github.com/jackc/pgx/v5"
)

// ProviderRepository is the Postgres-backed provider.Registry.
type ProviderRepository struct {
	store *Store
}

// NewProviderRepository wraps store as a provider.Registry.
func NewProviderRepository(store *Store) *ProviderRepository {
	return &ProviderRepository{store: store}
}

var _ provider.Registry = (*ProviderRepository)(nil)

type providerRow struct {
	ID          string    `db:"id"`
	NamespaceID string    `db:"namespace_id"`
	Type        string    `db:"type"`
	Alias       string    `db:"alias"`
	Config      []byte    `db:"config"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r providerRow) toDomain() *provider.Provider {
	return &provider.Provider{
		ID:          core.ID(r.ID),
		NamespaceID: core.ID(r.NamespaceID),
		Type:        provider.Kind(r.Type),
		Alias:       r.Alias,
		Config:      r.Config,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (repo *ProviderRepository) Get(
	ctx context.Context,
	namespaceID core.ID,
	kind provider.Kind,
	alias string,
) (*provider.Provider, error) {
	sqlStr, args, err := psql.Select("id", "namespace_id", "type", "alias", "config", "created_at", "updated_at").
		From("providers").
		Where(sq.Eq{"namespace_id": namespaceID.String(), "type": string(kind), "alias": alias}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get-provider query: %w", err)
	}
	var row providerRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sqlStr, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("provider %s:%s: %w", kind, alias, ErrNotFound)
		}
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return row.toDomain(), nil
}

func (repo *ProviderRepository) GetByID(ctx context.Context, id core.ID) (*provider.Provider, error) {
	sqlStr, args, err := psql.Select("id", "namespace_id", "type", "alias", "config", "created_at", "updated_at").
		From("providers").
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get-provider-by-id query: %w", err)
	}
	var row providerRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sqlStr, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("provider %s: %w", id.String(), ErrNotFound)
		}
		return nil, fmt.Errorf("get provider by id: %w", err)
	}
	return row.toDomain(), nil
}

func (repo *ProviderRepository) Create(ctx context.Context, p *provider.Provider) error {
	if p.ID.IsZero() {
		p.ID = core.MustNewID()
	}
	sqlStr, args, err := psql.Insert("providers").
		Columns("id", "namespace_id", "type", "alias", "config").
		Values(p.ID.String(), p.NamespaceID.String(), string(p.Type), p.Alias, p.Config).
		Suffix("ON CONFLICT (namespace_id, type, alias) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert-provider query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

func (repo *ProviderRepository) ListByNamespace(ctx context.Context, namespaceID core.ID) ([]*provider.Provider, error) {
	sqlStr, args, err := psql.Select("id", "namespace_id", "type", "alias", "config", "created_at", "updated_at").
		From("providers").Where(sq.Eq{"namespace_id": namespaceID.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list-providers query: %w", err)
	}
	var rows []providerRow
	if err := scanAll(ctx, repo.store.Pool(), &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	out := make([]*provider.Provider, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
