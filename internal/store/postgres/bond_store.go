package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantlabs/greenbond/internal/domain"
)

// BondStore implements domain.BondStore. Stake and investment lists are
// append-only JSONB columns; totals are always recomputed from them on read.
type BondStore struct {
	pool *pgxpool.Pool
}

// NewBondStore creates a BondStore backed by the given client.
func NewBondStore(c *Client) *BondStore {
	return &BondStore{pool: c.Pool()}
}

const bondColumns = `id, name, issuer, face_amount, interest_rate, description,
	stake_capacity, staked_cached, nftoken_id, created_at, maturity_date,
	stakes, investments`

// Create inserts a new bond. Returns domain.ErrAlreadyExists when the ID is
// taken.
func (s *BondStore) Create(ctx context.Context, bond domain.Bond) error {
	stakes, investments, err := encodeBondLists(bond)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO bonds (id, name, issuer, face_amount, interest_rate,
			description, stake_capacity, staked_cached, nftoken_id,
			created_at, maturity_date, stakes, investments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = s.pool.Exec(ctx, query,
		bond.ID, bond.Name, bond.Issuer, bond.FaceAmount, bond.InterestRate,
		bond.Description, bond.StakeCapacity, bond.StakedCached, bond.NFTokenID,
		bond.CreatedAt, bond.MaturityDate, stakes, investments,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: create bond %s: %w", bond.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create bond %s: %w", bond.ID, err)
	}
	return nil
}

// GetByID fetches a bond. Returns domain.ErrNotFound when absent.
func (s *BondStore) GetByID(ctx context.Context, id string) (domain.Bond, error) {
	const query = `SELECT ` + bondColumns + ` FROM bonds WHERE id = $1`

	bond, err := scanBond(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Bond{}, fmt.Errorf("postgres: bond %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Bond{}, fmt.Errorf("postgres: get bond %s: %w", id, err)
	}
	return bond, nil
}

// List returns all bonds, newest first.
func (s *BondStore) List(ctx context.Context) ([]domain.Bond, error) {
	const query = `SELECT ` + bondColumns + ` FROM bonds ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bonds: %w", err)
	}
	defer rows.Close()

	var bonds []domain.Bond
	for rows.Next() {
		bond, err := scanBond(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bond: %w", err)
		}
		bonds = append(bonds, bond)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bonds: %w", err)
	}
	return bonds, nil
}

// Save replaces the bond's mutable columns. Returns domain.ErrNotFound when
// the bond does not exist.
func (s *BondStore) Save(ctx context.Context, bond domain.Bond) error {
	stakes, investments, err := encodeBondLists(bond)
	if err != nil {
		return err
	}

	const query = `
		UPDATE bonds
		SET name = $2, issuer = $3, face_amount = $4, interest_rate = $5,
			description = $6, stake_capacity = $7, staked_cached = $8,
			nftoken_id = $9, maturity_date = $10, stakes = $11, investments = $12
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		bond.ID, bond.Name, bond.Issuer, bond.FaceAmount, bond.InterestRate,
		bond.Description, bond.StakeCapacity, bond.StakedCached, bond.NFTokenID,
		bond.MaturityDate, stakes, investments,
	)
	if err != nil {
		return fmt.Errorf("postgres: save bond %s: %w", bond.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: save bond %s: %w", bond.ID, domain.ErrNotFound)
	}
	return nil
}

func encodeBondLists(bond domain.Bond) ([]byte, []byte, error) {
	stakes := bond.Stakes
	if stakes == nil {
		stakes = []domain.Stake{}
	}
	investments := bond.Investments
	if investments == nil {
		investments = []domain.Investment{}
	}

	rawStakes, err := json.Marshal(stakes)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: encode stakes for bond %s: %w", bond.ID, err)
	}
	rawInvestments, err := json.Marshal(investments)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: encode investments for bond %s: %w", bond.ID, err)
	}
	return rawStakes, rawInvestments, nil
}

func scanBond(row pgx.Row) (domain.Bond, error) {
	var (
		bond           domain.Bond
		rawStakes      []byte
		rawInvestments []byte
	)
	err := row.Scan(
		&bond.ID, &bond.Name, &bond.Issuer, &bond.FaceAmount, &bond.InterestRate,
		&bond.Description, &bond.StakeCapacity, &bond.StakedCached, &bond.NFTokenID,
		&bond.CreatedAt, &bond.MaturityDate, &rawStakes, &rawInvestments,
	)
	if err != nil {
		return domain.Bond{}, err
	}

	if err := json.Unmarshal(rawStakes, &bond.Stakes); err != nil {
		return domain.Bond{}, fmt.Errorf("decode stakes: %w", err)
	}
	if err := json.Unmarshal(rawInvestments, &bond.Investments); err != nil {
		return domain.Bond{}, fmt.Errorf("decode investments: %w", err)
	}
	return bond, nil
}

// Compile-time interface check.
var _ domain.BondStore = (*BondStore)(nil)
