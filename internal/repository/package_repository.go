package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"travelhub/api/internal/models"
)

var ErrPackageNotFound = errors.New("package not found")

type PackageRepository struct {
	pool *pgxpool.Pool
}

func NewPackageRepository(pool *pgxpool.Pool) *PackageRepository {
	return &PackageRepository{pool: pool}
}

const packageColumns = `id, code, name, destination, duration_days, adult_price_minor, child_price_minor,
	currency, max_group_size, add_ons, active, created_at, updated_at`

func scanPackage(row pgx.Row) (models.Package, error) {
	var pkg models.Package
	err := row.Scan(
		&pkg.ID,
		&pkg.Code,
		&pkg.Name,
		&pkg.Destination,
		&pkg.DurationDays,
		&pkg.AdultPriceMinor,
		&pkg.ChildPriceMinor,
		&pkg.Currency,
		&pkg.MaxGroupSize,
		&pkg.AddOns,
		&pkg.Active,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	)
	return pkg, err
}

func (r *PackageRepository) GetByID(ctx context.Context, id string) (models.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE id = $1`

	pkg, err := scanPackage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Package{}, ErrPackageNotFound
		}
		return models.Package{}, err
	}
	return pkg, nil
}

func (r *PackageRepository) ListActive(ctx context.Context) ([]models.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE active ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packages []models.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

// Probe runs the cheapest possible read against the packages table and is
// used as a data API connectivity check.
func (r *PackageRepository) Probe(ctx context.Context) error {
	const query = `SELECT id FROM packages LIMIT 1`
	var id string
	err := r.pool.QueryRow(ctx, query).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return nil
}
