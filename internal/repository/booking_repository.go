package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"travelhub/api/internal/models"
)

var ErrBookingNotFound = errors.New("booking not found")

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const bookingColumns = `id, number, user_id, package_id, departure_date, adults, children,
	lead_traveler, travelers, add_ons, total_minor, currency, status, payment_status,
	purchase_id, created_at, updated_at`

func scanBooking(row pgx.Row) (models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID,
		&b.Number,
		&b.UserID,
		&b.PackageID,
		&b.DepartureDate,
		&b.Adults,
		&b.Children,
		&b.LeadTraveler,
		&b.Travelers,
		&b.AddOns,
		&b.TotalMinor,
		&b.Currency,
		&b.Status,
		&b.PaymentStatus,
		&b.PurchaseID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func (r *BookingRepository) Create(ctx context.Context, b models.Booking) error {
	const query = `
		INSERT INTO bookings (
			id, number, user_id, package_id, departure_date, adults, children,
			lead_traveler, travelers, add_ons, total_minor, currency, status, payment_status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		b.ID,
		b.Number,
		b.UserID,
		b.PackageID,
		b.DepartureDate,
		b.Adults,
		b.Children,
		b.LeadTraveler,
		b.Travelers,
		b.AddOns,
		b.TotalMinor,
		b.Currency,
		b.Status,
		b.PaymentStatus,
	)
	return err
}

func (r *BookingRepository) GetByNumber(ctx context.Context, number string) (models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE number = $1`

	b, err := scanBooking(r.pool.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Booking{}, ErrBookingNotFound
		}
		return models.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) GetByPurchaseID(ctx context.Context, purchaseID string) (models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE purchase_id = $1`

	b, err := scanBooking(r.pool.QueryRow(ctx, query, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Booking{}, ErrBookingNotFound
		}
		return models.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) List(ctx context.Context, limit, offset int) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.list(ctx, query, limit, offset)
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, query, userID, limit, offset)
}

// ListAwaitingPayment returns pending, unpaid bookings holding a purchase
// that has not changed since staleBefore.
func (r *BookingRepository) ListAwaitingPayment(ctx context.Context, staleBefore time.Time, limit int) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE payment_status = 'unpaid' AND purchase_id IS NOT NULL AND status = 'pending' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`
	return r.list(ctx, query, staleBefore, limit)
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *BookingRepository) SetPurchase(ctx context.Context, number string, purchaseID string) error {
	const query = `UPDATE bookings SET purchase_id = $2, updated_at = NOW() WHERE number = $1`
	cmd, err := r.pool.Exec(ctx, query, number, purchaseID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) UpdatePaymentStatus(ctx context.Context, number string, status models.BookingStatus, payment models.PaymentStatus) error {
	const query = `
		UPDATE bookings
		SET status = $2, payment_status = $3, updated_at = NOW()
		WHERE number = $1
	`
	cmd, err := r.pool.Exec(ctx, query, number, status, payment)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}
