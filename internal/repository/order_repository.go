package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-realtime/internal/domain"
)

// OrderRepository encapsulates order persistence.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Order, error)
	Stats(ctx context.Context, dayStart time.Time) (domain.OrderStats, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository instantiates repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderColumns = `id, order_number, customer_id, customer_name, customer_email, status,
               total_amount::float8, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	const query = `
        INSERT INTO orders (order_number, customer_id, customer_name, customer_email, status, total_amount)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		order.OrderNumber,
		order.CustomerID,
		order.CustomerName,
		order.CustomerEmail,
		order.Status,
		order.TotalAmount,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

func (r *orderRepository) Update(ctx context.Context, order *domain.Order) error {
	const query = `
        UPDATE orders SET customer_name=$1, customer_email=$2, status=$3, total_amount=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		order.CustomerName,
		order.CustomerEmail,
		order.Status,
		order.TotalAmount,
		order.ID,
	).Scan(&order.UpdatedAt)
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, rows.Err()
}

func (r *orderRepository) Stats(ctx context.Context, dayStart time.Time) (domain.OrderStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='pending'),
               COUNT(*) FILTER (WHERE status='confirmed'),
               COUNT(*) FILTER (WHERE status='processing'),
               COUNT(*) FILTER (WHERE status='shipped'),
               COUNT(*) FILTER (WHERE status='delivered'),
               COUNT(*) FILTER (WHERE status='cancelled'),
               COUNT(*) FILTER (WHERE status='refunded'),
               COUNT(*) FILTER (WHERE created_at >= $1),
               COALESCE(SUM(total_amount) FILTER (WHERE created_at >= $1 AND status NOT IN ('cancelled','refunded')), 0)::float8
        FROM orders`
	var stats domain.OrderStats
	err := r.pool.QueryRow(ctx, query, dayStart).Scan(
		&stats.TotalOrders,
		&stats.PendingOrders,
		&stats.ConfirmedOrders,
		&stats.ProcessingOrders,
		&stats.ShippedOrders,
		&stats.DeliveredOrders,
		&stats.CancelledOrders,
		&stats.RefundedOrders,
		&stats.TodayOrders,
		&stats.TodayRevenue,
	)
	return stats, err
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.CustomerID,
		&order.CustomerName,
		&order.CustomerEmail,
		&order.Status,
		&order.TotalAmount,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	return order, err
}
