package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const uniqueViolation = "23505"

const subscriptionColumns = `id, user_id, plan, status, external_intent_id, external_payment_id,
       started_at, expires_at, created_at, updated_at`

// postgresSubscriptionRepo реализует SubscriptionRepository для PostgreSQL.
type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{
		db:  db,
		log: log,
	}
}

// Insert сохраняет новую подписку в базе данных.
func (r *postgresSubscriptionRepo) Insert(ctx context.Context, sub *domain.Subscription) error {
	if err := r.insert(ctx, r.db, sub); err != nil {
		r.log.Errorw("Failed to insert subscription", "error", err, "subscriptionID", sub.ID, "userID", sub.UserID)
		return err
	}

	r.log.Debugw("Subscription inserted", "subscriptionID", sub.ID, "userID", sub.UserID, "status", sub.Status)
	return nil
}

func (r *postgresSubscriptionRepo) insert(ctx context.Context, ext sqlx.ExtContext, sub *domain.Subscription) error {
	query := `
        INSERT INTO subscriptions (
            id, user_id, plan, status, external_intent_id, external_payment_id,
            started_at, expires_at, created_at, updated_at
        ) VALUES (
            :id, :user_id, :plan, :status, :external_intent_id, :external_payment_id,
            :started_at, :expires_at, :created_at, :updated_at
        )`

	if _, err := sqlx.NamedExecContext(ctx, ext, query, sub); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("repository: insert subscription %s: %w", sub.ID, ErrDuplicate)
		}
		return fmt.Errorf("repository: failed to insert subscription: %w", err)
	}
	return nil
}

// FindLatestByUser возвращает самую свежую запись пользователя.
func (r *postgresSubscriptionRepo) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT 1`
	return r.getOne(ctx, "latest by user", query, userID)
}

// FindByIntentID возвращает запись по ID намерения провайдера.
func (r *postgresSubscriptionRepo) FindByIntentID(ctx context.Context, intentID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE external_intent_id = $1
        ORDER BY created_at DESC
        LIMIT 1`
	return r.getOne(ctx, "by intent", query, intentID)
}

// FindByPaymentID возвращает запись, уже активированную этим платежом.
func (r *postgresSubscriptionRepo) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE external_payment_id = $1`
	return r.getOne(ctx, "by payment", query, paymentID)
}

// FindLatestPending возвращает последнюю ожидающую запись пользователя по плану.
func (r *postgresSubscriptionRepo) FindLatestPending(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1 AND plan = $2 AND status = 'pending'
        ORDER BY created_at DESC, id DESC
        LIMIT 1`
	return r.getOne(ctx, "latest pending", query, userID, plan)
}

func (r *postgresSubscriptionRepo) getOne(ctx context.Context, lookup, query string, args ...interface{}) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := r.db.GetContext(ctx, &sub, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugw("Subscription not found", "lookup", lookup, "args", args)
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get subscription", "lookup", lookup, "error", err)
		return nil, fmt.Errorf("repository: failed to get subscription %s: %w", lookup, err)
	}
	return &sub, nil
}

// Activate переводит ожидающую запись в active в одной транзакции с
// вытеснением прочих активных записей пользователя.
func (r *postgresSubscriptionRepo) Activate(ctx context.Context, a domain.Activation) (bool, error) {
	changed := false
	err := r.inUserTx(ctx, a.UserID, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE subscriptions SET
                status = 'active',
                external_payment_id = $2,
                started_at = $3,
                expires_at = $4,
                updated_at = $3
            WHERE id = $1 AND status = 'pending'`,
			a.SubscriptionID, a.PaymentID, a.StartedAt, a.ExpiresAt)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		changed = true
		return supersede(ctx, tx, a.UserID, a.SubscriptionID, a.StartedAt)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("repository: payment %s already bound: %w", a.PaymentID, ErrDuplicate)
		}
		r.log.Errorw("Failed to activate subscription", "error", err, "subscriptionID", a.SubscriptionID)
		return false, fmt.Errorf("repository: failed to activate subscription: %w", err)
	}

	r.log.Debugw("Activation applied", "subscriptionID", a.SubscriptionID, "paymentID", a.PaymentID, "changed", changed)
	return changed, nil
}

// InsertActivated сохраняет сразу активную запись.
func (r *postgresSubscriptionRepo) InsertActivated(ctx context.Context, sub *domain.Subscription) error {
	err := r.inUserTx(ctx, sub.UserID, func(tx *sqlx.Tx) error {
		if err := supersede(ctx, tx, sub.UserID, sub.ID, sub.UpdatedAt); err != nil {
			return err
		}
		return r.insert(ctx, tx, sub)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) || isUniqueViolation(err) {
			return fmt.Errorf("repository: insert activated subscription: %w", ErrDuplicate)
		}
		r.log.Errorw("Failed to insert activated subscription", "error", err, "userID", sub.UserID)
		return fmt.Errorf("repository: failed to insert activated subscription: %w", err)
	}
	return nil
}

// UpdateStatus обновляет статус существующей записи.
func (r *postgresSubscriptionRepo) UpdateStatus(ctx context.Context, sub *domain.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()

	query := `
        UPDATE subscriptions SET
            status = :status,
            updated_at = :updated_at
        WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		r.log.Errorw("Failed to update subscription status", "error", err, "subscriptionID", sub.ID)
		return fmt.Errorf("repository: failed to update subscription: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		r.log.Warnw("Subscription update affected 0 rows", "subscriptionID", sub.ID)
		return ErrNotFound
	}

	r.log.Debugw("Subscription status updated", "subscriptionID", sub.ID, "status", sub.Status)
	return nil
}

// inUserTx runs fn in a transaction holding a per-user advisory lock, so two
// activations for the same user cannot both leave an active record behind.
func (r *postgresSubscriptionRepo) inUserTx(ctx context.Context, userID uuid.UUID, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Errorw("Failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID.String()); err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func supersede(ctx context.Context, tx *sqlx.Tx, userID, keepID uuid.UUID, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
        UPDATE subscriptions SET status = 'inactive', updated_at = $3
        WHERE user_id = $1 AND id <> $2 AND status = 'active'`,
		userID, keepID, at)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
