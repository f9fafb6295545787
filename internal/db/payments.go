package db

import (
	"context"
	"errors"

	"github.com/research-platform/imagedesc-core/internal/identity"
)

// ErrAlreadyConfirmed is returned by ConfirmPayment when the order is not in
// status 'created' (a second confirmation attempt on an already-settled or
// already-failed order).
var ErrAlreadyConfirmed = errors.New("payment already confirmed")

// CreatePaymentOrder inserts a payment row in status 'created' and returns
// its order id. The payment gateway itself is simulated: confirmation is a
// direct call, not a webhook callback, per spec.md §1.
func (d *Database) CreatePaymentOrder(ctx context.Context, participantFK int64, amount int64, currency string) (string, error) {
	orderID := identity.NewID()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO payments (participant_fk, order_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, 'created')`,
		participantFK, orderID, amount, currency,
	)
	if err != nil {
		return "", err
	}
	return orderID, nil
}

// ConfirmPayment transitions a payment order from 'created' to 'paid'.
func (d *Database) ConfirmPayment(ctx context.Context, orderID, paymentID, signature string) error {
	result, err := d.db.ExecContext(ctx, `
		UPDATE payments SET payment_id = $1, signature = $2, status = 'paid', confirmed_at = CURRENT_TIMESTAMP
		WHERE order_id = $3 AND status = 'created'`,
		paymentID, signature, orderID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := d.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM payments WHERE order_id = $1)`, orderID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyConfirmed
	}

	var participantFK int64
	if err := d.db.QueryRowContext(ctx, `SELECT participant_fk FROM payments WHERE order_id = $1`, orderID).Scan(&participantFK); err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `UPDATE participants SET payment_status = 'paid' WHERE id = $1`, participantFK)
	return err
}
