package repositories

import (
	"context"

	"github.com/escrow-storefront/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const transactionColumns = `id, store_id, product_id, seller_id, buyer_id, buyer_email, buyer_name, buyer_phone,
	item_name, item_price, item_currency, item_images, quantity, amount, currency, status,
	payment_reference, fee_percent, platform_fee, seller_payout, paid_amount, payment_channel,
	paid_at, delivered_at, completed_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.StoreID, &t.ProductID, &t.SellerID, &t.BuyerID, &t.BuyerEmail, &t.BuyerName, &t.BuyerPhone,
		&t.Item.Name, &t.Item.Price, &t.Item.Currency, &t.Item.Images, &t.Quantity, &t.Amount, &t.Currency, &t.Status,
		&t.PaymentReference, &t.FeePercent, &t.PlatformFee, &t.SellerPayout, &t.PaidAmount, &t.PaymentChannel,
		&t.PaidAt, &t.DeliveredAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

const escrowDepositColumns = `id, transaction_id, seller_id, amount, paid_amount, platform_fee, seller_payout,
	currency, payment_method, reference, payer_email, payer_name, status, released_at, refunded_at, created_at`

func scanEscrowDeposit(row pgx.Row) (*models.EscrowDeposit, error) {
	var d models.EscrowDeposit
	err := row.Scan(&d.ID, &d.TransactionID, &d.SellerID, &d.Amount, &d.PaidAmount, &d.PlatformFee, &d.SellerPayout,
		&d.Currency, &d.PaymentMethod, &d.Reference, &d.PayerEmail, &d.PayerName, &d.Status, &d.ReleasedAt, &d.RefundedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const walletColumns = `user_id, available_balance, pending_balance, total_earned, total_spent, currency, updated_at`

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	if err := row.Scan(&w.UserID, &w.AvailableBalance, &w.PendingBalance, &w.TotalEarned, &w.TotalSpent, &w.Currency, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

const walletTxColumns = `id, user_id, type, bucket, amount, currency, status, reference,
	transaction_id, payment_method_id, meta, created_at, updated_at`

func scanWalletTransaction(row pgx.Row) (*models.WalletTransaction, error) {
	var wt models.WalletTransaction
	err := row.Scan(&wt.ID, &wt.UserID, &wt.Type, &wt.Bucket, &wt.Amount, &wt.Currency, &wt.Status, &wt.Reference,
		&wt.TransactionID, &wt.PaymentMethodID, &wt.Meta, &wt.CreatedAt, &wt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &wt, nil
}

const disputeColumns = `id, transaction_id, opened_by, reason, status, resolution, outcome, resolved_by, resolved_at, created_at`

func scanDispute(row pgx.Row) (*models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(&d.ID, &d.TransactionID, &d.OpenedBy, &d.Reason, &d.Status, &d.Resolution, &d.Outcome,
		&d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const paymentMethodColumns = `id, user_id, country, kind, label, provider, account_name, account_number,
	bank_code, phone_number, paybill_number, till_number, is_default, created_at`

func scanPaymentMethod(row pgx.Row) (*models.PaymentMethod, error) {
	var p models.PaymentMethod
	err := row.Scan(&p.ID, &p.UserID, &p.Country, &p.Kind, &p.Label, &p.Provider, &p.AccountName, &p.AccountNumber,
		&p.BankCode, &p.PhoneNumber, &p.PaybillNumber, &p.TillNumber, &p.IsDefault, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
