package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgNumericOutOfRange    = "22003"
)

// PostgresStore persists wallets, journal entries and stake positions in PostgreSQL.
// Each mutating method runs in one transaction and locks wallet rows in
// ascending id order.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store implementation.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const walletColumns = `id, owner_id, COALESCE(display_name, ''), balance, created_at, updated_at`

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.ID, &w.OwnerID, &w.DisplayName, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// classify maps driver failures onto the store's error vocabulary.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrDuplicateTransaction)
		case pgNumericOutOfRange:
			return fmt.Errorf("%s: %w: %v", op, ErrInvalidAmount, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PostgresStore) begin(ctx context.Context, op string) (pgx.Tx, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return tx, nil
}

func (s *PostgresStore) EnsureWallet(ctx context.Context, ownerID, displayName string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `
        INSERT INTO wallets (owner_id, display_name)
        VALUES ($1, NULLIF($2, ''))
        ON CONFLICT (owner_id) DO UPDATE
            SET display_name = COALESCE(wallets.display_name, EXCLUDED.display_name),
                updated_at = CASE WHEN wallets.display_name IS NULL AND EXCLUDED.display_name IS NOT NULL
                                  THEN now() ELSE wallets.updated_at END
        RETURNING `+walletColumns, ownerID, displayName)
	w, err := scanWallet(row)
	if err != nil {
		return Wallet{}, classify("EnsureWallet", err)
	}
	return w, nil
}

func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	w, err := scanWallet(s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, classify("WalletByOwner", err)
	}
	return w, nil
}

func (s *PostgresStore) Entries(ctx context.Context, walletID int64, limit int) ([]Entry, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, walletID).Scan(&exists); err != nil {
		return nil, classify("Entries", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	query := `SELECT id, wallet_id, delta, reason, ref_type, COALESCE(ref_id, ''), created_at
        FROM ledger_entries WHERE wallet_id = $1 ORDER BY created_at DESC, seq DESC`
	args := []any{walletID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("Entries", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var id uuid.UUID
		var ref string
		if err := rows.Scan(&id, &e.WalletID, &e.Delta, &e.Reason, &ref, &e.RefID, &e.CreatedAt); err != nil {
			return nil, classify("Entries: scan", err)
		}
		e.ID = id.String()
		e.RefType = RefType(ref)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("Entries: rows", err)
	}
	return entries, nil
}

func (s *PostgresStore) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if !ValidAmount(req.Amount) {
		return TransferResult{}, ErrInvalidAmount
	}
	if req.FromOwnerID == req.ToOwnerID {
		return TransferResult{}, ErrSelfTransfer
	}

	tx, err := s.begin(ctx, "Transfer")
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if req.IdempotencyKey != "" {
		prev, found, err := existingTransfer(ctx, tx, req.IdempotencyKey)
		if err != nil {
			return TransferResult{}, classify("Transfer", err)
		}
		if found {
			return prev, ErrDuplicateTransaction
		}
	}

	fromID, err := walletIDForOwner(ctx, tx, req.FromOwnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, ErrUnknownWallet
		}
		return TransferResult{}, classify("Transfer", err)
	}
	toID, err := ensureWalletID(ctx, tx, req.ToOwnerID)
	if err != nil {
		return TransferResult{}, classify("Transfer", err)
	}

	locked, err := lockWalletsInOrder(ctx, tx, fromID, toID)
	if err != nil {
		return TransferResult{}, classify("Transfer", err)
	}
	from, to := locked[fromID], locked[toID]
	if from.Balance.LessThan(req.Amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	fromBal, err := postEntry(ctx, tx, fromID, req.Amount.Neg(), TransferOutReason(to.OwnerID), RefTransferOut, to.OwnerID, now)
	if err != nil {
		return TransferResult{}, classify("Transfer", err)
	}
	toBal, err := postEntry(ctx, tx, toID, req.Amount, TransferInReason(from.OwnerID), RefTransferIn, from.OwnerID, now)
	if err != nil {
		return TransferResult{}, classify("Transfer", err)
	}

	res := TransferResult{
		TransferID:  uuid.NewString(),
		FromBalance: fromBal,
		ToBalance:   toBal,
		CreatedAt:   now,
	}
	if _, err := tx.Exec(ctx, `INSERT INTO transfers
        (id, idempotency_key, from_wallet_id, to_wallet_id, amount, from_balance, to_balance, created_at)
        VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)`,
		res.TransferID, req.IdempotencyKey, fromID, toID, req.Amount, fromBal, toBal, now); err != nil {
		return TransferResult{}, classify("Transfer", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, classify("Transfer: commit", err)
	}
	return res, nil
}

func (s *PostgresStore) OpenStake(ctx context.Context, req StakeRequest) (Position, error) {
	if err := validateStake(req); err != nil {
		return Position{}, err
	}

	tx, err := s.begin(ctx, "OpenStake")
	if err != nil {
		return Position{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 FOR UPDATE`, req.OwnerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Position{}, ErrUnknownWallet
		}
		return Position{}, classify("OpenStake", err)
	}
	if w.Balance.LessThan(req.Principal) {
		return Position{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	pos := Position{
		ID:                uuid.NewString(),
		OwnerID:           req.OwnerID,
		WalletID:          w.ID,
		Principal:         req.Principal,
		AnnualRatePercent: req.AnnualRatePercent,
		LockDays:          req.LockDays,
		Status:            StakeActive,
		OpenedAt:          now,
		LastAccrualAt:     now,
		AccruedRewards:    decimal.Zero,
	}
	if _, err := tx.Exec(ctx, `INSERT INTO stake_positions
        (id, owner_id, wallet_id, principal, annual_rate_percent, lock_days, status, opened_at, last_accrual_at, accrued_rewards)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, 0)`,
		pos.ID, pos.OwnerID, pos.WalletID, pos.Principal, pos.AnnualRatePercent, pos.LockDays, string(pos.Status), now); err != nil {
		return Position{}, classify("OpenStake", err)
	}
	if _, err := postEntry(ctx, tx, w.ID, req.Principal.Neg(), StakeReason(pos.ID), RefStakeOpen, pos.ID, now); err != nil {
		return Position{}, classify("OpenStake", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Position{}, classify("OpenStake: commit", err)
	}
	return pos, nil
}

func (s *PostgresStore) Stakes(ctx context.Context, ownerID string) ([]Position, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, owner_id, wallet_id, principal, annual_rate_percent, lock_days, status,
               opened_at, last_accrual_at, closed_at, accrued_rewards
        FROM stake_positions WHERE owner_id = $1
        ORDER BY opened_at DESC, seq DESC`, ownerID)
	if err != nil {
		return nil, classify("Stakes", err)
	}
	defer rows.Close()

	positions := make([]Position, 0)
	for rows.Next() {
		var p Position
		var id uuid.UUID
		var status string
		if err := rows.Scan(&id, &p.OwnerID, &p.WalletID, &p.Principal, &p.AnnualRatePercent, &p.LockDays,
			&status, &p.OpenedAt, &p.LastAccrualAt, &p.ClosedAt, &p.AccruedRewards); err != nil {
			return nil, classify("Stakes: scan", err)
		}
		p.ID = id.String()
		p.Status = StakeStatus(status)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("Stakes: rows", err)
	}
	return positions, nil
}

func (s *PostgresStore) Mint(ctx context.Context, req MintRequest) (MintResult, error) {
	if req.FiatAmount.IsNegative() {
		return MintResult{}, ErrInvalidAmount
	}

	tx, err := s.begin(ctx, "Mint")
	if err != nil {
		return MintResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rate, err := lockRate(ctx, tx)
	if err != nil {
		return MintResult{}, classify("Mint", err)
	}

	if req.PaymentRef != "" {
		var prev MintResult
		err := tx.QueryRow(ctx, `SELECT i.amount, i.price_per_unit, i.fiat_amount, i.wallet_id, w.balance
            FROM issuances i JOIN wallets w ON w.id = i.wallet_id
            WHERE i.payment_ref = $1`, req.PaymentRef).
			Scan(&prev.Amount, &prev.Price, &prev.FiatAmount, &prev.WalletID, &prev.Balance)
		if err == nil {
			prev.Minted = true
			return prev, ErrDuplicateTransaction
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return MintResult{}, classify("Mint", err)
		}
	}

	fiat := req.FiatAmount
	if fiat.IsZero() {
		fiat = rate.EntryFiatAmount
	}
	price := rate.PricePerUnit
	amount := Quote(fiat, price, req.Precision)
	if !amount.IsPositive() {
		return MintResult{Amount: decimal.Zero, Price: price, FiatAmount: fiat}, nil
	}

	walletID, err := ensureWalletID(ctx, tx, req.OwnerID)
	if err != nil {
		return MintResult{}, classify("Mint", err)
	}
	if req.DisplayName != "" {
		if _, err := tx.Exec(ctx, `UPDATE wallets SET display_name = $2 WHERE id = $1 AND display_name IS NULL`,
			walletID, req.DisplayName); err != nil {
			return MintResult{}, classify("Mint", err)
		}
	}
	if _, err := lockWalletsInOrder(ctx, tx, walletID); err != nil {
		return MintResult{}, classify("Mint", err)
	}

	now := time.Now().UTC()
	balance, err := postEntry(ctx, tx, walletID, amount, MintReason(fiat, price), RefMint, req.PaymentRef, now)
	if err != nil {
		return MintResult{}, classify("Mint", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO issuances (id, payment_ref, wallet_id, fiat_amount, price_per_unit, amount, created_at)
        VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)`,
		uuid.New(), req.PaymentRef, walletID, fiat, price, amount, now); err != nil {
		return MintResult{}, classify("Mint", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE issuance_rate SET total_issued = total_issued + $1, updated_at = $2 WHERE id = 1`,
		amount, now); err != nil {
		return MintResult{}, classify("Mint", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return MintResult{}, classify("Mint: commit", err)
	}
	return MintResult{
		Minted:     true,
		Amount:     amount,
		Price:      price,
		FiatAmount: fiat,
		WalletID:   walletID,
		Balance:    balance,
	}, nil
}

func (s *PostgresStore) Credit(ctx context.Context, req CreditRequest) (Wallet, error) {
	if !ValidAmount(req.Amount) {
		return Wallet{}, ErrInvalidAmount
	}

	tx, err := s.begin(ctx, "Credit")
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := lockRate(ctx, tx); err != nil {
		return Wallet{}, classify("Credit", err)
	}
	walletID, err := ensureWalletID(ctx, tx, req.OwnerID)
	if err != nil {
		return Wallet{}, classify("Credit", err)
	}
	if _, err := lockWalletsInOrder(ctx, tx, walletID); err != nil {
		return Wallet{}, classify("Credit", err)
	}

	now := time.Now().UTC()
	if _, err := postEntry(ctx, tx, walletID, req.Amount, CreditReason(req.Reason), RefAdminCredit, "", now); err != nil {
		return Wallet{}, classify("Credit", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE issuance_rate SET total_issued = total_issued + $1, updated_at = $2 WHERE id = 1`,
		req.Amount, now); err != nil {
		return Wallet{}, classify("Credit", err)
	}
	w, err := scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID))
	if err != nil {
		return Wallet{}, classify("Credit", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, classify("Credit: commit", err)
	}
	return w, nil
}

func (s *PostgresStore) Rate(ctx context.Context) (Rate, error) {
	var r Rate
	err := s.db.QueryRow(ctx, `SELECT price_per_unit, entry_fiat_amount, total_issued, updated_at FROM issuance_rate WHERE id = 1`).
		Scan(&r.PricePerUnit, &r.EntryFiatAmount, &r.TotalIssued, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rate{PricePerUnit: decimal.Zero, EntryFiatAmount: decimal.Zero, TotalIssued: decimal.Zero}, nil
		}
		return Rate{}, classify("Rate", err)
	}
	return r, nil
}

func (s *PostgresStore) SeedRate(ctx context.Context, price, entryAmount decimal.Decimal) error {
	_, err := s.db.Exec(ctx, `INSERT INTO issuance_rate (id, price_per_unit, entry_fiat_amount, total_issued, updated_at)
        VALUES (1, $1, $2, 0, now()) ON CONFLICT (id) DO NOTHING`, price, entryAmount)
	return classify("SeedRate", err)
}

func (s *PostgresStore) SetPrice(ctx context.Context, price decimal.Decimal) (decimal.Decimal, error) {
	return s.updateRate(ctx, "SetPrice", "price_per_unit", price)
}

func (s *PostgresStore) SetEntryAmount(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.updateRate(ctx, "SetEntryAmount", "entry_fiat_amount", amount)
}

// updateRate swaps one rate column and returns its previous value. column is
// always a package constant.
func (s *PostgresStore) updateRate(ctx context.Context, op, column string, value decimal.Decimal) (decimal.Decimal, error) {
	if !ValidAmount(value) {
		return decimal.Decimal{}, ErrInvalidAmount
	}

	tx, err := s.begin(ctx, op)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rate, err := lockRate(ctx, tx)
	if err != nil {
		return decimal.Decimal{}, classify(op, err)
	}
	old := rate.PricePerUnit
	if column == "entry_fiat_amount" {
		old = rate.EntryFiatAmount
	}
	if _, err := tx.Exec(ctx, `UPDATE issuance_rate SET `+column+` = $1, updated_at = now() WHERE id = 1`, value); err != nil {
		return decimal.Decimal{}, classify(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return decimal.Decimal{}, classify(op+": commit", err)
	}
	return old, nil
}

func (s *PostgresStore) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM issuances),
            (SELECT COALESCE(SUM(fiat_amount), 0) FROM issuances),
            (SELECT COALESCE(SUM(principal), 0) FROM stake_positions WHERE status = 'active')`).
		Scan(&t.IssuanceCount, &t.TotalFiat, &t.TotalStaked)
	if err != nil {
		return Totals{}, classify("Totals", err)
	}
	return t, nil
}

func (s *PostgresStore) Reconcile(ctx context.Context) ([]Drift, error) {
	rows, err := s.db.Query(ctx, `
        SELECT w.id, w.owner_id, w.balance, COALESCE(SUM(e.delta), 0) AS journal
        FROM wallets w
        LEFT JOIN ledger_entries e ON e.wallet_id = w.id
        GROUP BY w.id
        HAVING w.balance <> COALESCE(SUM(e.delta), 0)
        ORDER BY w.id`)
	if err != nil {
		return nil, classify("Reconcile", err)
	}
	defer rows.Close()

	var drifts []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.WalletID, &d.OwnerID, &d.Balance, &d.JournalSum); err != nil {
			return nil, classify("Reconcile: scan", err)
		}
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("Reconcile: rows", err)
	}
	return drifts, nil
}

func existingTransfer(ctx context.Context, tx pgx.Tx, key string) (TransferResult, bool, error) {
	var res TransferResult
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id, from_balance, to_balance, created_at FROM transfers WHERE idempotency_key = $1`, key).
		Scan(&id, &res.FromBalance, &res.ToBalance, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, false, nil
		}
		return TransferResult{}, false, err
	}
	res.TransferID = id.String()
	return res, true, nil
}

func walletIDForOwner(ctx context.Context, tx pgx.Tx, ownerID string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM wallets WHERE owner_id = $1`, ownerID).Scan(&id)
	return id, err
}

func ensureWalletID(ctx context.Context, tx pgx.Tx, ownerID string) (int64, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO wallets (owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING`, ownerID); err != nil {
		return 0, err
	}
	return walletIDForOwner(ctx, tx, ownerID)
}

// lockWalletsInOrder takes row locks in ascending id order so concurrent
// multi-wallet transactions cannot deadlock.
func lockWalletsInOrder(ctx context.Context, tx pgx.Tx, ids ...int64) (map[int64]Wallet, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	locked := make(map[int64]Wallet, len(sorted))
	for _, id := range sorted {
		if _, seen := locked[id]; seen {
			continue
		}
		w, err := scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return nil, fmt.Errorf("lock wallet %d: %w", id, err)
		}
		locked[id] = w
	}
	return locked, nil
}

func lockRate(ctx context.Context, tx pgx.Tx) (Rate, error) {
	var r Rate
	err := tx.QueryRow(ctx, `SELECT price_per_unit, entry_fiat_amount, total_issued, updated_at
        FROM issuance_rate WHERE id = 1 FOR UPDATE`).
		Scan(&r.PricePerUnit, &r.EntryFiatAmount, &r.TotalIssued, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// unseeded: behave as a zero price
		return Rate{PricePerUnit: decimal.Zero, EntryFiatAmount: decimal.Zero, TotalIssued: decimal.Zero}, nil
	}
	return r, err
}

// postEntry applies delta to a wallet already locked by tx, journals it, and
// returns the new balance.
func postEntry(ctx context.Context, tx pgx.Tx, walletID int64, delta decimal.Decimal, reason string, ref RefType, refID string, at time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = $3 WHERE id = $1 RETURNING balance`,
		walletID, delta, at).Scan(&balance); err != nil {
		return decimal.Decimal{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO ledger_entries (id, wallet_id, delta, reason, ref_type, ref_id, created_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		uuid.New(), walletID, delta, reason, string(ref), refID, at); err != nil {
		return decimal.Decimal{}, err
	}
	return balance, nil
}
