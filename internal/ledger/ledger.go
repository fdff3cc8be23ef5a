package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount rejects non-positive or malformed quantities before any lock is taken.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds occurs when the source wallet lacks available balance
	// to cover a requested debit. It is only ever raised under the wallet lock.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnknownWallet indicates the referenced owner has no wallet where
	// auto-creation does not apply (transfer sender, stake owner).
	ErrUnknownWallet = errors.New("unknown wallet")

	// ErrNotFound is returned by read paths when no record exists.
	ErrNotFound = errors.New("not found")

	// ErrSelfTransfer rejects transfers whose sender and receiver are the same owner.
	ErrSelfTransfer = errors.New("cannot transfer to same wallet")

	// ErrDuplicateTransaction indicates the provided idempotency key or payment
	// reference already committed and therefore the operation was not repeated.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrStoreUnavailable wraps retryable persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RefType tags the cause of a ledger entry.
type RefType string

const (
	RefMint        RefType = "mint"
	RefTransferIn  RefType = "transfer-in"
	RefTransferOut RefType = "transfer-out"
	RefStakeOpen   RefType = "stake-open"
	RefStakeClose  RefType = "stake-close"
	RefAdminCredit RefType = "admin-credit"
)

// StakeStatus is the lifecycle state of a stake position.
type StakeStatus string

const (
	StakeActive StakeStatus = "active"
	// StakeClosed has no producing transition yet.
	StakeClosed StakeStatus = "closed"
)

// MaxScale is the number of fractional digits the store persists (NUMERIC(36,18)).
const MaxScale = 18

// Wallet is the materialized balance of a single member.
type Wallet struct {
	ID          int64
	OwnerID     string
	DisplayName string
	Balance     decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Entry is one immutable journal record of a balance change and its cause.
type Entry struct {
	ID        string
	WalletID  int64
	Delta     decimal.Decimal
	Reason    string
	RefType   RefType
	RefID     string
	CreatedAt time.Time
}

// Position is a time-boxed lock of principal.
type Position struct {
	ID                string
	OwnerID           string
	WalletID          int64
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	LockDays          int
	Status            StakeStatus
	OpenedAt          time.Time
	LastAccrualAt     time.Time
	ClosedAt          *time.Time
	AccruedRewards    decimal.Decimal
}

// Rate is the process-wide issuance configuration.
type Rate struct {
	PricePerUnit    decimal.Decimal
	EntryFiatAmount decimal.Decimal
	TotalIssued     decimal.Decimal
	UpdatedAt       time.Time
}

// TransferRequest moves Amount from one owner to another.
type TransferRequest struct {
	FromOwnerID    string
	ToOwnerID      string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// TransferResult captures the outcome of a committed transfer.
type TransferResult struct {
	TransferID  string
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
	CreatedAt   time.Time
}

// StakeRequest locks Principal out of the owner's wallet.
type StakeRequest struct {
	OwnerID           string
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	LockDays          int
}

// MintRequest issues units against a fiat amount at the live price. A zero
// FiatAmount means the configured entry amount. Precision is the number of
// fractional digits of the minted amount; zero mints whole units.
type MintRequest struct {
	OwnerID     string
	DisplayName string
	FiatAmount  decimal.Decimal
	PaymentRef  string
	Precision   int32
}

// MintResult reports what a mint did. Minted is false for the silent no-op
// cases (price or computed amount not positive).
type MintResult struct {
	Minted     bool
	Amount     decimal.Decimal
	Price      decimal.Decimal
	FiatAmount decimal.Decimal
	WalletID   int64
	Balance    decimal.Decimal
}

// CreditRequest is an administrative grant of a fixed amount.
type CreditRequest struct {
	OwnerID string
	Amount  decimal.Decimal
	Reason  string
}

// Totals aggregates store-wide figures for reporting.
type Totals struct {
	IssuanceCount int64
	TotalFiat     decimal.Decimal
	TotalStaked   decimal.Decimal
}

// Drift is a wallet whose balance disagrees with its journal.
type Drift struct {
	WalletID   int64
	OwnerID    string
	Balance    decimal.Decimal
	JournalSum decimal.Decimal
}

// Store defines the contract implemented by ledger backends (Postgres, in-memory).
// Every mutating method is one atomic unit: the balance change and its journal
// entries commit together or not at all.
type Store interface {
	EnsureWallet(ctx context.Context, ownerID, displayName string) (Wallet, error)
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)
	Entries(ctx context.Context, walletID int64, limit int) ([]Entry, error)

	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)

	OpenStake(ctx context.Context, req StakeRequest) (Position, error)
	Stakes(ctx context.Context, ownerID string) ([]Position, error)

	Mint(ctx context.Context, req MintRequest) (MintResult, error)
	Credit(ctx context.Context, req CreditRequest) (Wallet, error)
	Rate(ctx context.Context) (Rate, error)
	// SeedRate installs the initial price and entry amount unless a rate already exists.
	SeedRate(ctx context.Context, price, entryAmount decimal.Decimal) error
	SetPrice(ctx context.Context, price decimal.Decimal) (decimal.Decimal, error)
	SetEntryAmount(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)

	Totals(ctx context.Context) (Totals, error)
	Reconcile(ctx context.Context) ([]Drift, error)
}
