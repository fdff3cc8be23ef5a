package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memWallet guards one wallet and its journal. Lock order across wallets is
// ascending ID; rateMu is always taken before any wallet mutex.
type memWallet struct {
	mu      sync.Mutex
	wallet  Wallet
	entries []Entry
}

type inMemoryStore struct {
	mu      sync.RWMutex
	byOwner map[string]*memWallet
	byID    map[int64]*memWallet
	nextID  int64

	stakesMu sync.RWMutex
	stakes   map[int64][]Position

	rateMu        sync.Mutex
	rate          Rate
	rateSeeded    bool
	issuances     map[string]MintResult
	issuanceCount int64
	totalFiat     decimal.Decimal

	idemMu    sync.Mutex
	transfers map[string]TransferResult

	now func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and development without a database.
func NewInMemory() Store {
	return &inMemoryStore{
		byOwner:   make(map[string]*memWallet),
		byID:      make(map[int64]*memWallet),
		stakes:    make(map[int64][]Position),
		issuances: make(map[string]MintResult),
		transfers: make(map[string]TransferResult),
		rate: Rate{
			PricePerUnit:    decimal.Zero,
			EntryFiatAmount: decimal.Zero,
			TotalIssued:     decimal.Zero,
		},
		totalFiat: decimal.Zero,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *inMemoryStore) lookup(ownerID string) *memWallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byOwner[ownerID]
}

// ensure never touches a wallet mutex while holding s.mu.
func (s *inMemoryStore) ensure(ownerID, displayName string) *memWallet {
	if w := s.lookup(ownerID); w != nil {
		return w
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.byOwner[ownerID]; ok {
		return w
	}
	s.nextID++
	now := s.now()
	w := &memWallet{wallet: Wallet{
		ID:          s.nextID,
		OwnerID:     ownerID,
		DisplayName: displayName,
		Balance:     decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
	s.byOwner[ownerID] = w
	s.byID[w.wallet.ID] = w
	return w
}

func (s *inMemoryStore) snapshotWallets() []*memWallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*memWallet, 0, len(s.byID))
	for _, w := range s.byID {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].wallet.ID < out[j].wallet.ID })
	return out
}

// post applies delta to a locked wallet and journals it.
func (s *inMemoryStore) post(w *memWallet, delta decimal.Decimal, reason string, ref RefType, refID string, at time.Time) {
	w.wallet.Balance = w.wallet.Balance.Add(delta)
	w.wallet.UpdatedAt = at
	w.entries = append(w.entries, Entry{
		ID:        uuid.NewString(),
		WalletID:  w.wallet.ID,
		Delta:     delta,
		Reason:    reason,
		RefType:   ref,
		RefID:     refID,
		CreatedAt: at,
	})
}

func (s *inMemoryStore) EnsureWallet(_ context.Context, ownerID, displayName string) (Wallet, error) {
	w := s.ensure(ownerID, displayName)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.wallet.DisplayName == "" && displayName != "" {
		w.wallet.DisplayName = displayName
		w.wallet.UpdatedAt = s.now()
	}
	return w.wallet, nil
}

func (s *inMemoryStore) WalletByOwner(_ context.Context, ownerID string) (Wallet, error) {
	w := s.lookup(ownerID)
	if w == nil {
		return Wallet{}, ErrNotFound
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wallet, nil
}

func (s *inMemoryStore) Entries(_ context.Context, walletID int64, limit int) ([]Entry, error) {
	s.mu.RLock()
	w, ok := s.byID[walletID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(w.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, w.entries[i])
	}
	return out, nil
}

func (s *inMemoryStore) Transfer(_ context.Context, req TransferRequest) (TransferResult, error) {
	if !ValidAmount(req.Amount) {
		return TransferResult{}, ErrInvalidAmount
	}
	if req.FromOwnerID == req.ToOwnerID {
		return TransferResult{}, ErrSelfTransfer
	}

	key := req.IdempotencyKey
	if key != "" {
		s.idemMu.Lock()
		if res, exists := s.transfers[key]; exists {
			s.idemMu.Unlock()
			return res, ErrDuplicateTransaction
		}
		// reserve the key; an empty result marks an in-flight transfer
		s.transfers[key] = TransferResult{}
		s.idemMu.Unlock()
	}

	res, err := s.transfer(req)

	if key != "" {
		s.idemMu.Lock()
		if err != nil {
			delete(s.transfers, key)
		} else {
			s.transfers[key] = res
		}
		s.idemMu.Unlock()
	}
	return res, err
}

func (s *inMemoryStore) transfer(req TransferRequest) (TransferResult, error) {
	from := s.lookup(req.FromOwnerID)
	if from == nil {
		return TransferResult{}, ErrUnknownWallet
	}

	to := s.lookup(req.ToOwnerID)
	if to == nil {
		// A receiver created now always sorts after the existing sender, so
		// locking sender first keeps the ascending order. Creating it only after
		// the balance check leaves a failed transfer without side effects.
		from.mu.Lock()
		defer from.mu.Unlock()
		if from.wallet.Balance.LessThan(req.Amount) {
			return TransferResult{}, ErrInsufficientFunds
		}
		to = s.ensure(req.ToOwnerID, "")
		to.mu.Lock()
		defer to.mu.Unlock()
		return s.applyTransfer(from, to, req.Amount), nil
	}

	first, second := from, to
	if second.wallet.ID < first.wallet.ID {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if from.wallet.Balance.LessThan(req.Amount) {
		return TransferResult{}, ErrInsufficientFunds
	}
	return s.applyTransfer(from, to, req.Amount), nil
}

func (s *inMemoryStore) applyTransfer(from, to *memWallet, amount decimal.Decimal) TransferResult {
	now := s.now()
	s.post(from, amount.Neg(), TransferOutReason(to.wallet.OwnerID), RefTransferOut, to.wallet.OwnerID, now)
	s.post(to, amount, TransferInReason(from.wallet.OwnerID), RefTransferIn, from.wallet.OwnerID, now)
	return TransferResult{
		TransferID:  uuid.NewString(),
		FromBalance: from.wallet.Balance,
		ToBalance:   to.wallet.Balance,
		CreatedAt:   now,
	}
}

func (s *inMemoryStore) OpenStake(_ context.Context, req StakeRequest) (Position, error) {
	if err := validateStake(req); err != nil {
		return Position{}, err
	}
	w := s.lookup(req.OwnerID)
	if w == nil {
		return Position{}, ErrUnknownWallet
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.wallet.Balance.LessThan(req.Principal) {
		return Position{}, ErrInsufficientFunds
	}

	now := s.now()
	pos := Position{
		ID:                uuid.NewString(),
		OwnerID:           req.OwnerID,
		WalletID:          w.wallet.ID,
		Principal:         req.Principal,
		AnnualRatePercent: req.AnnualRatePercent,
		LockDays:          req.LockDays,
		Status:            StakeActive,
		OpenedAt:          now,
		LastAccrualAt:     now,
		AccruedRewards:    decimal.Zero,
	}
	s.post(w, req.Principal.Neg(), StakeReason(pos.ID), RefStakeOpen, pos.ID, now)

	s.stakesMu.Lock()
	s.stakes[w.wallet.ID] = append(s.stakes[w.wallet.ID], pos)
	s.stakesMu.Unlock()
	return pos, nil
}

func (s *inMemoryStore) Stakes(_ context.Context, ownerID string) ([]Position, error) {
	w := s.lookup(ownerID)
	if w == nil {
		return []Position{}, nil
	}
	s.stakesMu.RLock()
	defer s.stakesMu.RUnlock()
	list := s.stakes[w.wallet.ID]
	out := make([]Position, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (s *inMemoryStore) Mint(_ context.Context, req MintRequest) (MintResult, error) {
	if req.FiatAmount.IsNegative() {
		return MintResult{}, ErrInvalidAmount
	}

	s.rateMu.Lock()
	defer s.rateMu.Unlock()

	if req.PaymentRef != "" {
		if prev, exists := s.issuances[req.PaymentRef]; exists {
			return prev, ErrDuplicateTransaction
		}
	}

	fiat := req.FiatAmount
	if fiat.IsZero() {
		fiat = s.rate.EntryFiatAmount
	}
	price := s.rate.PricePerUnit
	amount := Quote(fiat, price, req.Precision)
	if !amount.IsPositive() {
		return MintResult{Amount: decimal.Zero, Price: price, FiatAmount: fiat}, nil
	}

	w := s.ensure(req.OwnerID, req.DisplayName)
	w.mu.Lock()
	now := s.now()
	if w.wallet.DisplayName == "" && req.DisplayName != "" {
		w.wallet.DisplayName = req.DisplayName
	}
	s.post(w, amount, MintReason(fiat, price), RefMint, req.PaymentRef, now)
	res := MintResult{
		Minted:     true,
		Amount:     amount,
		Price:      price,
		FiatAmount: fiat,
		WalletID:   w.wallet.ID,
		Balance:    w.wallet.Balance,
	}
	w.mu.Unlock()

	s.rate.TotalIssued = s.rate.TotalIssued.Add(amount)
	s.rate.UpdatedAt = now
	s.issuanceCount++
	s.totalFiat = s.totalFiat.Add(fiat)
	if req.PaymentRef != "" {
		s.issuances[req.PaymentRef] = res
	}
	return res, nil
}

func (s *inMemoryStore) Credit(_ context.Context, req CreditRequest) (Wallet, error) {
	if !ValidAmount(req.Amount) {
		return Wallet{}, ErrInvalidAmount
	}

	s.rateMu.Lock()
	defer s.rateMu.Unlock()

	w := s.ensure(req.OwnerID, "")
	w.mu.Lock()
	now := s.now()
	s.post(w, req.Amount, CreditReason(req.Reason), RefAdminCredit, "", now)
	out := w.wallet
	w.mu.Unlock()

	s.rate.TotalIssued = s.rate.TotalIssued.Add(req.Amount)
	s.rate.UpdatedAt = now
	return out, nil
}

func (s *inMemoryStore) Rate(_ context.Context) (Rate, error) {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	return s.rate, nil
}

func (s *inMemoryStore) SeedRate(_ context.Context, price, entryAmount decimal.Decimal) error {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	if s.rateSeeded {
		return nil
	}
	s.rate.PricePerUnit = price
	s.rate.EntryFiatAmount = entryAmount
	s.rate.UpdatedAt = s.now()
	s.rateSeeded = true
	return nil
}

func (s *inMemoryStore) SetPrice(_ context.Context, price decimal.Decimal) (decimal.Decimal, error) {
	if !ValidAmount(price) {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	old := s.rate.PricePerUnit
	s.rate.PricePerUnit = price
	s.rate.UpdatedAt = s.now()
	s.rateSeeded = true
	return old, nil
}

func (s *inMemoryStore) SetEntryAmount(_ context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if !ValidAmount(amount) {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	old := s.rate.EntryFiatAmount
	s.rate.EntryFiatAmount = amount
	s.rate.UpdatedAt = s.now()
	s.rateSeeded = true
	return old, nil
}

func (s *inMemoryStore) Totals(_ context.Context) (Totals, error) {
	s.rateMu.Lock()
	out := Totals{IssuanceCount: s.issuanceCount, TotalFiat: s.totalFiat}
	s.rateMu.Unlock()

	staked := decimal.Zero
	s.stakesMu.RLock()
	for _, list := range s.stakes {
		for _, p := range list {
			if p.Status == StakeActive {
				staked = staked.Add(p.Principal)
			}
		}
	}
	s.stakesMu.RUnlock()
	out.TotalStaked = staked
	return out, nil
}

func (s *inMemoryStore) Reconcile(_ context.Context) ([]Drift, error) {
	var drifts []Drift
	for _, w := range s.snapshotWallets() {
		w.mu.Lock()
		sum := decimal.Zero
		for _, e := range w.entries {
			sum = sum.Add(e.Delta)
		}
		if !sum.Equal(w.wallet.Balance) {
			drifts = append(drifts, Drift{
				WalletID:   w.wallet.ID,
				OwnerID:    w.wallet.OwnerID,
				Balance:    w.wallet.Balance,
				JournalSum: sum,
			})
		}
		w.mu.Unlock()
	}
	return drifts, nil
}

func validateStake(req StakeRequest) error {
	if !ValidAmount(req.Principal) || !ValidAmount(req.AnnualRatePercent) || req.LockDays <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// TransferOutReason and its siblings produce the journal reason strings.
func TransferOutReason(toOwner string) string { return "transfer to user " + toOwner }

func TransferInReason(fromOwner string) string { return "transfer from user " + fromOwner }

func StakeReason(positionID string) string { return "stake position " + positionID }

func MintReason(fiat, price decimal.Decimal) string {
	return fmt.Sprintf("mint %s fiat at %s per unit", fiat.String(), price.String())
}

func CreditReason(reason string) string {
	if reason == "" {
		return "admin credit"
	}
	return "admin credit: " + reason
}
