package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient is a scripted ledger session. Submit verdicts and trust line
// listings are consumed per call; the last entry repeats.
type fakeClient struct {
	accounts   map[string]ledger.AccountInfo
	accountErr error

	server    ledger.ServerInfo
	serverErr error

	// index feeds Autofill; queryIndex feeds LedgerIndex (zero falls back
	// to index). Separating the two lets tests advance the ledger between
	// stamping and the expiry check.
	index      uint32
	queryIndex uint32

	lineSets  [][]ledger.TrustLine
	lineErr   error
	lineCalls int

	offers []domain.Offer

	results     []ledger.SubmitResult
	submitErrs  []error
	submitCalls int

	lastWindow uint32
	lastBlob   string
	closed     bool
}

func (f *fakeClient) ServerInfo(ctx context.Context) (ledger.ServerInfo, error) {
	if f.serverErr != nil {
		return ledger.ServerInfo{}, f.serverErr
	}
	return f.server, nil
}

func (f *fakeClient) AccountInfo(ctx context.Context, address string) (ledger.AccountInfo, error) {
	if f.accountErr != nil {
		return ledger.AccountInfo{}, f.accountErr
	}
	info, ok := f.accounts[address]
	if !ok {
		return ledger.AccountInfo{}, fmt.Errorf("fake: account %s: %w", address, domain.ErrNotFound)
	}
	return info, nil
}

func (f *fakeClient) AccountLines(ctx context.Context, address string) ([]ledger.TrustLine, error) {
	if f.lineErr != nil {
		return nil, f.lineErr
	}
	if len(f.lineSets) == 0 {
		return nil, nil
	}
	i := f.lineCalls
	if i >= len(f.lineSets) {
		i = len(f.lineSets) - 1
	}
	f.lineCalls++
	return f.lineSets[i], nil
}

func (f *fakeClient) LedgerIndex(ctx context.Context) (uint32, error) {
	if f.queryIndex != 0 {
		return f.queryIndex, nil
	}
	return f.index, nil
}

func (f *fakeClient) BookOffers(ctx context.Context, takerGets, takerPays domain.AssetAmount, limit int) ([]domain.Offer, error) {
	return f.offers, nil
}

func (f *fakeClient) Autofill(ctx context.Context, intent domain.TransactionIntent, expiryWindow uint32) (ledger.PreparedTx, error) {
	f.lastWindow = expiryWindow
	var seq uint32 = 1
	if info, ok := f.accounts[intent.Account]; ok {
		seq = info.Sequence
	}
	tx := ledger.PreparedTx{
		TransactionType:    string(intent.Type),
		Account:            intent.Account,
		Fee:                "10",
		Sequence:           seq,
		LastLedgerSequence: f.index + expiryWindow,
	}
	switch intent.Type {
	case domain.TxPayment:
		tx.Destination = intent.Destination
		tx.Amount = fakeAmount(intent.Amount)
	case domain.TxTrustSet:
		tx.LimitAmount = fakeAmount(intent.LimitAmount)
	case domain.TxOfferCreate:
		tx.TakerGets = fakeAmount(intent.TakerGets)
		tx.TakerPays = fakeAmount(intent.TakerPays)
	}
	return tx, nil
}

func fakeAmount(a domain.AssetAmount) any {
	if a.IsNative() {
		return a.Drops()
	}
	return map[string]string{"currency": a.Currency, "issuer": a.Issuer, "value": a.Value.String()}
}

func (f *fakeClient) Submit(ctx context.Context, txBlob string) (ledger.SubmitResult, error) {
	f.lastBlob = txBlob
	i := f.submitCalls
	f.submitCalls++
	if i < len(f.submitErrs) && f.submitErrs[i] != nil {
		return ledger.SubmitResult{}, f.submitErrs[i]
	}
	if len(f.results) == 0 {
		return ledger.SubmitResult{}, fmt.Errorf("fake: no scripted result")
	}
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClient) dialer() ledger.Dialer {
	return func(ctx context.Context) (ledger.Client, error) { return f, nil }
}

func scripted(codes ...string) []ledger.SubmitResult {
	out := make([]ledger.SubmitResult, 0, len(codes))
	for i, code := range codes {
		out = append(out, ledger.SubmitResult{
			Class:        ledger.ClassifyResult(code),
			EngineResult: code,
			TxHash:       fmt.Sprintf("HASH%02d", i),
		})
	}
	return out
}

// fakeSigner signs with a stub signature; pipelines only need determinism.
type fakeSigner struct {
	address string
}

func (s fakeSigner) Address() string   { return s.address }
func (s fakeSigner) PublicKey() string { return "03FAKE" }
func (s fakeSigner) Sign(payload []byte) (string, error) {
	return hex.EncodeToString(payload[:8]), nil
}

// fakeLocks is an in-process LockManager recording every acquisition.
type fakeLocks struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
	failWith error
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: map[string]bool{}}
}

func (l *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return nil, l.failWith
	}
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	l.acquired = append(l.acquired, key)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held[key] = false
	}, nil
}

// fakeBondStore is an in-memory BondStore.
type fakeBondStore struct {
	mu    sync.Mutex
	bonds map[string]domain.Bond
}

func newFakeBondStore(seed ...domain.Bond) *fakeBondStore {
	s := &fakeBondStore{bonds: map[string]domain.Bond{}}
	for _, b := range seed {
		s.bonds[b.ID] = b
	}
	return s
}

func (s *fakeBondStore) Create(ctx context.Context, bond domain.Bond) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bonds[bond.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.bonds[bond.ID] = bond
	return nil
}

func (s *fakeBondStore) GetByID(ctx context.Context, id string) (domain.Bond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bonds[id]
	if !ok {
		return domain.Bond{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *fakeBondStore) List(ctx context.Context) ([]domain.Bond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Bond, 0, len(s.bonds))
	for _, b := range s.bonds {
		out = append(out, b)
	}
	return out, nil
}

func (s *fakeBondStore) Save(ctx context.Context, bond domain.Bond) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bonds[bond.ID] = bond
	return nil
}

// fakeWalletStore is an in-memory WalletStore.
type fakeWalletStore struct {
	mu      sync.Mutex
	wallets map[string]domain.Wallet // by user id
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{wallets: map[string]domain.Wallet{}}
}

func (s *fakeWalletStore) Save(ctx context.Context, w domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.UserID] = w
	return nil
}

func (s *fakeWalletStore) GetByUserID(ctx context.Context, userID string) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return domain.Wallet{}, domain.ErrNotFound
	}
	return w, nil
}

func (s *fakeWalletStore) GetByAddress(ctx context.Context, address string) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.Address == address {
			return w, nil
		}
	}
	return domain.Wallet{}, domain.ErrNotFound
}

// fakeSubmissionStore records appended audit rows.
type fakeSubmissionStore struct {
	mu      sync.Mutex
	records []domain.SubmissionRecord
}

func (s *fakeSubmissionStore) Append(ctx context.Context, rec domain.SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeSubmissionStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.SubmissionRecord, error) {
	return nil, nil
}

func (s *fakeSubmissionStore) Delete(ctx context.Context, ids []string) (int64, error) {
	return 0, nil
}

// fakeFunder records funding requests.
type fakeFunder struct {
	mu     sync.Mutex
	funded []string
	err    error
}

func (f *fakeFunder) Fund(ctx context.Context, destination string) (ledger.FundedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return ledger.FundedAccount{}, f.err
	}
	f.funded = append(f.funded, destination)
	addr := destination
	if addr == "" {
		addr = fmt.Sprintf("rFresh%d", len(f.funded))
	}
	return ledger.FundedAccount{
		Address: addr,
		Seed:    "sEdFaucetSeed" + addr,
		Balance: decimal.NewFromInt(100),
	}, nil
}

// fakeNotifier records published events.
type fakeNotifier struct {
	mu       sync.Mutex
	events   []string
	payloads []map[string]any
}

func (n *fakeNotifier) Notify(ctx context.Context, event string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
}

func newTestPipeline(subs domain.SubmissionStore) *Pipeline {
	return NewPipeline(newFakeLocks(), subs, 500, 3, time.Second, testLogger())
}

func issuedLine(currency, issuer string, balance float64) ledger.TrustLine {
	return ledger.TrustLine{
		Account:  issuer,
		Currency: currency,
		Balance:  decimal.NewFromFloat(balance),
		Limit:    decimal.NewFromInt(1_000_000),
	}
}
