// Package engine implements the transaction and settlement flows: reserve
// checks, trust line setup, the submission pipeline, order settlement, and
// the bond lifecycle.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/ledger"
)

// Signer signs transaction payloads for a single account.
// *crypto.Signer is the production implementation.
type Signer interface {
	Address() string
	PublicKey() string
	Sign(payload []byte) (string, error)
}

// Funder requests faucet funding for an account. An empty destination
// creates and funds a fresh account.
type Funder interface {
	Fund(ctx context.Context, destination string) (ledger.FundedAccount, error)
}

// Notifier publishes operational events. Implementations must not block the
// calling flow on delivery.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]any)
}

// Pipeline drives a transaction intent through autofill, signing, and
// submission. Each run re-derives sequence, fee, and expiry from the live
// ledger; the intent itself is never mutated.
type Pipeline struct {
	locks        domain.LockManager
	records      domain.SubmissionStore
	expiryWindow uint32
	maxAttempts  int
	lockTTL      time.Duration
	log          *slog.Logger
}

// NewPipeline creates a Pipeline. locks serializes submissions per signing
// account and may be nil when the caller guarantees exclusivity; records may
// be nil to skip the audit trail.
func NewPipeline(locks domain.LockManager, records domain.SubmissionStore, expiryWindow uint32, maxAttempts int, lockTTL time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		locks:        locks,
		records:      records,
		expiryWindow: expiryWindow,
		maxAttempts:  maxAttempts,
		lockTTL:      lockTTL,
		log:          logger.With("component", "pipeline"),
	}
}

// Submit runs the intent to a final outcome. Only the stale-sequence verdict
// is retried: a fresh autofill assigns a fresh sequence, so a bounded number
// of retries resolves sequence races. Every other verdict is final on the
// first acknowledgment. The error return is reserved for infrastructure
// failures; engine rejections come back inside the outcome.
func (p *Pipeline) Submit(ctx context.Context, cli ledger.Client, intent domain.TransactionIntent, signer Signer) (domain.SubmissionOutcome, error) {
	if p.locks != nil {
		unlock, err := p.locks.Acquire(ctx, "lock:account:"+signer.Address(), p.lockTTL)
		if err != nil {
			return domain.SubmissionOutcome{}, fmt.Errorf("engine/pipeline: account lock: %w", err)
		}
		defer unlock()
	}

	var outcome domain.SubmissionOutcome
	var runErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		outcome, runErr = p.attempt(ctx, cli, intent, signer)
		outcome.Attempts = attempt
		if runErr != nil {
			break
		}
		if outcome.Result != domain.ResultStaleSequence {
			break
		}
		p.log.Info("stale sequence, retrying",
			"account", signer.Address(),
			"attempt", attempt,
			"max_attempts", p.maxAttempts)
	}

	if runErr == nil && outcome.Result == domain.ResultStaleSequence {
		// Retries exhausted without ever getting a usable sequence.
		outcome.Kind = domain.OutcomeTransientFailure
	}

	p.record(ctx, intent, signer, outcome)

	if runErr != nil {
		return outcome, runErr
	}

	p.log.Info("submission finished",
		"account", signer.Address(),
		"type", string(intent.Type),
		"kind", outcome.Kind.String(),
		"engine_result", outcome.EngineResult,
		"attempts", outcome.Attempts,
		"hash", outcome.TxHash)
	return outcome, nil
}

// attempt performs one autofill-sign-submit round trip.
func (p *Pipeline) attempt(ctx context.Context, cli ledger.Client, intent domain.TransactionIntent, signer Signer) (domain.SubmissionOutcome, error) {
	tx, err := cli.Autofill(ctx, intent, p.expiryWindow)
	if err != nil {
		return domain.SubmissionOutcome{}, fmt.Errorf("engine/pipeline: autofill: %w", err)
	}

	payload, err := ledger.SigningPayload(tx)
	if err != nil {
		return domain.SubmissionOutcome{}, fmt.Errorf("engine/pipeline: %w", err)
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return domain.SubmissionOutcome{}, fmt.Errorf("engine/pipeline: %w: %v", domain.ErrSigningFailed, err)
	}
	tx.SigningPubKey = signer.PublicKey()
	tx.TxnSignature = sig

	blob, hash, err := ledger.EncodeSignedTx(tx)
	if err != nil {
		return domain.SubmissionOutcome{}, fmt.Errorf("engine/pipeline: %w", err)
	}

	res, err := cli.Submit(ctx, blob)
	if err != nil {
		// The acknowledgment was lost. Whether the transaction can still
		// apply depends on the stamped expiry; past it, the network will
		// never include it.
		return p.resolveLostAck(ctx, cli, tx, hash, err), nil
	}

	out := domain.SubmissionOutcome{
		Result:       res.Class,
		EngineResult: res.EngineResult,
		TxHash:       res.TxHash,
		SettledAt:    time.Now().UTC(),
	}
	if out.TxHash == "" {
		out.TxHash = hash
	}

	switch res.Class {
	case domain.ResultOK, domain.ResultQueued:
		out.Kind = domain.OutcomeSucceeded
	case domain.ResultStaleSequence:
		out.Kind = domain.OutcomeTransientFailure
	case domain.ResultUnknown:
		exp := p.resolveLostAck(ctx, cli, tx, hash, nil)
		out.Kind = exp.Kind
	default:
		out.Kind = domain.OutcomeRejected
	}
	return out, nil
}

// resolveLostAck decides between expiry and a transient failure when no
// usable verdict arrived: once the validated index passes the stamped
// LastLedgerSequence the transaction is conclusively dead.
func (p *Pipeline) resolveLostAck(ctx context.Context, cli ledger.Client, tx ledger.PreparedTx, hash string, cause error) domain.SubmissionOutcome {
	out := domain.SubmissionOutcome{
		Kind:      domain.OutcomeTransientFailure,
		Result:    domain.ResultUnknown,
		TxHash:    hash,
		SettledAt: time.Now().UTC(),
	}

	index, err := cli.LedgerIndex(ctx)
	if err != nil {
		p.log.Warn("cannot resolve lost acknowledgment",
			"hash", hash, "cause", cause, "error", err)
		return out
	}
	if index > tx.LastLedgerSequence {
		out.Kind = domain.OutcomeExpired
		p.log.Warn("transaction expired",
			"hash", hash,
			"last_ledger_sequence", tx.LastLedgerSequence,
			"validated_index", index)
	}
	return out
}

// record appends the outcome to the audit trail. Failures here never fail
// the flow.
func (p *Pipeline) record(ctx context.Context, intent domain.TransactionIntent, signer Signer, outcome domain.SubmissionOutcome) {
	if p.records == nil {
		return
	}
	rec := domain.SubmissionRecord{
		ID:           uuid.NewString(),
		Account:      signer.Address(),
		TxType:       intent.Type,
		Kind:         outcome.Kind,
		TxHash:       outcome.TxHash,
		EngineResult: outcome.EngineResult,
		Attempts:     outcome.Attempts,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.records.Append(ctx, rec); err != nil {
		p.log.Warn("audit record append failed", "error", err, "hash", rec.TxHash)
	}
}
