package domain

import "time"

// TxType enumerates the transaction intents this system constructs.
type TxType string

const (
	TxTrustSet    TxType = "TrustSet"
	TxOfferCreate TxType = "OfferCreate"
	TxPayment     TxType = "Payment"
)

// TransactionIntent is an unsigned description of a ledger action. It is
// immutable once constructed; the submission pipeline derives a prepared
// transaction from it (expiry, fee, sequence) without mutating the intent.
type TransactionIntent struct {
	Type    TxType
	Account string

	// Payment fields.
	Destination    string
	Amount         AssetAmount
	DestinationTag uint32

	// TrustSet field: the limit up to which the account will hold the asset.
	LimitAmount AssetAmount

	// OfferCreate fields.
	TakerGets AssetAmount
	TakerPays AssetAmount
}

// ResultClass is the closed set of engine verdict classes decoded at the
// ledger client boundary. Downstream components pattern-match on these
// instead of probing raw result strings.
type ResultClass int

const (
	// ResultUnknown: the acknowledgment carried no recognizable verdict.
	ResultUnknown ResultClass = iota
	// ResultOK: the transaction was accepted and provisionally applied.
	ResultOK
	// ResultQueued: accepted into the pending set, application deferred.
	ResultQueued
	// ResultStaleSequence: the sequence number was already consumed. The
	// only class the pipeline retries, since re-running autofill assigns a
	// fresh sequence.
	ResultStaleSequence
	// ResultUnfundedOffer: an offer the account cannot cover.
	ResultUnfundedOffer
	// ResultRejected: any other permanent rejection (malformed, unfunded
	// payment, policy failure). Never retried.
	ResultRejected
)

// String returns the class name for logging.
func (c ResultClass) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultQueued:
		return "queued"
	case ResultStaleSequence:
		return "stale_sequence"
	case ResultUnfundedOffer:
		return "unfunded_offer"
	case ResultRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// OutcomeKind tags the final result of a submission pipeline run.
type OutcomeKind int

const (
	OutcomeSucceeded OutcomeKind = iota
	OutcomeRejected
	OutcomeExpired
	OutcomeTransientFailure
)

// String returns the kind name for logging and persistence.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRejected:
		return "rejected"
	case OutcomeExpired:
		return "expired"
	default:
		return "transient_failure"
	}
}

// ParseOutcomeKind converts a stored kind name back to its OutcomeKind.
func ParseOutcomeKind(s string) OutcomeKind {
	switch s {
	case "succeeded":
		return OutcomeSucceeded
	case "rejected":
		return OutcomeRejected
	case "expired":
		return OutcomeExpired
	default:
		return OutcomeTransientFailure
	}
}

// SubmissionOutcome is the aggregated result of one pipeline run. A single
// outcome may cover several submission attempts; Attempts records how many
// were made.
type SubmissionOutcome struct {
	Kind         OutcomeKind
	TxHash       string
	Result       ResultClass
	EngineResult string
	Attempts     int
	SettledAt    time.Time
}

// Succeeded reports whether the network accepted the transaction. Acceptance
// is not proof of final inclusion; settlement confirmation is a separate
// balance-diff step.
func (o SubmissionOutcome) Succeeded() bool {
	return o.Kind == OutcomeSucceeded
}

// SubmissionRecord is an audit row appended for every final outcome.
type SubmissionRecord struct {
	ID           string
	Account      string
	TxType       TxType
	Kind         OutcomeKind
	TxHash       string
	EngineResult string
	Attempts     int
	CreatedAt    time.Time
}
