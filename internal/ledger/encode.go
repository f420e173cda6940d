package ledger

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SigningPayload returns the byte string a signer commits to for tx: the
// canonical JSON encoding of the transaction without signature fields.
func SigningPayload(tx PreparedTx) ([]byte, error) {
	unsigned := tx
	unsigned.SigningPubKey = ""
	unsigned.TxnSignature = ""
	data, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode signing payload: %w", err)
	}
	return data, nil
}

// EncodeSignedTx serializes a signed transaction into the submittable blob
// and computes its identifying hash. The hash is the first half of the
// SHA-512 digest of the blob bytes, hex encoded.
func EncodeSignedTx(tx PreparedTx) (blob string, hash string, err error) {
	if tx.SigningPubKey == "" || tx.TxnSignature == "" {
		return "", "", fmt.Errorf("ledger: encode: transaction is not signed")
	}
	data, err := json.Marshal(tx)
	if err != nil {
		return "", "", fmt.Errorf("ledger: encode signed tx: %w", err)
	}

	blob = strings.ToUpper(hex.EncodeToString(data))
	sum := sha512.Sum512([]byte(blob))
	hash = strings.ToUpper(hex.EncodeToString(sum[:32]))
	return blob, hash, nil
}
