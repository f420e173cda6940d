package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/greenbond/internal/domain"
)

type fakePurchases struct {
	result domain.PurchaseResult
	err    error
	lastQ  decimal.Decimal
}

func (p *fakePurchases) Purchase(ctx context.Context, userID string, quantity decimal.Decimal) (domain.PurchaseResult, error) {
	if p.err != nil {
		return domain.PurchaseResult{}, p.err
	}
	p.lastQ = quantity
	return p.result, nil
}

func TestPurchaseReportsSettledAmount(t *testing.T) {
	purchases := &fakePurchases{
		result: domain.PurchaseResult{
			Status: domain.PurchasePartiallyFilled,
			Bought: decimal.RequireFromString("12.5"),
		},
	}
	h := NewPurchaseHandler(purchases, testLogger())

	body := `{"user_id":"user-1","quantity":"20"}`
	req := httptest.NewRequest(http.MethodPost, "/api/purchase", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Purchase(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, purchases.lastQ.Equal(decimal.NewFromInt(20)))

	var result domain.PurchaseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, domain.PurchasePartiallyFilled, result.Status)
}

func TestPurchaseFailureComesBackInTheResult(t *testing.T) {
	// Settlement failures are part of the result contract, not the error
	// return: the handler passes them through with the guidance message.
	purchases := &fakePurchases{
		result: domain.PurchaseResult{
			Status:  domain.PurchaseFailed,
			Message: "offer is not funded; try a different offer",
		},
	}
	h := NewPurchaseHandler(purchases, testLogger())

	body := `{"user_id":"user-1","quantity":"20"}`
	req := httptest.NewRequest(http.MethodPost, "/api/purchase", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Purchase(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.PurchaseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, domain.PurchaseFailed, result.Status)
	assert.Contains(t, result.Message, "try a different offer")
}

func TestPurchaseValidation(t *testing.T) {
	h := NewPurchaseHandler(&fakePurchases{}, testLogger())

	for name, body := range map[string]string{
		"missing user":  `{"quantity":"5"}`,
		"zero quantity": `{"user_id":"u","quantity":"0"}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/purchase", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.Purchase(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestEnsureWalletOmitsSeedMaterial(t *testing.T) {
	h := NewWalletHandler(fakeWallets{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/wallets", strings.NewReader(`{"user_id":"user-1"}`))
	rec := httptest.NewRecorder()
	h.EnsureWallet(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rTestAccount")
	assert.NotContains(t, rec.Body.String(), "seed")
}
