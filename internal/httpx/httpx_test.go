package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slhnet/slh_ledger/internal/ledger"
)

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{ledger.ErrSelfTransfer, http.StatusBadRequest},
		{ledger.ErrUnknownWallet, http.StatusNotFound},
		{fmt.Errorf("WalletByOwner: %w", ledger.ErrNotFound), http.StatusNotFound},
		{ledger.ErrDuplicateTransaction, http.StatusConflict},
		{ledger.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{fmt.Errorf("Transfer: %w: timeout", ledger.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
		{fiber.NewError(http.StatusTeapot, "tea"), http.StatusTeapot},
	}
	for _, tc := range cases {
		var fe *fiber.Error
		require.True(t, errors.As(Error(tc.err), &fe), "error %v", tc.err)
		assert.Equal(t, tc.code, fe.Code, "error %v", tc.err)
	}
	assert.NoError(t, Error(nil))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "insufficient_funds", Outcome(ledger.ErrInsufficientFunds))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}

type sample struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

func TestBind(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		var req sample
		if err := Bind(c, &req); err != nil {
			return err
		}
		return c.SendString(req.Amount)
	})

	cases := map[string]int{
		`{"amount":"1.5"}`: http.StatusOK,
		`{"amount":"abc"}`: http.StatusBadRequest,
		`{}`:               http.StatusBadRequest,
		`not json`:         http.StatusBadRequest,
	}
	for body, want := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, "body %s", body)
	}
}
