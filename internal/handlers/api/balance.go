package api

import (
	"context"
	"encoding/json"
	"net/mail"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rankwatch/internal/models"
)

// Ledger reads and credits user balances. Implemented by billing.Ledger.
type Ledger interface {
	Balance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
	Credit(ctx context.Context, userID uuid.UUID, action string, amount decimal.Decimal, metadata map[string]any) (*models.Transaction, error)
}

// ContactStore stores the low-balance contact for a user.
type ContactStore interface {
	SetNotifyEmail(ctx context.Context, userID uuid.UUID, email string) error
}

// BalanceHandler exposes the balance ledger via JSON API.
type BalanceHandler struct {
	ledger   Ledger
	contacts ContactStore
}

// NewBalanceHandler creates a new API balance handler.
func NewBalanceHandler(ledger Ledger, contacts ContactStore) *BalanceHandler {
	return &BalanceHandler{ledger: ledger, contacts: contacts}
}

// creditActions are the credit actions a caller may post directly.
var creditActions = map[string]bool{
	models.ActionRecharge: true,
	models.ActionCoupon:   true,
	models.ActionRefund:   true,
}

func userParam(c fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}

// Get returns a user's balance.
func (h *BalanceHandler) Get(c fiber.Ctx) error {
	userID, err := userParam(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid user id")
	}

	balance, err := h.ledger.Balance(c.Context(), userID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch balance")
	}
	return jsonSuccess(c, balance)
}

// Transactions returns a user's most recent transactions.
func (h *BalanceHandler) Transactions(c fiber.Ctx) error {
	userID, err := userParam(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid user id")
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid limit")
		}
	}

	txs, err := h.ledger.Transactions(c.Context(), userID, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch transactions")
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return jsonSuccess(c, txs)
}

// Credit adds funds to a user's balance.
func (h *BalanceHandler) Credit(c fiber.Ctx) error {
	userID, err := userParam(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid user id")
	}

	var body struct {
		Action   string          `json:"action"`
		Amount   decimal.Decimal `json:"amount"`
		Metadata map[string]any  `json:"metadata"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !creditActions[body.Action] {
		return jsonError(c, fiber.StatusBadRequest, "action must be recharge, coupon or refund")
	}

	tx, err := h.ledger.Credit(c.Context(), userID, body.Action, body.Amount, body.Metadata)
	if err != nil {
		return serviceError(c, err, "failed to credit balance")
	}
	return jsonSuccess(c, tx)
}

// SetNotifyEmail sets the address told when auto-tracking is paused.
func (h *BalanceHandler) SetNotifyEmail(c fiber.Ctx) error {
	userID, err := userParam(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid user id")
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	addr, err := mail.ParseAddress(body.Email)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid email address")
	}

	if err := h.contacts.SetNotifyEmail(c.Context(), userID, addr.Address); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to update notification email")
	}
	return jsonSuccess(c, fiber.Map{"email": addr.Address})
}
