package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeRoom       TransactionType = "room"
	TransactionTypeRecharge   TransactionType = "recharge"
	TransactionTypeLand       TransactionType = "land"
	TransactionTypeStake      TransactionType = "stake"
	TransactionTypeMatchPrize TransactionType = "match_prize"
)

type Transaction struct {
	ID            string          `json:"id"`
	PlayerID      string          `json:"player_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	MatchID       string          `json:"match_id,omitempty"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewTransaction records a balance movement. Debits carry a negative amount.
func NewTransaction(playerID string, txType TransactionType, before, after decimal.Decimal, description string, now time.Time) *Transaction {
	return &Transaction{
		ID:            GenerateTransactionID(now),
		PlayerID:      playerID,
		Type:          txType,
		Amount:        after.Sub(before),
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		CreatedAt:     now,
	}
}
