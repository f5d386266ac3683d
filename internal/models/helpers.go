package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateMatchID(now time.Time) string {
	return fmt.Sprintf("match_%s_%s", now.Format("20060102"), uuid.NewString())
}

func GenerateTransactionID(now time.Time) string {
	return fmt.Sprintf("tx_%s_%s", now.Format("20060102"), uuid.NewString())
}

func FormatCoins(amount fmt.Stringer) string {
	return fmt.Sprintf("%s LCO", amount)
}
