package models

import "github.com/shopspring/decimal"

// Player is the authenticated identity carried in access tokens.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type RankingEntry struct {
	Rank        int             `json:"rank"`
	PlayerID    string          `json:"player_id"`
	DisplayName string          `json:"display_name"`
	Balance     decimal.Decimal `json:"balance"`
}

type MatchStats struct {
	Played    int64 `json:"played"`
	Won       int64 `json:"won"`
	Abandoned int64 `json:"abandoned"`
}
