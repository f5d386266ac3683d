package services

import "time"

const (
	KeyLedger                 = "ledger:%s"
	KeyPlayerNames            = "players:names"
	KeyRankingBalance         = "ranking:balance"
	KeyMatchSession           = "match:session:%s"
	KeyActiveMatches          = "matches:active"
	KeyPlayerActiveMatches    = "player:%s:active_matches"
	KeyPlayerCompletedMatches = "player:%s:completed_matches"
	KeyTransaction            = "transaction:%s"
	KeyPlayerTransactions     = "player:%s:transactions"
	KeyRateLimit              = "ratelimit:%s:%s"

	TTLMatchSession = 7 * 24 * time.Hour  // 7 days
	TTLTransaction  = 30 * 24 * time.Hour // 30 days

	historyLimit = 100

	DefaultRateLimitJoin = 20  // joins per minute
	DefaultRateLimitMove = 120 // moves per minute
	DefaultRateLimitShop = 60  // purchases per minute
)
