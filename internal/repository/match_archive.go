package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"lulacoin-miner-backend/internal/models"
)

type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// MatchRecord is the durable copy of a damas match that reached a terminal state.
type MatchRecord struct {
	ID          string          `gorm:"primaryKey;type:varchar(80)" json:"id"`
	PlayerAID   string          `gorm:"index;not null" json:"player_a_id"`
	PlayerAName string          `json:"player_a_name"`
	PlayerBID   string          `gorm:"index;not null" json:"player_b_id"`
	PlayerBName string          `json:"player_b_name"`
	Status      string          `gorm:"type:varchar(16);check:status IN ('finished','abandoned')" json:"status"`
	Winner      string          `gorm:"type:varchar(1)" json:"winner,omitempty"`
	WinnerID    *string         `gorm:"index" json:"winner_id,omitempty"`
	Stake       decimal.Decimal `gorm:"type:numeric(20,8)" json:"stake"`
	Reward      decimal.Decimal `gorm:"type:numeric(20,8)" json:"reward"`
	FinalBoard  string          `gorm:"type:text" json:"final_board"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     time.Time       `gorm:"index" json:"ended_at"`

	Timestamps
}

// Open connects to Postgres through gorm.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

type MatchArchive struct {
	DB *gorm.DB
}

func NewMatchArchive(db *gorm.DB) *MatchArchive {
	return &MatchArchive{DB: db}
}

func (a *MatchArchive) Migrate() error {
	return a.DB.AutoMigrate(&MatchRecord{})
}

// ArchiveMatch upserts the record, so archiving the same match twice is harmless.
func (a *MatchArchive) ArchiveMatch(ctx context.Context, m *models.MatchSession) error {
	rec, err := NewMatchRecord(m)
	if err != nil {
		return err
	}
	return a.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
}

func (a *MatchArchive) PlayerStats(ctx context.Context, playerID string) (models.MatchStats, error) {
	var stats models.MatchStats
	db := a.DB.WithContext(ctx).Model(&MatchRecord{})

	err := db.Where("player_a_id = ? OR player_b_id = ?", playerID, playerID).
		Count(&stats.Played).Error
	if err != nil {
		return stats, fmt.Errorf("failed to count matches: %w", err)
	}

	err = a.DB.WithContext(ctx).Model(&MatchRecord{}).
		Where("winner_id = ?", playerID).
		Count(&stats.Won).Error
	if err != nil {
		return stats, fmt.Errorf("failed to count wins: %w", err)
	}

	err = a.DB.WithContext(ctx).Model(&MatchRecord{}).
		Where("(player_a_id = ? OR player_b_id = ?) AND status = ?", playerID, playerID, string(models.MatchStatusAbandoned)).
		Count(&stats.Abandoned).Error
	if err != nil {
		return stats, fmt.Errorf("failed to count abandoned matches: %w", err)
	}
	return stats, nil
}

func (a *MatchArchive) RecentForPlayer(ctx context.Context, playerID string, limit int) ([]MatchRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var records []MatchRecord
	err := a.DB.WithContext(ctx).
		Where("player_a_id = ? OR player_b_id = ?", playerID, playerID).
		Order("ended_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// RecentMatches returns archived matches of the player as sessions, newest first.
func (a *MatchArchive) RecentMatches(ctx context.Context, playerID string, limit int) ([]*models.MatchSession, error) {
	records, err := a.RecentForPlayer(ctx, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load archived matches: %w", err)
	}
	sessions := make([]*models.MatchSession, 0, len(records))
	for i := range records {
		m, err := records[i].Session()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, m)
	}
	return sessions, nil
}

func NewMatchRecord(m *models.MatchSession) (*MatchRecord, error) {
	if m.IsActive() {
		return nil, fmt.Errorf("match %s is still active", m.ID)
	}
	board, err := json.Marshal(m.Board)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}

	ended := m.UpdatedAt
	if m.EndedAt != nil {
		ended = *m.EndedAt
	}

	rec := &MatchRecord{
		ID:          m.ID,
		PlayerAID:   m.Players[0].PlayerID,
		PlayerAName: m.Players[0].DisplayName,
		PlayerBID:   m.Players[1].PlayerID,
		PlayerBName: m.Players[1].DisplayName,
		Status:      string(m.Status),
		Winner:      string(m.Winner),
		Stake:       m.Stake,
		Reward:      m.Reward,
		FinalBoard:  string(board),
		StartedAt:   m.CreatedAt,
		EndedAt:     ended,
	}
	if winner, ok := m.PlayerBySide(m.Winner); ok && m.Winner != "" {
		rec.WinnerID = &winner.PlayerID
	}
	return rec, nil
}

// Session rebuilds the terminal session the record was written from.
func (r *MatchRecord) Session() (*models.MatchSession, error) {
	var board models.Board
	if err := json.Unmarshal([]byte(r.FinalBoard), &board); err != nil {
		return nil, fmt.Errorf("match %s: failed to unmarshal board: %w", r.ID, err)
	}
	ended := r.EndedAt
	return &models.MatchSession{
		ID: r.ID,
		Players: [2]models.MatchPlayer{
			{PlayerID: r.PlayerAID, DisplayName: r.PlayerAName, Side: models.SideA},
			{PlayerID: r.PlayerBID, DisplayName: r.PlayerBName, Side: models.SideB},
		},
		Board:     board,
		Status:    models.MatchStatus(r.Status),
		Winner:    models.Side(r.Winner),
		Stake:     r.Stake,
		Reward:    r.Reward,
		CreatedAt: r.StartedAt,
		UpdatedAt: r.EndedAt,
		EndedAt:   &ended,
	}, nil
}

// NopArchive is used when no database is configured.
type NopArchive struct{}

func (NopArchive) ArchiveMatch(context.Context, *models.MatchSession) error { return nil }

func (NopArchive) PlayerStats(context.Context, string) (models.MatchStats, error) {
	return models.MatchStats{}, nil
}

func (NopArchive) RecentMatches(context.Context, string, int) ([]*models.MatchSession, error) {
	return nil, nil
}
