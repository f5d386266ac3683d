package models

import "errors"

var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientStake     = errors.New("insufficient balance for match stake")
	ErrSlotOccupied          = errors.New("slot occupied")
	ErrSlotEmpty             = errors.New("slot empty")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidSlot           = errors.New("invalid slot")
	ErrUnknownItem           = errors.New("unknown item")
	ErrRoomLimit             = errors.New("room limit reached")
	ErrMatchFormationFailed  = errors.New("match formation failed")
	ErrMatchNotActive        = errors.New("match is not active")
	ErrNotParticipant        = errors.New("player is not a participant of this match")
	ErrInvalidBoard          = errors.New("invalid board")
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
)
