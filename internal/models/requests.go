package models

type BuyItemRequest struct {
	Category ItemCategory `json:"category" binding:"required,oneof=unit rack"`
	ItemID   string       `json:"item_id" binding:"required"`
	Quantity int          `json:"quantity" binding:"omitempty,min=1,max=100"`
}

type PlaceRackRequest struct {
	Room   int    `json:"room" binding:"min=0"`
	Slot   int    `json:"slot" binding:"min=0,max=3"`
	RackID string `json:"rack_id" binding:"required"`
}

type RemoveRackRequest struct {
	Room int `json:"room" binding:"min=0"`
	Slot int `json:"slot" binding:"min=0,max=3"`
}

type PlaceUnitRequest struct {
	Room   int    `json:"room" binding:"min=0"`
	Slot   int    `json:"slot" binding:"min=0,max=3"`
	Unit   int    `json:"unit" binding:"min=0"`
	UnitID string `json:"unit_id" binding:"required"`
}

func (r PlaceUnitRequest) Ref() SlotRef {
	return SlotRef{Room: r.Room, Rack: r.Slot, Unit: r.Unit}
}

type RemoveUnitRequest struct {
	Room int `json:"room" binding:"min=0"`
	Slot int `json:"slot" binding:"min=0,max=3"`
	Unit int `json:"unit" binding:"min=0"`
}

func (r RemoveUnitRequest) Ref() SlotRef {
	return SlotRef{Room: r.Room, Rack: r.Slot, Unit: r.Unit}
}

type EmojiRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}
