package dto

type AdjustInventoryInput struct {
	ProductID      string
	QuantityChange int
	Reason         string
	ReferenceID    string
	ReferenceType  string // 'manual', 'restock'

	// SkipRecorded makes the adjustment a no-op when a movement for the
	// product already carries ReferenceType and ReferenceID.
	SkipRecorded bool
}

type SetStockInput struct {
	ProductID     string
	Quantity      int
	Reason        string
	ReferenceID   string
	ReferenceType string
}
