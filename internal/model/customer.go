package model

import "time"

type Customer struct {
	BaseModel
	Phone     string    `db:"phone" json:"phone"`
	Name      string    `db:"name" json:"name"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
