package models

// Faculty teaches sections. Sections of unavailable faculty cannot be allocated.
type Faculty struct {
	ID        string `db:"id" json:"id"`
	Code      string `db:"code" json:"code"`
	Name      string `db:"name" json:"name"`
	MaxLoad   int    `db:"max_load" json:"max_load"`
	Available bool   `db:"available" json:"available"`
}
