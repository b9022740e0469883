package models

// Student is a learner considered for section allocation. ID is the external identifier and is never reused.
type Student struct {
	ID             string  `db:"id" json:"id"`
	FullName       string  `db:"full_name" json:"full_name"`
	CGPA           float64 `db:"cgpa" json:"cgpa"`
	PaymentCleared bool    `db:"payment_cleared" json:"payment_cleared"`
	EvaluationDone bool    `db:"evaluation_done" json:"evaluation_done"`
	Level          int     `db:"level" json:"level"`
	Department     string  `db:"department" json:"department"`
}
