package models

import "time"

// DepartmentSequence is the authoritative counter behind a department's tokens.
type DepartmentSequence struct {
	Department string    `db:"department" json:"department"`
	LastIssued int64     `db:"last_issued" json:"lastIssued"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}
