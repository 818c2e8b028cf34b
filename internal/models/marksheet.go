package models

import "time"

// Marks caps for the three assessment reviews. Review three carries
// the final demonstration weight.
const (
	Review1MaxMarks = 30
	Review2MaxMarks = 30
	Review3MaxMarks = 40
	TotalMaxMarks   = Review1MaxMarks + Review2MaxMarks + Review3MaxMarks
)

// MarkSheet holds one student's marks across the three review rounds.
// A student has at most one sheet; re-entering marks overwrites it.
type MarkSheet struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	Review1       int       `db:"review1" json:"review1"`
	Review2       int       `db:"review2" json:"review2"`
	Review3       int       `db:"review3" json:"review3"`
	TotalObtained int       `db:"total_obtained" json:"total_obtained"`
	TotalMarks    int       `db:"total_marks" json:"total_marks"`
	Percentage    float64   `db:"percentage" json:"percentage"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
