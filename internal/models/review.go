package models

import "time"

// Review is a student's rating and comment on a course. One per (student, course).
type Review struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewListItem is the public projection of a review.
type ReviewListItem struct {
	ID          string    `db:"id" json:"id"`
	StudentName string    `db:"student_name" json:"student_name"`
	Rating      int       `db:"rating" json:"rating"`
	Comment     string    `db:"comment" json:"comment"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CourseRating aggregates the reviews of a course.
type CourseRating struct {
	CourseID      string  `db:"course_id" json:"course_id"`
	CourseTitle   string  `db:"course_title" json:"course_title"`
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	TotalReviews  int     `db:"total_reviews" json:"total_reviews"`
}

// ReviewRequest is the body of review create and update.
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=5000"`
}
