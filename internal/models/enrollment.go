package models

import (
	"math"
	"time"
)

// EnrollmentStatus tracks whether a student has finished a course.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
)

// Enrollment links a student to a course.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	CourseID    string           `db:"course_id" json:"course_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt  time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// LectureProgress is the per-lecture completion flag of an enrollment.
type LectureProgress struct {
	ID           string     `db:"id" json:"id"`
	EnrollmentID string     `db:"enrollment_id" json:"enrollment_id"`
	LectureID    string     `db:"lecture_id" json:"lecture_id"`
	Completed    bool       `db:"completed" json:"completed"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// ProgressCounts are the inputs of the progress percentage.
type ProgressCounts struct {
	Total     int `db:"total"`
	Completed int `db:"completed"`
}

// Complete reports whether every lecture is done. Status transitions use this
// rather than the rounded Percentage.
func (c ProgressCounts) Complete() bool {
	return c.Total > 0 && c.Completed >= c.Total
}

// Percentage returns completed/total*100 rounded to two decimals, or 0 when
// the course has no lectures. It is for display only.
func (c ProgressCounts) Percentage() float64 {
	if c.Total <= 0 {
		return 0
	}
	return math.Round(float64(c.Completed)/float64(c.Total)*10000) / 100
}

// EnrollRequest is the body of POST /enroll.
type EnrollRequest struct {
	CourseID string `json:"course_id" binding:"required,uuid" validate:"required"`
}

// EnrollResponse acknowledges a new enrollment.
type EnrollResponse struct {
	Message      string `json:"message"`
	EnrollmentID string `json:"enrollment_id"`
}

// MyCourseItem is one row of GET /my-courses.
type MyCourseItem struct {
	ID            string           `json:"id"`
	CourseDetails CourseListItem   `json:"course_details"`
	Status        EnrollmentStatus `json:"status"`
	EnrolledAt    time.Time        `json:"enrolled_at"`
}

// EnrollmentProgressRow is the joined read model behind progress listings.
type EnrollmentProgressRow struct {
	EnrollmentID      string           `db:"enrollment_id"`
	StudentID         string           `db:"student_id"`
	StudentName       string           `db:"student_name"`
	StudentEmail      string           `db:"student_email"`
	CourseID          string           `db:"course_id"`
	CourseTitle       string           `db:"course_title"`
	InstructorName    string           `db:"instructor_name"`
	Status            EnrollmentStatus `db:"status"`
	EnrolledAt        time.Time        `db:"enrolled_at"`
	CompletedAt       *time.Time       `db:"completed_at"`
	TotalLectures     int              `db:"total_lectures"`
	CompletedLectures int              `db:"completed_lectures"`
}

// Counts projects the row onto ProgressCounts.
func (r EnrollmentProgressRow) Counts() ProgressCounts {
	return ProgressCounts{Total: r.TotalLectures, Completed: r.CompletedLectures}
}

// ProgressSummary is one row of GET /my-progress.
type ProgressSummary struct {
	CourseID          string           `json:"course_id"`
	CourseTitle       string           `json:"course_title"`
	TotalLectures     int              `json:"total_lectures"`
	CompletedLectures int              `json:"completed_lectures"`
	Progress          float64          `json:"progress"`
	Status            EnrollmentStatus `json:"status"`
	EnrolledAt        time.Time        `json:"enrolled_at"`
}

// CourseProgress is the body of GET /course/:id/progress.
type CourseProgress struct {
	CourseID           string           `json:"course_id"`
	CourseTitle        string           `json:"course_title"`
	TotalLectures      int              `json:"total_lectures"`
	CompletedLectures  int              `json:"completed_lectures"`
	ProgressPercentage float64          `json:"progress_percentage"`
	Status             EnrollmentStatus `json:"status"`
}

// RosterEntry is one student of an instructor's course roster.
type RosterEntry struct {
	EnrollmentID      string           `json:"enrollment_id"`
	StudentID         string           `json:"student_id"`
	StudentName       string           `json:"student_name"`
	StudentEmail      string           `json:"student_email"`
	Status            EnrollmentStatus `json:"status"`
	EnrolledAt        time.Time        `json:"enrolled_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	CompletedLectures int              `json:"completed_lectures"`
	TotalLectures     int              `json:"total_lectures"`
	Progress          float64          `json:"progress"`
}

// CompletionResult reports the outcome of marking a lecture complete.
type CompletionResult struct {
	Message        string `json:"message"`
	AlreadyDone    bool   `json:"-"`
	EnrollmentID   string `json:"-"`
	CourseComplete bool   `json:"course_completed"`
}

// ReconcileResult reports whether ReconcileStatus promoted an enrollment.
type ReconcileResult struct {
	Enrollment   Enrollment
	Counts       ProgressCounts
	Transitioned bool
}
