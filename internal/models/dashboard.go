package models

import "time"

// AdminAnalytics is the admin dashboard summary.
type AdminAnalytics struct {
	TotalStudents    int     `json:"total_students"`
	TotalInstructors int     `json:"total_instructors"`
	TotalCourses     int     `json:"total_courses"`
	TotalEnrollments int     `json:"total_enrollments"`
	TotalReviews     int     `json:"total_reviews"`
	AverageRating    float64 `json:"average_rating"`
}

// TopCourse ranks a published course by enrollments.
type TopCourse struct {
	ID              string  `db:"id" json:"id"`
	Title           string  `db:"title" json:"title"`
	InstructorName  string  `db:"instructor_name" json:"instructor_name"`
	EnrollmentCount int     `db:"enrollment_count" json:"enrollment_count"`
	AverageRating   float64 `db:"average_rating" json:"average_rating"`
}

// Activity types reported by the recent activity feed.
const (
	ActivityEnrollment = "enrollment"
	ActivityReview     = "review"
	ActivityCourse     = "course"
)

// Activity is one entry of the admin recent activity feed.
type Activity struct {
	Type        string    `db:"type" json:"type"`
	Description string    `db:"description" json:"description"`
	UserName    string    `db:"user_name" json:"user_name"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
}

// InstructorCourseStat summarises one of an instructor's courses.
type InstructorCourseStat struct {
	ID          string  `db:"id" json:"id"`
	Title       string  `db:"title" json:"title"`
	Enrollments int     `db:"enrollments" json:"enrollments"`
	Rating      float64 `db:"rating" json:"rating"`
}

// InstructorDashboard is the instructor's landing summary.
type InstructorDashboard struct {
	TotalCourses  int                    `json:"total_courses"`
	TotalStudents int                    `json:"total_students"`
	TotalRevenue  float64                `json:"total_revenue"`
	AverageRating float64                `json:"average_rating"`
	RecentCourses []InstructorCourseStat `json:"recent_courses"`
}

// StudentCourseProgress is one in-progress course on the student dashboard.
type StudentCourseProgress struct {
	EnrollmentID string    `json:"enrollment_id"`
	CourseID     string    `json:"course_id"`
	CourseTitle  string    `json:"course_title"`
	Instructor   string    `json:"instructor"`
	Progress     float64   `json:"progress"`
	EnrolledAt   time.Time `json:"enrolled_at"`
}

// StudentDashboard is the student's landing summary.
type StudentDashboard struct {
	TotalEnrolled    int                     `json:"total_enrolled"`
	CompletedCourses int                     `json:"completed_courses"`
	InProgress       int                     `json:"in_progress"`
	Courses          []StudentCourseProgress `json:"courses"`
}

// SystemMetrics is a point-in-time snapshot of process metrics.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	JobsProcessed            uint64    `json:"jobs_processed"`
	JobsFailed               uint64    `json:"jobs_failed"`
	Enrollments              uint64    `json:"enrollments"`
	CourseCompletions        uint64    `json:"course_completions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
