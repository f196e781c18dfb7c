package models

import "time"

// CourseLevel grades course difficulty.
type CourseLevel string

const (
	LevelBeginner     CourseLevel = "Beginner"
	LevelIntermediate CourseLevel = "Intermediate"
	LevelAdvanced     CourseLevel = "Advanced"
)

// Valid reports whether l is a known level.
func (l CourseLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	default:
		return false
	}
}

// Category groups courses for browsing.
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Course is the root of the catalog hierarchy.
type Course struct {
	ID           string      `db:"id" json:"id"`
	Title        string      `db:"title" json:"title"`
	Description  string      `db:"description" json:"description"`
	Price        float64     `db:"price" json:"price"`
	Level        CourseLevel `db:"level" json:"level"`
	InstructorID string      `db:"instructor_id" json:"instructor_id"`
	CategoryID   *string     `db:"category_id" json:"category_id,omitempty"`
	IsPublished  bool        `db:"is_published" json:"is_published"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// CourseListItem is the row shape of course listings.
type CourseListItem struct {
	ID             string      `db:"id" json:"id"`
	Title          string      `db:"title" json:"title"`
	Description    string      `db:"description" json:"description"`
	Price          float64     `db:"price" json:"price"`
	Level          CourseLevel `db:"level" json:"level"`
	InstructorName string      `db:"instructor_name" json:"instructor_name"`
	CategoryName   *string     `db:"category_name" json:"category_name"`
	IsPublished    bool        `db:"is_published" json:"is_published"`
	TotalModules   int         `db:"total_modules" json:"total_modules"`
	TotalLectures  int         `db:"total_lectures" json:"total_lectures"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// CourseDetail is the full course tree returned by the detail endpoint.
type CourseDetail struct {
	Course
	Instructor UserSummary    `json:"instructor"`
	Category   *Category      `json:"category,omitempty"`
	Modules    []ModuleDetail `json:"modules"`
}

// Module is an ordered section of a course. Order is unique per course.
type Module struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	Order     int       `db:"position" json:"order"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ModuleDetail nests lectures under their module.
type ModuleDetail struct {
	Module
	Lectures []Lecture `json:"lectures"`
}

// Lecture is an ordered unit of a module. Duration is in seconds.
type Lecture struct {
	ID        string    `db:"id" json:"id"`
	ModuleID  string    `db:"module_id" json:"module_id"`
	Title     string    `db:"title" json:"title"`
	VideoURL  string    `db:"video_url" json:"video_url"`
	Notes     string    `db:"notes" json:"notes"`
	Order     int       `db:"position" json:"order"`
	Duration  int       `db:"duration" json:"duration"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CourseFilter drives course listings.
type CourseFilter struct {
	Level         *CourseLevel
	CategoryID    string
	MinPrice      *float64
	MaxPrice      *float64
	Search        string
	Ordering      string
	Page          int
	PageSize      int
	InstructorID  string
	PublishedOnly bool
}

// IsDefault reports whether the filter is the unfiltered first page, the
// only public listing that is cached.
func (f CourseFilter) IsDefault() bool {
	page, size := NormalizePage(f.Page, f.PageSize)
	return f.Level == nil && f.CategoryID == "" && f.MinPrice == nil && f.MaxPrice == nil &&
		f.Search == "" && f.Ordering == "" && f.InstructorID == "" && page == 1 && size == 20
}

// CourseListResult is the cacheable page of course listings.
type CourseListResult struct {
	Items      []CourseListItem `json:"items"`
	Pagination Pagination       `json:"pagination"`
}

// CategoryRequest creates or renames a category. Slug is derived when empty.
type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"omitempty,max=100"`
}

// CreateCourseRequest creates a course owned by the caller.
type CreateCourseRequest struct {
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description"`
	Price       float64     `json:"price" validate:"gte=0"`
	Level       CourseLevel `json:"level" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	CategoryID  *string     `json:"category_id" validate:"omitempty,uuid"`
	IsPublished bool        `json:"is_published"`
}

// UpdateCourseRequest patches course fields; nil fields are left unchanged.
type UpdateCourseRequest struct {
	Title       *string      `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string      `json:"description"`
	Price       *float64     `json:"price" validate:"omitempty,gte=0"`
	Level       *CourseLevel `json:"level" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	CategoryID  *string      `json:"category_id" validate:"omitempty"`
	IsPublished *bool        `json:"is_published"`
}

// ModuleRequest creates or patches a module.
type ModuleRequest struct {
	Title *string `json:"title" validate:"omitempty,min=1,max=200"`
	Order *int    `json:"order" validate:"omitempty,gte=0"`
}

// LectureRequest creates or patches a lecture.
type LectureRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=200"`
	VideoURL *string `json:"video_url" validate:"omitempty,url"`
	Notes    *string `json:"notes"`
	Order    *int    `json:"order" validate:"omitempty,gte=0"`
	Duration *int    `json:"duration" validate:"omitempty,gte=0"`
}
