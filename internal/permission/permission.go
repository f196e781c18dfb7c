// Package permission is the single place where role capabilities and
// resource ownership rules are decided.
package permission

import "github.com/noah-isme/ocms-api/internal/models"

// Capability names an action guarded by role.
type Capability string

const (
	ManageCatalog           Capability = "catalog:manage"
	CreateCategories        Capability = "categories:create"
	ManageCategories        Capability = "categories:manage"
	EnrollCourses           Capability = "enrollments:create"
	TrackProgress           Capability = "progress:track"
	WriteReviews            Capability = "reviews:write"
	ViewAdminAnalytics      Capability = "analytics:admin"
	ViewInstructorDashboard Capability = "dashboard:instructor"
	ViewStudentDashboard    Capability = "dashboard:student"
	ManageUsers             Capability = "users:manage"
	GenerateReports         Capability = "reports:generate"
)

// Actor is the authenticated principal a decision is made for.
type Actor struct {
	ID   string
	Role models.UserRole
}

// FromClaims builds an Actor from access token claims.
func FromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID, Role: claims.Role}
}

// Allows reports whether role grants capability. Unknown roles get nothing.
func Allows(role models.UserRole, capability Capability) bool {
	switch role {
	case models.RoleAdmin:
		switch capability {
		case EnrollCourses, TrackProgress, WriteReviews, ViewStudentDashboard:
			return false
		default:
			return true
		}
	case models.RoleInstructor:
		switch capability {
		case ManageCatalog, CreateCategories, ViewInstructorDashboard, GenerateReports:
			return true
		default:
			return false
		}
	case models.RoleStudent:
		switch capability {
		case EnrollCourses, TrackProgress, WriteReviews, ViewStudentDashboard:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// CanMutateCourse is true for admins and for the course's own instructor.
func CanMutateCourse(actor Actor, course *models.Course) bool {
	if course == nil {
		return false
	}
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleInstructor:
		return actor.ID != "" && course.InstructorID == actor.ID
	default:
		return false
	}
}

// IsReviewAuthor is true when actor wrote review.
func IsReviewAuthor(actor Actor, review *models.Review) bool {
	return review != nil && actor.ID != "" && review.StudentID == actor.ID
}

// CanViewReport is true for admins and for the user who requested the job.
func CanViewReport(actor Actor, job *models.ReportJob) bool {
	if job == nil {
		return false
	}
	return actor.Role == models.RoleAdmin || (actor.ID != "" && job.CreatedBy == actor.ID)
}
