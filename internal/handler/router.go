package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/noah-isme/ocms-api/internal/middleware"
	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	"github.com/noah-isme/ocms-api/internal/service"
	"github.com/noah-isme/ocms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ocms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ocms-api/pkg/middleware/requestid"
)

// RouterConfig carries everything NewRouter mounts. Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	APIPrefix   string
	EnableDocs  bool
	TraceName   string
	CORSOrigins []string

	Logger      *zap.Logger
	Metrics     *service.MetricsService
	Tokens      middleware.TokenValidator
	AuditWriter middleware.AuditWriter
	AuthLimiter *middleware.RateLimiter

	Auth       *AuthHandler
	Users      *UserHandler
	Categories *CategoryHandler
	Courses    *CourseHandler
	Curriculum *CurriculumHandler
	Enrollment *EnrollmentHandler
	Reviews    *ReviewHandler
	Dashboard  *DashboardHandler
	Reports    *ReportHandler
	Ops        *MetricsHandler
}

// NewRouter builds the gin engine with every API route.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if cfg.TraceName != "" {
		r.Use(otelgin.Middleware(cfg.TraceName))
	}
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.CORSOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.WithResponseMeta())

	if cfg.Ops != nil {
		r.GET("/health", cfg.Ops.Health)
		r.GET("/ready", cfg.Ops.Ready)
		r.GET("/metrics", cfg.Ops.Prometheus)
	}
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := strings.TrimRight(cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	authn := middleware.JWT(cfg.Tokens)
	requires := func(capability permission.Capability, extra ...gin.HandlerFunc) []gin.HandlerFunc {
		return append([]gin.HandlerFunc{authn, middleware.RequireCapability(capability)}, extra...)
	}
	audited := func(action, resource string) gin.HandlerFunc {
		if cfg.AuditWriter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.Audit(cfg.AuditWriter, cfg.Logger, action, resource)
	}

	if h := cfg.Auth; h != nil {
		auth := api.Group("/auth")
		if cfg.AuthLimiter != nil {
			auth.Use(cfg.AuthLimiter.Middleware())
		}
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)

		session := auth.Group("", authn)
		session.POST("/logout", h.Logout)
		session.GET("/profile", h.Profile)
		session.PUT("/profile", h.UpdateProfile)
		session.PATCH("/profile", h.UpdateProfile)
		session.POST("/change-password", h.ChangePassword)
	}

	if h := cfg.Users; h != nil {
		users := api.Group("/admin/users", requires(permission.ManageUsers)...)
		users.GET("", h.List)
		users.GET("/:id", h.Get)
		users.PATCH("/:id/status", h.UpdateStatus)
		users.PATCH("/:id/role", h.UpdateRole)
	}

	if h := cfg.Categories; h != nil {
		api.GET("/categories", h.List)
		api.GET("/categories/:id", h.Get)

		creators := api.Group("/categories", requires(permission.CreateCategories, audited(models.AuditActionCategoryWrite, "category"))...)
		creators.POST("", h.Create)

		managers := api.Group("/categories", requires(permission.ManageCategories, audited(models.AuditActionCategoryWrite, "category"))...)
		managers.PUT("/:id", h.Update)
		managers.PATCH("/:id", h.Update)
		managers.DELETE("/:id", h.Delete)
	}

	if h := cfg.Courses; h != nil {
		api.GET("/courses", h.ListPublished)
		api.GET("/courses/:id", h.GetPublished)
	}

	if h := cfg.Reviews; h != nil {
		api.GET("/courses/:id/reviews", h.List)
		api.GET("/courses/:id/rating", h.Rating)

		reviewers := api.Group("", requires(permission.WriteReviews)...)
		reviewers.POST("/courses/:id/reviews", h.Create)
		reviewers.POST("/courses/:id/reviews/create", h.Create)
		reviewers.GET("/reviews/my", h.Mine)
		reviewers.PUT("/reviews/:id", h.Update)
		reviewers.PATCH("/reviews/:id", h.Update)
		reviewers.DELETE("/reviews/:id", h.Delete)
	}

	if h := cfg.Enrollment; h != nil {
		api.Group("", requires(permission.EnrollCourses)...).POST("/enroll", h.Enroll)

		learners := api.Group("", requires(permission.TrackProgress)...)
		learners.GET("/my-courses", h.MyCourses)
		learners.GET("/my-progress", h.MyProgress)
		learners.GET("/course/:id/progress", h.CourseProgress)
		learners.POST("/lecture/:id/complete", h.CompleteLecture)
	}

	instructor := api.Group("/instructor", requires(permission.ManageCatalog)...)
	if h := cfg.Courses; h != nil {
		instructor.GET("/courses", h.ListMine)
		instructor.POST("/courses", h.Create)
		instructor.GET("/courses/:id", h.Get)
		instructor.PUT("/courses/:id", h.Update)
		instructor.PATCH("/courses/:id", h.Update)
		instructor.DELETE("/courses/:id", h.Delete)
	}
	if h := cfg.Curriculum; h != nil {
		instructor.GET("/courses/:id/modules", h.ListModules)
		instructor.POST("/courses/:id/modules", h.CreateModule)
		instructor.GET("/modules/:id", h.GetModule)
		instructor.PUT("/modules/:id", h.UpdateModule)
		instructor.PATCH("/modules/:id", h.UpdateModule)
		instructor.DELETE("/modules/:id", h.DeleteModule)
		instructor.GET("/modules/:id/lectures", h.ListLectures)
		instructor.POST("/modules/:id/lectures", h.CreateLecture)
		instructor.GET("/lectures/:id", h.GetLecture)
		instructor.PUT("/lectures/:id", h.UpdateLecture)
		instructor.PATCH("/lectures/:id", h.UpdateLecture)
		instructor.DELETE("/lectures/:id", h.DeleteLecture)
	}
	if h := cfg.Enrollment; h != nil {
		instructor.GET("/courses/:id/enrollments", h.Roster)
	}

	if h := cfg.Dashboard; h != nil {
		admin := api.Group("/admin", requires(permission.ViewAdminAnalytics)...)
		admin.GET("/analytics", h.AdminAnalytics)
		admin.GET("/top-courses", h.TopCourses)
		admin.GET("/recent-activity", h.RecentActivity)
		if cfg.Ops != nil {
			admin.GET("/system-metrics", cfg.Ops.System)
		}
		api.GET("/instructor/dashboard", requires(permission.ViewInstructorDashboard, h.Instructor)...)
		api.GET("/student/dashboard", requires(permission.ViewStudentDashboard, h.Student)...)
	}

	if h := cfg.Reports; h != nil {
		api.GET("/reports/download/:token", h.Download)
		api.POST("/reports", requires(permission.GenerateReports, audited(models.AuditActionReportCreate, "report"), h.Create)...)
		api.GET("/reports/:id", authn, h.Status)
		api.GET("/my-certificates/:course_id", requires(permission.TrackProgress, h.MyCertificate)...)
	}

	return r
}
