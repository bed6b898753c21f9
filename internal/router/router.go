package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/edupanel/institute-api/internal/handler"
	"github.com/edupanel/institute-api/internal/middleware"
	"github.com/edupanel/institute-api/internal/models"
	"github.com/edupanel/institute-api/internal/service"
	"github.com/edupanel/institute-api/pkg/config"
	"github.com/edupanel/institute-api/pkg/logger"
	corsmiddleware "github.com/edupanel/institute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edupanel/institute-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers wired into the router.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Courses       *handler.CourseHandler
	Registrations *handler.RegistrationHandler
	Enrollments   *handler.EnrollmentHandler
	Payments      *handler.PaymentHandler
	Academics     *handler.AcademicsHandler
}

// DefaultRouteConfig declares the access policy for the API surface.
// The prefix role table only covers groups with a uniform role set;
// routes with per-record access (SELF reads, student ownership) rely on
// RequireRoles instead so the gate does not reject them wholesale.
func DefaultRouteConfig() middleware.RouteConfig {
	return middleware.RouteConfig{
		Public: []string{
			"/health",
			"/ready",
			"/metrics",
			"/docs*",
			"/api/v1/auth/login",
			"/api/v1/auth/register",
			"/api/v1/auth/refresh",
		},
		Roles: map[string][]models.UserRole{
			"/api/v1/submissions": {models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin},
			"/api/v1/materials":   {models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin},
		},
		LoginPath:        "/login",
		UnauthorizedPath: "/unauthorized",
	}
}

// New assembles the gin engine with the full middleware chain and routes.
func New(cfg *config.Config, logr *zap.Logger, gate *middleware.AuthGate, metricsSvc *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(gate.Handler())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/register", h.Auth.Register)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)
		auth.POST("/change-password", h.Auth.ChangePassword)
		auth.GET("/me", h.Auth.Me)
	}

	users := api.Group("/users")
	{
		users.GET("", middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "STAFF"), h.Users.List)
		users.POST("", middleware.RequireRoles("SUPER_ADMIN", "ADMIN"), h.Users.Create)
		users.GET("/:id", middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "STAFF", "SELF"), h.Users.Get)
		users.PATCH("/:id", middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "SELF"), h.Users.Update)
		users.PATCH("/:id/status", middleware.RequireRoles("SUPER_ADMIN", "ADMIN"), h.Users.ChangeStatus)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", h.Courses.List)
		courses.GET("/:id", h.Courses.Get)
		courses.POST("", middleware.RequireRoles("SUPER_ADMIN", "ADMIN"), h.Courses.Create)
		courses.PATCH("/:id", middleware.RequireRoles("SUPER_ADMIN", "ADMIN"), h.Courses.Update)
		courses.GET("/:id/batches", h.Courses.ListBatches)
		courses.POST("/:id/batches", middleware.RequireRoles("SUPER_ADMIN", "ADMIN"), h.Courses.CreateBatch)
	}

	batches := api.Group("/batches")
	{
		batches.GET("/:id", h.Courses.GetBatch)
		batches.PATCH("/:id", middleware.RequireRoles("SUPER_ADMIN", "ADMIN"), h.Courses.UpdateBatch)
		batches.GET("/:id/assignments", h.Academics.ListAssignments)
		batches.POST("/:id/assignments", middleware.RequireRoles("TEACHER", "ADMIN", "SUPER_ADMIN"), h.Academics.CreateAssignment)
		batches.GET("/:id/materials", h.Academics.ListMaterials)
		batches.POST("/:id/materials", middleware.RequireRoles("TEACHER", "ADMIN", "SUPER_ADMIN"), h.Academics.CreateMaterial)
	}

	assignments := api.Group("/assignments")
	{
		assignments.DELETE("/:id", middleware.RequireRoles("TEACHER", "ADMIN", "SUPER_ADMIN"), h.Academics.ArchiveAssignment)
		assignments.GET("/:id/submissions", middleware.RequireRoles("TEACHER", "ADMIN", "SUPER_ADMIN"), h.Academics.ListSubmissions)
		assignments.POST("/:id/submissions", middleware.RequireRoles("STUDENT"), h.Academics.Submit)
	}

	submissions := api.Group("/submissions")
	{
		submissions.PATCH("/:id/grade", middleware.RequireRoles("TEACHER", "ADMIN", "SUPER_ADMIN"), h.Academics.Grade)
	}

	materials := api.Group("/materials")
	{
		materials.DELETE("/:id", middleware.RequireRoles("TEACHER", "ADMIN", "SUPER_ADMIN"), h.Academics.ArchiveMaterial)
	}

	registrations := api.Group("/registrations")
	{
		registrations.POST("", middleware.RequireRoles("STUDENT"), h.Registrations.Create)
		registrations.GET("", h.Registrations.List)
		registrations.GET("/export", middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "STAFF", "FINANCE"), h.Registrations.Export)
		registrations.GET("/:id", h.Registrations.Get)
		registrations.PATCH("/:id/academic-review", middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "STAFF"), h.Registrations.AcademicReview)
		registrations.PATCH("/:id/financial-verify", middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "FINANCE"), h.Registrations.FinancialVerify)
		registrations.PATCH("/:id/final-approve", middleware.RequireRoles("SUPER_ADMIN", "ADMIN"), h.Registrations.FinalApprove)
		registrations.PATCH("/:id/reject", middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "STAFF", "FINANCE"), h.Registrations.Reject)
	}

	enrollments := api.Group("/enrollments")
	{
		enrollments.GET("", h.Enrollments.List)
		enrollments.GET("/export", middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "STAFF"), h.Enrollments.Export)
		enrollments.GET("/:id", h.Enrollments.Get)
		enrollments.POST("", middleware.RequireRoles("SUPER_ADMIN", "ADMIN"), h.Enrollments.Create)
		enrollments.PATCH("/:id/status", middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "STAFF"), h.Enrollments.UpdateStatus)
	}

	payments := api.Group("/payments")
	{
		payments.POST("", middleware.RequireRoles("STUDENT"), h.Payments.Submit)
		payments.GET("", h.Payments.List)
		payments.GET("/:id", h.Payments.Get)
		payments.GET("/:id/receipt", h.Payments.Receipt)
		payments.PATCH("/:id/review", middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "FINANCE"), h.Payments.Review)
	}

	return r
}
