package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	assignmentdomain "github.com/smallbiznis/fieldops/internal/assignment/domain"
	authdomain "github.com/smallbiznis/fieldops/internal/auth/domain"
	"github.com/smallbiznis/fieldops/internal/auth/session"
	"github.com/smallbiznis/fieldops/internal/authorization"
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	catalogdomain "github.com/smallbiznis/fieldops/internal/catalog/domain"
	"github.com/smallbiznis/fieldops/internal/config"
	customerdomain "github.com/smallbiznis/fieldops/internal/customer/domain"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/internal/observability"
	obsmiddleware "github.com/smallbiznis/fieldops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fieldops/internal/observability/metrics"
	obstracing "github.com/smallbiznis/fieldops/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	paymentdomain "github.com/smallbiznis/fieldops/internal/payment/domain"
	"github.com/smallbiznis/fieldops/internal/payment/webhook"
	"github.com/smallbiznis/fieldops/internal/ratelimit"
	"github.com/smallbiznis/fieldops/internal/realtime"
	techniciandomain "github.com/smallbiznis/fieldops/internal/technician/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	}
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range origins {
		if strings.TrimSpace(origin) == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// webhookHandler verifies and applies a provider delivery.
type webhookHandler interface {
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	ops     *config.OperationsConfigHolder
	log     *zap.Logger
	metrics *obsmetrics.Metrics

	verifier authdomain.Verifier
	sessions *session.Manager
	authzSvc authorization.Service

	orderSvc        orderdomain.Service
	assignmentSvc   assignmentdomain.Service
	jobCardSvc      jobcarddomain.Service
	calendarSvc     calendardomain.Service
	customerSvc     customerdomain.Service
	technicianSvc   techniciandomain.Service
	catalogSvc      catalogdomain.Service
	notificationSvc notificationdomain.Service
	paymentSvc      paymentdomain.Service
	webhooks        webhookHandler

	hub          *realtime.Hub
	publicOrders *ratelimit.PublicOrderLimiter
}

type ServerParams struct {
	fx.In

	Gin  *gin.Engine
	Cfg  config.Config
	Ops  *config.OperationsConfigHolder
	Log  *zap.Logger
	Hub  *realtime.Hub
	Auth authdomain.Verifier

	Sessions        *session.Manager
	AuthzSvc        authorization.Service
	OrderSvc        orderdomain.Service
	AssignmentSvc   assignmentdomain.Service
	JobCardSvc      jobcarddomain.Service
	CalendarSvc     calendardomain.Service
	CustomerSvc     customerdomain.Service
	TechnicianSvc   techniciandomain.Service
	CatalogSvc      catalogdomain.Service
	NotificationSvc notificationdomain.Service
	PaymentSvc      paymentdomain.Service
	Webhooks        *webhook.Service

	PublicOrders *ratelimit.PublicOrderLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics           `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		ops:             p.Ops,
		log:             p.Log.Named("http.server"),
		metrics:         p.ObsMetrics,
		verifier:        p.Auth,
		sessions:        p.Sessions,
		authzSvc:        p.AuthzSvc,
		orderSvc:        p.OrderSvc,
		assignmentSvc:   p.AssignmentSvc,
		jobCardSvc:      p.JobCardSvc,
		calendarSvc:     p.CalendarSvc,
		customerSvc:     p.CustomerSvc,
		technicianSvc:   p.TechnicianSvc,
		catalogSvc:      p.CatalogSvc,
		notificationSvc: p.NotificationSvc,
		paymentSvc:      p.PaymentSvc,
		webhooks:        p.Webhooks,
		hub:             p.Hub,
		publicOrders:    p.PublicOrders,
	}

	svc.registerRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.POST("/webhooks/payments/:provider", s.HandlePaymentWebhook)

	api := s.engine.Group("/api", s.Authenticate())
	s.registerPublicRoutes(api)

	authed := api.Group("", s.RequireAuthenticated())
	s.registerOrderRoutes(authed)
	s.registerJobCardRoutes(authed)
	s.registerPaymentRoutes(authed)
	s.registerDirectoryRoutes(authed)
	s.registerCatalogRoutes(authed)
	s.registerNotificationRoutes(authed)
	s.registerStreamRoutes(authed)
}

func (s *Server) registerPublicRoutes(api *gin.RouterGroup) {
	public := api.Group("/public")
	public.POST("/orders",
		s.authorize(authorization.ObjectOrder, authorization.ActionOrderCreate),
		s.PublicOrderRateLimit(),
		s.CreatePublicOrder,
	)

	catalog := api.Group("/catalog", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogView))
	catalog.GET("/categories", s.ListServiceCategories)
	catalog.GET("/items", s.ListServiceItems)
	catalog.GET("/items/:id", s.GetServiceItem)
}

func (s *Server) registerOrderRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")

	orders.POST("", s.authorize(authorization.ObjectOrder, authorization.ActionOrderCreate), s.CreateOrder)
	orders.GET("", s.authorize(authorization.ObjectOrder, authorization.ActionOrderView), s.ListOrders)
	orders.GET("/:id", s.authorize(authorization.ObjectOrder, authorization.ActionOrderView), s.GetOrder)
	orders.GET("/:id/history", s.authorize(authorization.ObjectOrder, authorization.ActionOrderView), s.ListOrderHistory)
	orders.POST("/:id/notes", s.authorize(authorization.ObjectOrder, authorization.ActionOrderNote), s.AddOrderNote)

	orders.POST("/:id/reschedule", s.authorize(authorization.ObjectOrder, authorization.ActionOrderReschedule), s.RescheduleOrder)
	orders.POST("/:id/status", s.authorize(authorization.ObjectOrder, authorization.ActionOrderUpdateStatus), s.UpdateOrderStatus)
	orders.POST("/:id/cancellation-request", s.authorize(authorization.ObjectOrder, authorization.ActionOrderRequestCancel), s.RequestOrderCancellation)
	orders.POST("/:id/cancel", s.authorize(authorization.ObjectOrder, authorization.ActionOrderCancel), s.CancelOrder)
	orders.POST("/:id/additional-items/approve", s.authorize(authorization.ObjectOrder, authorization.ActionOrderDecide), s.ApproveAdditionalItems)
	orders.POST("/:id/additional-items/reject", s.authorize(authorization.ObjectOrder, authorization.ActionOrderDecide), s.RejectAdditionalItems)
	orders.POST("/:id/payment-status", s.authorize(authorization.ObjectOrder, authorization.ActionOrderOverridePayment), s.OverrideOrderPaymentStatus)
	orders.POST("/:id/rating", s.authorize(authorization.ObjectOrder, authorization.ActionOrderRate), s.RateOrder)

	orders.POST("/:id/media", s.authorize(authorization.ObjectOrder, authorization.ActionOrderMedia), s.UploadOrderMedia)
	orders.GET("/:id/media/:index", s.authorize(authorization.ObjectOrder, authorization.ActionOrderView), s.GetOrderMedia)
	orders.DELETE("/:id/media/:index", s.authorize(authorization.ObjectOrder, authorization.ActionOrderMedia), s.RemoveOrderMedia)

	orders.POST("/:id/assignment", s.authorize(authorization.ObjectAssignment, authorization.ActionAssign), s.AssignOrder)
	orders.GET("/:id/job-card", s.authorize(authorization.ObjectJobCard, authorization.ActionJobCardView), s.GetOrderJobCard)

	orders.GET("/:id/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListOrderPayments)
	orders.POST("/:id/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentRecord), s.RecordPayment)
	orders.POST("/:id/payments/initialize", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentPay), s.InitializePayment)
}

func (s *Server) registerJobCardRoutes(r *gin.RouterGroup) {
	cards := r.Group("/job-cards")

	cards.GET("/:id", s.authorize(authorization.ObjectJobCard, authorization.ActionJobCardView), s.GetJobCard)
	cards.GET("/:id/receipt", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentReceipt), s.DownloadReceipt)

	work := cards.Group("", s.authorize(authorization.ObjectJobCard, authorization.ActionJobCardWork))
	work.POST("/:id/check-in", s.CheckIn)
	work.POST("/:id/checkout", s.Checkout)
	work.POST("/:id/extra-work", s.AddExtraWork)
	work.DELETE("/:id/extra-work/:index", s.RemoveExtraWork)
	work.POST("/:id/spare-parts", s.AddSpareParts)
	work.DELETE("/:id/spare-parts/:index", s.RemoveSparePart)
	work.POST("/:id/complete", s.CompleteJob)

	cards.PUT("/:id/estimate", s.authorize(authorization.ObjectJobCard, authorization.ActionJobCardEstimate), s.UpdateEstimate)
}

func (s *Server) registerPaymentRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	payments.GET("/:id", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView), s.GetPayment)
	payments.POST("/:id/confirm", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentPay), s.ConfirmPayment)
}

func (s *Server) registerDirectoryRoutes(r *gin.RouterGroup) {
	technicians := r.Group("/technicians")
	technicians.POST("", s.authorize(authorization.ObjectTechnician, authorization.ActionTechnicianManage), s.CreateTechnician)
	technicians.GET("", s.authorize(authorization.ObjectTechnician, authorization.ActionTechnicianView), s.ListTechnicians)
	technicians.GET("/:id", s.authorize(authorization.ObjectTechnician, authorization.ActionTechnicianView), s.GetTechnician)
	technicians.PATCH("/:id/active", s.authorize(authorization.ObjectTechnician, authorization.ActionTechnicianManage), s.SetTechnicianActive)

	technicians.GET("/:id/schedule", s.authorize(authorization.ObjectCalendar, authorization.ActionCalendarView), s.GetTechnicianSchedule)
	technicians.GET("/:id/availability", s.authorize(authorization.ObjectCalendar, authorization.ActionCalendarView), s.GetTechnicianAvailability)
	technicians.PUT("/:id/weekly-hours", s.authorize(authorization.ObjectCalendar, authorization.ActionCalendarManage), s.SetWeeklyHours)
	technicians.PUT("/:id/day-overrides", s.authorize(authorization.ObjectCalendar, authorization.ActionCalendarManage), s.SetDayOverride)

	customers := r.Group("/customers")
	customers.POST("", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerManage), s.CreateCustomer)
	customers.GET("", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerView), s.ListCustomers)
	customers.GET("/:id", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerView), s.GetCustomerByID)
	customers.GET("/:id/addresses", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerView), s.ListCustomerAddresses)
	customers.POST("/:id/addresses", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerManage), s.AddCustomerAddress)

	me := r.Group("/me", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerSelf))
	me.GET("/profile", s.GetOwnProfile)
	me.GET("/addresses", s.ListOwnAddresses)
	me.POST("/addresses", s.AddOwnAddress)

	r.GET("/operations/config", s.authorize(authorization.ObjectOperations, authorization.ActionOperationsManage), s.GetOperationsConfig)
}

func (s *Server) registerCatalogRoutes(r *gin.RouterGroup) {
	catalog := r.Group("/catalog", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogManage))
	catalog.POST("/categories", s.CreateServiceCategory)
	catalog.POST("/items", s.CreateServiceItem)
	catalog.PATCH("/items/:id", s.UpdateServiceItem)
}

func (s *Server) registerNotificationRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationView))
	notifications.GET("", s.ListNotifications)
	notifications.POST("/:id/read", s.MarkNotificationRead)
}

func (s *Server) registerStreamRoutes(r *gin.RouterGroup) {
	streams := r.Group("/stream")
	streams.GET("/admins", s.authorize(authorization.ObjectRealtime, authorization.ActionRealtimeAdmins), s.StreamAdmins)
	streams.GET("/me", s.authorize(authorization.ObjectRealtime, authorization.ActionRealtimeUser), s.StreamUser)
	streams.GET("/orders/:id", s.authorize(authorization.ObjectRealtime, authorization.ActionRealtimeOrder), s.StreamOrder)
}
