package server

import (
	"time"

	"github.com/etnz/finntra/assistant"
	"github.com/etnz/finntra/auth"
	"github.com/etnz/finntra/currency"
	"github.com/etnz/finntra/rates"
	"github.com/etnz/finntra/state"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// chatPath is open to any origin.
const chatPath = "/api/chat"

// RouterDependencies collects handler dependencies. Verifier, Registry,
// Rates and Converter are required; a nil Auth disables the sign-up and
// sign-in routes and a nil Assistant the chat route.
type RouterDependencies struct {
	Health         HealthService
	Auth           *auth.Client
	Verifier       *auth.Verifier
	Registry       *Registry
	Rates          *rates.Cache
	Converter      *currency.Converter
	Monitor        *state.Monitor
	Assistant      *assistant.Proxy
	AllowedOrigins []string
}

// NewRouter wires the HTTP routes exposed by the API.
func NewRouter(logger *zap.Logger, deps RouterDependencies) *gin.Engine {
	h := &handlers{
		logger:    logger,
		health:    deps.Health,
		auth:      deps.Auth,
		registry:  deps.Registry,
		rates:     deps.Rates,
		converter: deps.Converter,
		monitor:   deps.Monitor,
		now:       time.Now,
	}
	origins := newOriginSet(deps.AllowedOrigins)

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery(), requestLogger(logger), cors(origins, chatPath))

	r.GET("/healthz", h.healthz)
	if deps.Auth != nil {
		r.POST("/auth/signup", h.signUp)
		r.POST("/auth/signin", h.signIn)
	}

	public := r.Group("/api")
	{
		public.GET("/currencies", h.currencies)
		public.GET("/rates", h.listRates)
		public.GET("/convert", h.convert)
		public.GET("/connectivity", h.connectivity)
	}
	if deps.Assistant != nil {
		deps.Assistant.Register(r, chatPath)
	}

	api := r.Group("/api", authenticate(deps.Verifier))
	{
		api.DELETE("/session", h.signOut)
		api.GET("/snapshot", h.snapshot)
		api.POST("/refresh", h.refresh)

		api.POST("/transactions", h.addTransaction)
		api.PUT("/transactions/:id", h.updateTransaction)
		api.DELETE("/transactions/:id", h.deleteTransaction)

		api.POST("/banks", h.addBank)
		api.PUT("/banks/:id", h.updateBank)
		api.DELETE("/banks/:id", h.deleteBank)

		api.POST("/goals", h.addGoal)
		api.PUT("/goals/:id", h.updateGoal)
		api.DELETE("/goals/:id", h.deleteGoal)

		api.PATCH("/profile", h.updateProfile)
		api.POST("/profile/photo", h.uploadPhoto)
		api.PUT("/settings", h.updateSettings)

		api.GET("/report.pdf", h.reportPDF)
		api.GET("/report.html", h.reportHTML)
		api.POST("/import", h.importFile)
		api.GET("/ws", h.stream(newUpgrader(origins)))
	}
	return r
}
