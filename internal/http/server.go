package httpapi

import (
	"context"
	"net/http"
	"time"

	"scriptportal-backend-go/internal/config"
	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/gzhttp"
)

type Server struct {
	DB       *sqlx.DB
	Config   config.Config
	Tokens   services.TokenService
	Storage  services.Storage
	Reviews  *services.Reviews
	Contacts *services.Contacts
	Notifier *services.Notifier
	Payments services.PaymentClient
	Hub      *services.DashboardHub
	// Tiers is the catalog used when the pricing_tiers setting is absent.
	Tiers []models.Tier
	Now   func() time.Time
}

func NewTokenService(cfg config.Config) services.TokenService {
	return services.TokenService{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  time.Duration(cfg.AccessTTLSeconds) * time.Second,
		RefreshTTL: time.Duration(cfg.RefreshTTLSeconds) * time.Second,
	}
}

func NewServer(db *sqlx.DB, cfg config.Config, reviews *services.Reviews, contacts *services.Contacts, hub *services.DashboardHub, tiers []models.Tier) *Server {
	tokens := NewTokenService(cfg)
	storage := services.Storage{
		BasePath:      cfg.StoragePath,
		PublicBaseURL: cfg.PublicBaseURL,
		Tokens:        tokens,
		SignedTTL:     time.Duration(cfg.SignedURLTTLSeconds) * time.Second,
	}
	if reviews != nil {
		reviews.Storage = storage
	}
	if len(tiers) == 0 {
		tiers = services.DefaultTiers
	}
	return &Server{
		DB:       db,
		Config:   cfg,
		Tokens:   tokens,
		Storage:  storage,
		Reviews:  reviews,
		Contacts: contacts,
		Notifier: &services.Notifier{
			DB:            db,
			SMTP:          cfg.SMTP,
			Sender:        services.SMTPSender{},
			PublicBaseURL: cfg.PublicBaseURL,
		},
		Payments: services.PaymentClient{
			URL:        cfg.PaymentFunctionURL,
			HTTPClient: &http.Client{Timeout: 15 * time.Second},
		},
		Hub:   hub,
		Tiers: tiers,
	}
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Secret"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

		api.Route("/public", func(pub chi.Router) {
			pub.Get("/tiers", s.PublicTiers)
			pub.Post("/discounts/apply", s.ApplyDiscount)
			pub.Post("/scripts", s.SubmitScript)
			pub.Post("/contacts", s.SubmitContact)
			pub.Post("/payments/webhook", s.PaymentWebhook)
		})

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/admin/login", s.AdminLogin)
			auth.Post("/contractor/login", s.ContractorLogin)
			auth.Post("/contractor/signup", s.ContractorSignup)
			auth.Post("/refresh", s.Refresh)
			auth.Post("/logout", s.Logout)
		})

		api.Route("/contractor", func(c chi.Router) {
			c.Use(WithAuth(s.Tokens))
			c.Use(RequireRole(services.RoleContractor))
			c.Get("/me", s.ContractorMe)
			c.Get("/scripts", s.ContractorScripts)
			c.Post("/scripts/{scriptId}/workspace", s.OpenWorkspace)
			c.Route("/reviews/{reviewId}", func(rv chi.Router) {
				rv.Get("/notes", s.ListNotes)
				rv.Put("/notes/{page}", s.SavePageNote)
				rv.Put("/rubric", s.SaveRubric)
				rv.Get("/pages/{page}/rubric", s.GetPageRubric)
				rv.Put("/pages/{page}/rubric", s.SavePageRubric)
				rv.Post("/submit", s.SubmitReview)
			})
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(WithAuth(s.Tokens))
			admin.Use(RequireRole(services.RoleAdmin))
			admin.Get("/dashboard", s.AdminDashboard)
			admin.Get("/activity", s.AdminActivity)
			admin.Get("/metrics/history", s.MetricsHistory)

			admin.Route("/scripts", func(scripts chi.Router) {
				scripts.Get("/", s.AdminListScripts)
				scripts.Get("/{scriptId}", s.AdminGetScript)
				scripts.Delete("/{scriptId}", s.AdminDeleteScript)
				scripts.Put("/{scriptId}/assignment", s.AdminAssignScript)
				scripts.Put("/{scriptId}/status", s.AdminSetScriptStatus)
				scripts.Get("/{scriptId}/download", s.AdminDownloadScript)
				scripts.Get("/{scriptId}/reviews", s.AdminScriptReviews)
			})
			admin.Get("/reviews/{reviewId}", s.AdminReviewDetail)
			admin.Get("/reviews/{reviewId}/export", s.AdminExportReview)

			admin.Route("/contractors", func(contractors chi.Router) {
				contractors.Get("/", s.AdminListContractors)
				contractors.Put("/{contractorId}/status", s.AdminSetContractorStatus)
				contractors.Delete("/{contractorId}", s.AdminDeleteContractor)
			})

			admin.Route("/contacts", func(contacts chi.Router) {
				contacts.Get("/", s.AdminListContacts)
				contacts.Post("/sync", s.AdminSyncContacts)
				contacts.Put("/{contactId}/status", s.AdminSetContactStatus)
				contacts.Delete("/{contactId}", s.AdminDeleteContact)
			})

			admin.Route("/settings", func(settings chi.Router) {
				settings.Get("/", s.AdminListSettings)
				settings.Get("/{key}", s.AdminGetSetting)
				settings.Put("/{key}", s.AdminPutSetting)
			})
		})
	})

	r.Get("/storage/signed", s.SignedDownload)
	r.With(WithAuth(s.Tokens), RequireRole(services.RoleAdmin)).Get("/storage/{bucket}/{key}", s.StorageObject)
	r.Get("/ws/dashboard", s.DashboardSocket)
	return r
}
