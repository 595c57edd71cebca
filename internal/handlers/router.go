package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/sessions"
	"github.com/mauricegift/jewell-haven-sub000/internal/auth"
	"github.com/mauricegift/jewell-haven-sub000/internal/checkout"
	"github.com/mauricegift/jewell-haven-sub000/internal/config"
	"github.com/mauricegift/jewell-haven-sub000/internal/invoice"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/notify"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
)

// Notifier is the part of notify.Notifier the handlers call directly. Order
// notifications go through the event bus instead.
type Notifier interface {
	SendOTP(ctx context.Context, m notify.OTPMessage) []notify.Result
	ContactReply(ctx context.Context, c *models.Contact, r *models.ContactReply) notify.Result
}

type Config struct {
	App      *config.Config
	Store    *store.Store
	Checkout *checkout.Service
	Tokens   *auth.TokenManager
	Notifier Notifier
	Invoices *invoice.Renderer
	Sessions sessions.Store

	// Limiter throttles the auth, contact and payment endpoints. A default
	// one is created when nil.
	Limiter *RateLimiter
}

// NewSessionStore builds the cookie store backing the guest cart.
func NewSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.CookieSecure
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Path = "/"
	sessionStore.Options.MaxAge = 30 * 24 * 60 * 60
	if cfg.CookieDomain != "" {
		sessionStore.Options.Domain = cfg.CookieDomain
	}
	return sessionStore
}

// NewRouter wires every route of the API.
func NewRouter(cfg *Config) http.Handler {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(context.Background(), 20, time.Minute)
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionStore(cfg.App)
	}

	authn := &Authenticator{Tokens: cfg.Tokens, Store: cfg.Store}
	home := &HomeHandler{Config: cfg}
	accounts := &AuthHandler{Config: cfg}
	carts := &CartHandler{Config: cfg}
	orders := &OrderHandler{Config: cfg}
	payments := &PaymentHandler{Config: cfg}
	contacts := &ContactHandler{Config: cfg}
	admin := &AdminHandler{Config: cfg}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware)
	router.Use(RecoverMiddleware(!cfg.App.IsProduction()))
	router.Use(middleware.StripSlashes)
	router.Use(SecurityHeadersMiddleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.App.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(OriginGuard(cfg.App.AllowedOrigin))

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", handle(home.health))

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(cfg.Limiter.Middleware)
				r.Post("/signup", handle(accounts.signup))
				r.Post("/verify", handle(accounts.verify))
				r.Post("/resend-otp", handle(accounts.resendOTP))
				r.Post("/login", handle(accounts.login))
				r.Post("/forgot-password", handle(accounts.forgotPassword))
				r.Post("/reset-password", handle(accounts.resetPassword))
			})
			r.With(authn.Authenticate).Get("/me", handle(accounts.me))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", handle(home.listProducts))
			r.Get("/categories", handle(home.categories))
			r.Get("/{id}", handle(home.getProduct))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(authn.Authenticate)
			r.Get("/", handle(carts.get))
			r.Post("/", handle(carts.add))
			r.Delete("/", handle(carts.clear))
			r.Patch("/{productId}", handle(carts.update))
			r.Delete("/{productId}", handle(carts.remove))
		})

		r.Route("/guest-cart", func(r chi.Router) {
			r.Use(guestCartCSRF(cfg.App))
			r.Get("/", handle(carts.guestGet))
			r.Post("/", handle(carts.guestAdd))
			r.Delete("/{productId}", handle(carts.guestRemove))
			r.With(authn.Authenticate).Post("/merge", handle(carts.guestMerge))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(cfg.Limiter.Middleware).Get("/track/{orderNumber}", handle(orders.track))
			r.Group(func(r chi.Router) {
				r.Use(authn.Authenticate)
				r.Post("/", handle(orders.create))
				r.Get("/", handle(orders.list))
				r.Get("/{id}", handle(orders.get))
				r.Post("/{id}/cancel", handle(orders.cancel))
				r.Get("/{id}/invoice", handle(orders.invoice))
			})
		})

		r.Route("/mpesa", func(r chi.Router) {
			r.Post("/callback", handle(payments.callback))
			r.Group(func(r chi.Router) {
				r.Use(authn.Authenticate)
				r.With(cfg.Limiter.Middleware).Post("/stkpush", handle(payments.stkPush))
				r.Post("/verify", handle(payments.verify))
			})
		})

		r.With(cfg.Limiter.Middleware).Post("/contact", handle(contacts.create))

		r.Route("/admin", func(r chi.Router) {
			r.Use(authn.Authenticate)
			r.Use(RequireAdmin)

			r.Get("/stats", handle(admin.stats))

			r.Get("/orders", handle(admin.listOrders))
			r.Get("/orders/{id}", handle(admin.getOrder))
			r.Patch("/orders/{id}/status", handle(admin.updateOrderStatus))
			r.Patch("/orders/{id}/payment-status", handle(admin.updatePaymentStatus))
			r.Delete("/orders/{id}", handle(admin.deleteOrder))

			r.Post("/products", handle(admin.createProduct))
			r.Put("/products/{id}", handle(admin.updateProduct))
			r.Delete("/products/{id}", handle(admin.deleteProduct))
			r.Post("/products/{id}/image", handle(admin.uploadProductImage))

			r.Get("/users", handle(admin.listUsers))
			r.With(RequireSuperAdmin).Patch("/users/{id}/role", handle(admin.updateUserRole))
			r.Delete("/users/{id}", handle(admin.deleteUser))

			r.Get("/contacts", handle(contacts.list))
			r.Patch("/contacts/{id}/status", handle(contacts.updateStatus))
			r.Post("/contacts/{id}/reply", handle(contacts.reply))
			r.Delete("/contacts/{id}", handle(contacts.delete))
		})
	})

	fileServer := http.FileServer(http.Dir(cfg.App.UploadDir))
	router.Handle("/static/uploads/*", http.StripPrefix("/static/uploads", fileServer))

	router.NotFound(handle(home.notFound))
	return router
}

// hostOf returns the host[:port] of a URL, as csrf.TrustedOrigins expects.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
