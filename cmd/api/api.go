package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/docs" //this is required to generate swagger docs
	"storefront/internal/auth"
	"storefront/internal/domain/categories"
	"storefront/internal/domain/products"
	"storefront/internal/domain/storage"
	"storefront/internal/mailer"
	"storefront/internal/media"
	"storefront/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         *storage.Container
	categories    *categories.Service
	media         media.Store
	logger        *zap.SugaredLogger
	mailer        mailer.Client
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

type config struct {
	addr           string
	db             dbConfig
	env            string
	apiURL         string
	frontendURL    string
	cookieDomain   string
	requestTimeout time.Duration
	mail           mailConfig
	media          mediaConfig
	auth           authConfig
	rateLimiter    ratelimiter.Config
	redis          redisConfig
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	refreshSecret   string
	secret          string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
	iss             string
}

type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	otpExp    time.Duration
	fromEmail string
	smtp      smtpConfig
}

type smtpConfig struct {
	host     string
	port     int
	username string
	password string
}

type mediaConfig struct {
	cloudinaryURL string
	folder        string
}

type redisConfig struct {
	addr     string
	password string
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	if app.config.rateLimiter.Enabled && app.rateLimiter != nil {
		r.Use(app.RateLimiterMiddleware)
	}

	// Every route runs under the request timeout except the category
	// subtree delete, which carries its own deadline.
	timeout := app.config.requestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	withTimeout := middleware.Timeout(timeout)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(withTimeout)
			r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
			r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

			docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
			r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(withTimeout)
			r.Post("/register", app.registerUserHandler)
			r.Post("/verify-email", app.verifyEmailHandler)
			r.Post("/login", app.loginHandler)
			r.Post("/refresh-token", app.refreshTokenHandler)
			r.Post("/forgot-password", app.forgotPasswordHandler)
			r.Post("/verify-forgot-password-otp", app.verifyForgotPasswordOTPHandler)
			r.Post("/reset-password", app.resetPasswordHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Post("/logout", app.logoutHandler)
				r.Get("/user-details", app.userDetailsHandler)
				r.Put("/update-details", app.updateUserDetailsHandler)
				r.Put("/avatar", app.uploadAvatarHandler)
				r.Delete("/avatar", app.deleteAvatarHandler)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(withTimeout)
				r.Get("/", app.getCategoryTreeHandler)
				r.Get("/count", app.countRootCategoriesHandler)
				r.Get("/count/subcategories", app.countSubcategoriesHandler)
				r.Get("/{categoryID}", app.getCategoryHandler)

				r.Group(func(r chi.Router) {
					r.Use(app.AuthTokenMiddleware, app.RequireAdmin)
					r.Post("/upload-images", app.uploadCategoryImagesHandler)
					r.Delete("/images", app.removeCategoryImageHandler)
					r.Post("/", app.createCategoryHandler)
					r.Put("/{categoryID}", app.updateCategoryHandler)
				})
			})

			r.With(app.AuthTokenMiddleware, app.RequireAdmin).Delete("/{categoryID}", app.deleteCategoryHandler)
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(withTimeout)
			r.Get("/", app.listProductsHandler)
			r.Get("/count", app.countProductsHandler)
			r.Get("/featured", app.listFeaturedProductsHandler)
			r.Get("/by-price", app.listProductsByPriceHandler)
			r.Get("/by-rating", app.listProductsByRatingHandler)
			r.Get("/by-category/{catID}", app.listProductsByCategoryHandler(products.LevelCategory))
			r.Get("/by-subcategory/{catID}", app.listProductsByCategoryHandler(products.LevelSubCategory))
			r.Get("/by-third-category/{catID}", app.listProductsByCategoryHandler(products.LevelThirdCategory))
			r.Get("/by-category-name", app.listProductsByCategoryNameHandler(products.LevelCategory))
			r.Get("/by-subcategory-name", app.listProductsByCategoryNameHandler(products.LevelSubCategory))
			r.Get("/by-third-category-name", app.listProductsByCategoryNameHandler(products.LevelThirdCategory))
			r.Get("/{productID}", app.getProductHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware, app.RequireAdmin)
				r.Post("/upload-images", app.uploadProductImagesHandler)
				r.Post("/", app.createProductHandler)
				r.Put("/{productID}", app.updateProductHandler)
				r.Delete("/{productID}", app.deleteProductHandler)
				r.Delete("/{productID}/images", app.removeProductImageHandler)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(withTimeout, app.AuthTokenMiddleware)
			r.Post("/", app.addToCartHandler)
			r.Get("/", app.getCartHandler)
			r.Put("/{itemID}", app.updateCartItemHandler)
			r.Delete("/{itemID}", app.deleteCartItemHandler)
		})

		r.Route("/my-list", func(r chi.Router) {
			r.Use(withTimeout, app.AuthTokenMiddleware)
			r.Post("/", app.addToMyListHandler)
			r.Get("/", app.getMyListHandler)
			r.Delete("/{itemID}", app.deleteMyListItemHandler)
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
