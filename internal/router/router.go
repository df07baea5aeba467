// Package router registers the HTTP routes of the marketplace API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/adspace-marketplace/internal/handler"
	"github.com/iliyamo/adspace-marketplace/internal/middleware"
)

// Options carries the middleware shared across route groups.
type Options struct {
	JWTSecret string
	// Cache wraps the public read endpoints.  nil disables response caching.
	Cache echo.MiddlewareFunc
	// CanWrite gates mint and rent.
	CanWrite func() bool
	// UploadLimit is the body limit for /v1/uploads, e.g. "10M".
	UploadLimit string
	// RateLimit runs per group, after JWTAuth where a group has it, so
	// user-keyed strategies see the session.  nil disables it.
	RateLimit echo.MiddlewareFunc
}

func (o Options) limit(mw ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if o.RateLimit != nil {
		mw = append(mw, o.RateLimit)
	}
	return mw
}

// RegisterRoutes registers endpoints that need no session.
func RegisterRoutes(e *echo.Echo, canWrite func() bool) {
	e.GET("/healthz", handler.Health(canWrite))
}

// RegisterAuth registers the token endpoints under /v1/auth and the account
// endpoints under /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, opts Options) {
	g := e.Group("/v1/auth", opts.limit()...)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout accepts either a bearer or a refresh token, so no JWTAuth here.
	g.POST("/logout", a.Logout)

	me := e.Group("/v1/me", opts.limit(middleware.JWTAuth(opts.JWTSecret))...)
	me.GET("", a.Me)
	me.POST("/sync", a.Sync)
	me.DELETE("", a.DeleteMe)
}

// RegisterMarketplace registers the ad space endpoints.  Reads are public
// and cacheable; everything that spends money or pins content requires a
// session.
func RegisterMarketplace(e *echo.Echo, h *handler.AdSpaceHandler, opts Options) {
	cached := opts.limit()
	if opts.Cache != nil {
		cached = append(cached, opts.Cache)
	}
	pub := e.Group("/v1", cached...)
	pub.GET("/adspaces", h.List)
	pub.GET("/adspaces/:id", h.Get)
	pub.GET("/adspaces/:id/current-ad", h.CurrentAd)
	pub.GET("/adspaces/:id/rentals", h.Rentals)
	pub.GET("/dashboard/:address", h.Dashboard)
	e.POST("/v1/adspaces/:id/quote", h.Quote, opts.limit()...)

	auth := e.Group("/v1", opts.limit(middleware.JWTAuth(opts.JWTSecret))...)
	auth.GET("/my-rentals", h.MyRentals)
	auth.POST("/creatives", h.Creative)
	if opts.UploadLimit != "" {
		auth.POST("/uploads", h.Upload, echomw.BodyLimit(opts.UploadLimit))
	} else {
		auth.POST("/uploads", h.Upload)
	}

	writable := middleware.RequireWritable(opts.CanWrite)
	auth.POST("/adspaces", h.Mint, writable)
	auth.POST("/adspaces/:id/rent", h.Rent, writable)
}
