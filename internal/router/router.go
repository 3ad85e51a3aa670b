package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing

	"github.com/renft/marketplace/internal/handler"    // handlers implementing the endpoints
	"github.com/renft/marketplace/internal/middleware" // JWT authentication middleware
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems use this to verify the
	// service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the account endpoints under /v1/auth. Register and
// login issue access tokens whose subject is the caller's account address.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// RegisterViews registers the public read-only projections. The caller may
// wrap the group with the response cache middleware; none of these
// endpoints mutate state.
func RegisterViews(e *echo.Echo, v *handler.ViewHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1", mw...)
	g.GET("/listings", v.ListListings)
	g.GET("/listings/:id", v.GetListing)
	g.GET("/listings/:id/expired", v.IsExpired)
	g.GET("/listings/:id/history", v.History)
	g.GET("/assets/:collection/:token/listing", v.GetListingByAsset)
	g.GET("/time", v.CurrentTime)
}

// RegisterMarket registers the lifecycle and wallet endpoints. All of them
// require a valid access token; the JWT middleware injects the caller's
// account address into the context.
func RegisterMarket(e *echo.Echo, m *handler.MarketHandler, w *handler.WalletHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))

	// Lifecycle operations
	g.POST("/listings", m.List)
	g.DELETE("/listings/:id", m.Delist)
	g.POST("/listings/:id/lease", m.LeaseIn)
	g.POST("/listings/:id/repay", m.Repay)
	g.POST("/listings/:id/liquidate", m.Liquidate)

	// Wallet and approval endpoints
	g.PUT("/approvals", w.SetApproval)
	g.GET("/approvals", w.GetApproval)
	g.GET("/balance", w.Balance)

	// Seeding endpoints; handlers 404 unless dev endpoints are enabled
	g.POST("/dev/mint", w.Mint)
	g.POST("/dev/faucet", w.Faucet)
}
