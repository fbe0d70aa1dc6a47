package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/maribelle/sitterlink/internal/handler"    // handlers that implement business logic
	"github.com/maribelle/sitterlink/internal/middleware" // middleware for JWT auth and rate limiting
)

// RegisterRoutes registers routes that do not require authentication and are
// not part of the share/vault flows. Currently it exposes only a health
// check for load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers owner authentication routes. Unauthenticated
// operations live under /v1/auth; protected endpoints apply the JWT
// middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterShare registers the anonymous share-link routes. The unlock
// endpoint takes the rate limiter because a link password can be guessed.
func RegisterShare(e *echo.Echo, s *handler.ShareHandler, limiter echo.MiddlewareFunc) {
	e.GET("/v1/manual/:slug", s.Resolve)
	e.POST("/v1/manual/:slug/unlock", s.Unlock, limiter)
}

// RegisterVault registers the sitter-facing vault routes. All of them are
// anonymous (the access gate does the real authorization) and all sit
// behind the rate limiter: these are the brute-force surfaces.
func RegisterVault(e *echo.Echo, v *handler.VaultHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/trips/:id/vault", limiter)
	g.POST("/code", v.IssueCode)
	g.POST("/verify", v.VerifyCode)
	g.POST("/secrets/:secretId/reveal", v.RevealSecret)
	g.POST("/secrets/reveal", v.RevealAll)
}

// RegisterOwner registers JWT-protected owner routes: slug rotation, the
// audit view, and secret authoring.
func RegisterOwner(e *echo.Echo, o *handler.OwnerHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/trips/:id/link/rotate", o.RotateLink)
	g.GET("/properties/:id/audit", o.Audit)
	g.POST("/properties/:id/secrets", o.CreateSecret)
	g.PUT("/secrets/:id/value", o.UpdateSecretValue)
	g.PATCH("/secrets/:id", o.UpdateSecretMeta)
	g.DELETE("/secrets/:id", o.DeleteSecret)
}
