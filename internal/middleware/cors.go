package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/platformhub/platformhub/internal/config"
)

var defaultCORSMethods = []string{
	http.MethodOptions, http.MethodGet, http.MethodPost, http.MethodPut,
}

// CORSConfig translates the configured origins into a gin-contrib/cors
// config. A "*" origin allows any origin without credentials.
func CORSConfig(cfg config.CORSConfig) cors.Config {
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	cc := cors.Config{
		AllowMethods:  methods,
		AllowHeaders:  []string{"Authorization", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, "Content-Disposition", "ETag"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	cc.AllowOrigins = cfg.AllowedOrigins
	cc.AllowCredentials = true
	return cc
}

// CORSMiddleware returns the CORS handler, or nil when no origins are
// configured.
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	if len(cfg.AllowedOrigins) == 0 {
		return nil
	}
	return cors.New(CORSConfig(cfg))
}
