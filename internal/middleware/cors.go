package middleware

import (
	"net/http"

	corslib "github.com/rs/cors"
)

func CORS(allowedOrigins, allowedMethods []string) func(http.Handler) http.Handler {
	c := corslib.New(corslib.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: allowedMethods,
		AllowedHeaders: []string{"Content-Type", "Authorization", UserIDHeader},
		MaxAge:         86400,
	})
	return c.Handler
}
