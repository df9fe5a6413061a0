// Package main is the entry point for lexgate.
//
//	@title						lexgate API
//	@version					1.0
//	@description				AI request pipeline for legal guidance with plan-based rate limiting, moderation, caching, and usage tracking.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication (format: "Bearer {jwt}")
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	Execute()
}
