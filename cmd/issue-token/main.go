package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/garyjia/site-qms/internal/config"
	httpserver "github.com/garyjia/site-qms/internal/interfaces/http"
)

// Prints a bearer token signed with the configured secret, for local use.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	userID := flag.String("user", "", "user id placed in the sub claim")
	role := flag.String("role", "", "optional system role (admin, super_admin)")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	auth := httpserver.NewAuthenticator(httpserver.AuthConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
	})

	token, err := auth.IssueToken(*userID, *role, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
}
