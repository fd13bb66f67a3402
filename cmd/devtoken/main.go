// Command devtoken mints an access token for local development. Production
// tokens come from the identity provider that shares the signing secret.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/phrazzld/batchgen/internal/config"
	"github.com/phrazzld/batchgen/internal/service/auth"
)

func main() {
	userFlag := flag.String("user", "", "user ID to embed (random when empty)")
	minutes := flag.Int("minutes", 60, "token lifetime in minutes")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("BATCHGEN_AUTH_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "BATCHGEN_AUTH_JWT_SECRET is not set")
		os.Exit(1)
	}

	userID := uuid.New()
	if *userFlag != "" {
		parsed, err := uuid.Parse(*userFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid user ID: %v\n", err)
			os.Exit(1)
		}
		userID = parsed
	}

	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            secret,
		TokenLifetimeMinutes: *minutes,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create token service: %v\n", err)
		os.Exit(1)
	}

	token, err := svc.GenerateToken(context.Background(), userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user:  %s\ntoken: %s\n", userID, token)
}
