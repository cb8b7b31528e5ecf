// gentoken mints a development JWT for exercising the API by hand:
//
//	go run ./cmd/gentoken -tenant <uuid> -user <uuid> -role supervisor
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tillcore/internal/config"
	"tillcore/internal/middleware"
)

func main() {
	tenant := flag.String("tenant", uuid.NewString(), "tenant id")
	user := flag.String("user", uuid.NewString(), "user id")
	role := flag.String("role", "cashier", "cashier | supervisor | admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	claims := middleware.JWTClaims{
		TenantID: *tenant,
		UserID:   *user,
		Role:     *role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(cfg.JWTExpirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
