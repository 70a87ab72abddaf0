// Radar Admin
// Maintains user roles in the role database and mints capability tokens for
// local testing of the premium tier.
//
// Usage:
//
//	radar-admin create -user alice -role PREMIUM
//	radar-admin set-role -id 3 -role ADMIN
//	radar-admin token -id 3 -user alice
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/unklstewy/atc-radar/internal/auth"
	"github.com/unklstewy/atc-radar/internal/db"
	"github.com/unklstewy/atc-radar/internal/logging"
	"github.com/unklstewy/atc-radar/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}
	logging.Init(logging.Config{Level: "warn", Format: "console"})

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML configuration file")
	username := fs.String("user", "", "Username")
	userID := fs.Int("id", 0, "User id")
	roleName := fs.String("role", string(auth.RoleFree), "Role: FREE, PREMIUM or ADMIN")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "create":
		role, err := checkRole(*roleName)
		if err != nil || *username == "" {
			fmt.Fprintln(os.Stderr, "create needs -user and a valid -role")
			os.Exit(2)
		}
		withUsers(ctx, cfg.Database, func(users *db.UserRepository) error {
			id, err := users.Create(ctx, *username, string(role))
			if errors.Is(err, db.ErrUserExists) {
				return fmt.Errorf("user %q already exists", *username)
			}
			if err != nil {
				return err
			}
			fmt.Printf("✓ Created user %s (id %d) with role %s\n", *username, id, role)
			return nil
		})

	case "set-role":
		role, err := checkRole(*roleName)
		if err != nil || *userID <= 0 {
			fmt.Fprintln(os.Stderr, "set-role needs -id and a valid -role")
			os.Exit(2)
		}
		withUsers(ctx, cfg.Database, func(users *db.UserRepository) error {
			if err := users.SetRole(ctx, *userID, string(role)); err != nil {
				return err
			}
			fmt.Printf("✓ User %d is now %s\n", *userID, role)
			return nil
		})

	case "token":
		if *userID <= 0 {
			fmt.Fprintln(os.Stderr, "token needs -id")
			os.Exit(2)
		}
		if cfg.Auth.JWTSecret == "" {
			fmt.Fprintln(os.Stderr, "auth.jwt_secret (RADAR_AUTH_JWT_SECRET) is not set")
			os.Exit(1)
		}
		svc := auth.NewService(auth.Config{JWTSecret: cfg.Auth.JWTSecret, TokenDuration: *ttl})
		token, err := svc.GenerateToken(*userID, *username)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)

	default:
		printUsage()
		os.Exit(2)
	}
}

// checkRole rejects names that ParseRole would silently turn into FREE.
func checkRole(name string) (auth.Role, error) {
	role := auth.ParseRole(name)
	if !strings.EqualFold(strings.TrimSpace(name), string(role)) {
		return "", fmt.Errorf("unknown role %q", name)
	}
	return role, nil
}

func withUsers(ctx context.Context, cfg config.DatabaseConfig, fn func(*db.UserRepository) error) {
	database, err := db.Connect(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize schema: %v\n", err)
		os.Exit(1)
	}

	if err := fn(db.NewUserRepository(database.DB)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		database.Close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: radar-admin <create|set-role|token> [flags]")
	fmt.Println()
	fmt.Println("  create   -user NAME -role ROLE   add a user")
	fmt.Println("  set-role -id N -role ROLE        change a user's role")
	fmt.Println("  token    -id N [-user NAME]      print a capability token")
	fmt.Println()
	fmt.Println("Database and secret come from the usual RADAR_* configuration.")
}
