// Command adduser creates a user account directly in the database, prompting
// for the password on the terminal without echo. Intended for operators
// bootstrapping an installation.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/cliptide/cliptide/internal/server/config"
	"github.com/cliptide/cliptide/internal/server/repositories/repomanager"
	"github.com/cliptide/cliptide/internal/server/services"
)

func main() {
	var (
		dsn      string
		username string
		email    string
		fullName string
	)

	defaults := &config.Config{}
	defaults.LoadDefaults()

	flag.StringVar(&dsn, "d", defaults.DatabaseDSN, "database DSN")
	flag.StringVar(&username, "u", "", "username (required)")
	flag.StringVar(&email, "e", "", "email (required)")
	flag.StringVar(&fullName, "n", "", "full name")
	flag.Parse()

	if username == "" || email == "" {
		flag.Usage()
		os.Exit(2)
	}

	password, err := promptPassword()
	if err != nil {
		log.Fatalf("reading password: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	us := services.NewUserService(db, rm, defaults)
	user, err := us.Register(ctx, username, email, fullName, password)
	if err != nil {
		log.Fatalf("error creating user: %v", err)
	}

	fmt.Printf("created user %s (id=%s)\n", user.Username, user.ID)
}

func promptPassword() (string, error) {
	fmt.Print("Enter password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}

	fmt.Print("Repeat password: ")
	again, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}

	if string(pw) != string(again) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(pw) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(pw), nil
}
