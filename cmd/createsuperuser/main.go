// createsuperuser creates an active staff superuser account.
//
//	go run ./cmd/createsuperuser -username admin -email admin@example.com
//	echo "$PASSWORD" | go run ./cmd/createsuperuser -username admin -email admin@example.com -password-stdin
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"signup-verify/internal/account/domain"
	accountrepo "signup-verify/internal/account/repository"
	accountservice "signup-verify/internal/account/service"
	"signup-verify/internal/config"
	"signup-verify/internal/db"
	"signup-verify/internal/security"
)

func main() {
	username := flag.String("username", "", "superuser username (required)")
	email := flag.String("email", "", "superuser email (required)")
	passwordStdin := flag.Bool("password-stdin", false, "read the password from the first line of stdin instead of prompting")
	flag.Parse()

	if *username == "" || *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadTool()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	var password string
	if *passwordStdin {
		password, err = readPasswordLine(os.Stdin)
	} else {
		password, err = promptPassword(os.Stdin, os.Stderr)
	}
	if err != nil {
		log.Fatalf("password: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	store := accountservice.NewAccountStore(
		accountrepo.NewPostgresRepository(conn),
		security.NewHasher(cfg.BcryptCost),
		accountservice.NewEmailChecker(false),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a, err := store.CreateSuperuser(ctx, *username, *email, password, accountservice.ExtraFields{})
	if err != nil {
		var ve *domain.ValidationError
		var ce *domain.ConflictError
		if errors.As(err, &ve) || errors.As(err, &ce) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log.Fatalf("create superuser: %v", err)
	}
	fmt.Fprintf(os.Stdout, "Superuser created: %s (%s)\n", a.Username, a.ID)
}

// errPasswordMismatch is returned when the two prompted passwords differ.
var errPasswordMismatch = errors.New("passwords do not match")

// promptPassword asks twice on the terminal without echo.
func promptPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !isTerminal(fd) {
		return "", errors.New("stdin is not a terminal; use -password-stdin")
	}
	first, err := readHidden(fd, out, "Password: ")
	if err != nil {
		return "", err
	}
	second, err := readHidden(fd, out, "Password (again): ")
	if err != nil {
		return "", err
	}
	return confirmPassword(first, second)
}

func confirmPassword(first, second string) (string, error) {
	if first != second {
		return "", errPasswordMismatch
	}
	if first == "" {
		return "", errors.New("password must not be empty")
	}
	return first, nil
}
