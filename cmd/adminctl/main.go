// Command adminctl provisions users directly against the database. There is
// no self-service registration endpoint; accounts are created by an
// operator with database access.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/propertyhub/docgate/internal/server/auth"
	"github.com/propertyhub/docgate/internal/server/authz"
	"github.com/propertyhub/docgate/internal/server/config"
	"github.com/propertyhub/docgate/internal/server/repositories/repomanager"
)

func main() {
	var (
		email = flag.String("email", "", "e-mail address of the new user")
		role  = flag.String("role", "staff", "role of the new user (superadmin, admin, staff, user)")
		dsn   = flag.String("d", "", "database DSN (defaults to server config)")
	)
	flag.Parse()

	if err := run(*email, authz.Role(*role), *dsn); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(email string, role authz.Role, dsn string) error {
	if email == "" {
		return fmt.Errorf("-email is required")
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q, valid roles: %s", role, strings.Join(roleNames(), ", "))
	}

	cfg := &config.Config{}
	cfg.LoadDefaults()
	if dsn != "" {
		cfg.DatabaseDSN = dsn
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	svc, err := auth.NewService(db, rm, cfg)
	if err != nil {
		return err
	}

	user, err := svc.Register(ctx, email, password, role)
	if err != nil {
		return err
	}

	fmt.Printf("created user %s (%s, %s)\n", user.ID, user.Email, user.Role)
	return nil
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Print("Repeat password: ")
	repeat, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(password) != string(repeat) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(password) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(password), nil
}

func roleNames() []string {
	roles := authz.Roles()
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return names
}
