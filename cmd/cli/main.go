package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/auth"
	"github.com/mauricegift/jewell-haven-sub000/internal/config"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
	"github.com/mauricegift/jewell-haven-sub000/internal/store"
)

const usage = "expected 'add-admin' or 'migrate' subcommand"

func main() {
	addAdminCmd := flag.NewFlagSet("add-admin", flag.ExitOnError)
	email := addAdminCmd.String("email", "", "Email for the admin account")
	password := addAdminCmd.String("password", "", "Password for the admin account")
	name := addAdminCmd.String("name", "Admin", "Display name")
	phone := addAdminCmd.String("phone", "", "Phone number")
	role := addAdminCmd.String("role", string(models.RoleAdmin), "Role: admin or superadmin")

	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add-admin":
		addAdminCmd.Parse(os.Args[2:])
		if *email == "" || *password == "" {
			fmt.Println("email and password are required")
			addAdminCmd.PrintDefaults()
			os.Exit(1)
		}
		r := models.Role(*role)
		if !r.IsAdmin() {
			fmt.Println("role must be admin or superadmin")
			os.Exit(1)
		}
		db := openStore()
		defer db.Close()
		if err := addAdmin(db, *email, *password, *name, *phone, r); err != nil {
			log.Fatalf("Failed to add admin: %v", err)
		}
	case "migrate":
		migrateCmd.Parse(os.Args[2:])
		db := openStore()
		defer db.Close()
		fmt.Println("Migrations applied.")
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

// openStore opens the configured database and applies pending migrations so
// the CLI works before the server has ever run.
func openStore() *store.Store {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := store.NewStore(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// addAdmin creates a verified admin, or promotes and resets the password of
// an existing account with the same email.
func addAdmin(db *store.Store, email, password, name, phone string, role models.Role) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	existing, err := db.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		err = db.WithTx(ctx, func(tx *store.Store) error {
			if err := tx.SetUserRole(ctx, existing.ID, role); err != nil {
				return err
			}
			if err := tx.SetUserPassword(ctx, existing.ID, hash); err != nil {
				return err
			}
			return tx.SetUserVerified(ctx, existing.ID)
		})
		if err != nil {
			return err
		}
		fmt.Printf("User '%s' updated to %s.\n", existing.Email, role)
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	u := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsVerified:   true,
		Name:         name,
		Phone:        phone,
	}
	if err := db.CreateUser(ctx, u); err != nil {
		return err
	}
	fmt.Printf("User '%s' created with role %s.\n", u.Email, u.Role)
	return nil
}
