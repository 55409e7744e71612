// Command createuser adds a user to the configured credential store, or
// resets the password of an existing one.
//
//	createuser -username admin -password 's3cret' -role admin
//	createuser -username admin -password 'n3w' -reset
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/dunes-blog/internal/auth"
	"github.com/hongminglow/dunes-blog/internal/config"
	"github.com/hongminglow/dunes-blog/internal/models"
	"github.com/hongminglow/dunes-blog/internal/server"
	"github.com/hongminglow/dunes-blog/internal/storage"
)

func main() {
	username := flag.String("username", "", "username to create or update")
	password := flag.String("password", "", "plaintext password; hashed before storing")
	role := flag.String("role", models.RoleUser, "role for a new user (admin or user)")
	reset := flag.Bool("reset", false, "replace the password of an existing user instead of creating one")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Read()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.ValidateStore(); err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	msg, err := run(ctx, store, *username, *password, *role, *reset)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		store.Close()
		os.Exit(1)
	}
	fmt.Println(msg)
}

func run(ctx context.Context, store storage.UserStore, username, password, role string, reset bool) (string, error) {
	if username == "" || password == "" {
		return "", errors.New("-username and -password are required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	if reset {
		user, err := store.FindByUsername(ctx, username)
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("user %q does not exist", username)
		}
		if err != nil {
			return "", fmt.Errorf("find user: %w", err)
		}
		if err := store.UpdatePassword(ctx, user.ID, hash); err != nil {
			return "", fmt.Errorf("update password: %w", err)
		}
		return fmt.Sprintf("password updated for %s", username), nil
	}

	if !models.ValidRole(role) {
		return "", fmt.Errorf("role must be %q or %q", models.RoleAdmin, models.RoleUser)
	}
	created, err := store.CreateUser(ctx, models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return "", fmt.Errorf("user %q already exists; use -reset to change the password", username)
	}
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return fmt.Sprintf("created %s user %s (id %s)", created.Role, created.Username, created.ID), nil
}
