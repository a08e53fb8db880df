// Command seed fills an empty database with demo accounts and listings and
// prints a bearer token for each account.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/auth"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/config"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/db"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/money"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/user"
	"golang.org/x/crypto/bcrypt"
)

const demoPassword = "password123"

type demoListing struct {
	title     string
	price     string
	category  string
	condition string
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := context.Background()
	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}
	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash demo password")
	}

	users := user.NewRepository(pg.Pool)
	products := catalog.NewRepository(pg.Pool)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	accounts := []user.User{
		{Username: "admin", Email: "admin@example.com", Role: auth.RoleAdmin, FullName: "Site Admin"},
		{Username: "seller", Email: "seller@example.com", Role: auth.RoleSeller, FullName: "Sam Seller", Phone: "555-0101"},
		{Username: "buyer", Email: "buyer@example.com", Role: auth.RoleUser, FullName: "Bea Buyer", Phone: "555-0102", Address: "1 Main St"},
	}

	for i := range accounts {
		a := &accounts[i]
		a.PasswordHash = string(hash)
		if _, err := users.Create(ctx, a); err != nil {
			log.Fatal().Err(err).Str("username", a.Username).Msg("Failed to create demo user")
		}
	}
	sellerID := accounts[1].ID

	listings := []demoListing{
		{title: "Vintage film camera", price: "89.99", category: "electronics", condition: "good"},
		{title: "Paperback novel", price: "20.00", category: "books", condition: "like new"},
		{title: "Oak side table", price: "45.50", category: "furniture", condition: "fair"},
	}
	for _, l := range listings {
		p := &catalog.Product{
			SellerID:  sellerID,
			Title:     l.title,
			Price:     money.RequireAmount(l.price),
			Category:  l.category,
			Condition: l.condition,
		}
		if err := products.Create(ctx, p); err != nil {
			log.Fatal().Err(err).Str("title", l.title).Msg("Failed to create listing")
		}
		fmt.Printf("listing  %s  %s  %s\n", p.ID, l.price, l.title)
	}

	// Tokens carry the role as stored, not as requested.
	for _, a := range accounts {
		stored, err := users.GetByID(ctx, a.ID)
		if err != nil {
			log.Fatal().Err(err).Str("username", a.Username).Msg("Failed to read back demo user")
		}
		token, err := tokens.Sign(stored.Identity())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to sign token")
		}
		fmt.Printf("%-7s %s  Bearer %s\n", stored.Role, stored.ID, token)
	}
}
