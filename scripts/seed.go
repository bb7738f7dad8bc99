//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/registry"
	"github.com/hugh/agricoop/internal/tenancy"
	"github.com/hugh/agricoop/pkg/config"
	"github.com/hugh/agricoop/pkg/util"
)

// Seeds two demo cooperatives that share a partner national id, which is
// the quickest way to see per-tenant keys at work.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "Demo-pass1!"
	}

	grant, err := tenancy.GrantAdmin(logger, "seed", "demo data")
	if err != nil {
		log.Fatalf("failed to issue admin grant: %v", err)
	}
	reg := registry.New(db, registry.Options{
		Reserved: cfg.Tenancy.IsReserved,
		Logger:   logger,
	})
	partners, err := database.NewAdminRepository[models.Partner](db, nil, grant)
	if err != nil {
		log.Fatalf("failed to build admin repository: %v", err)
	}

	ctx := context.Background()
	for _, sub := range []string{"coopa", "coopb"} {
		result, err := reg.Provision(ctx, grant, registry.ProvisionInput{
			Subdomain:     sub,
			Name:          "Demo " + sub,
			Plan:          models.PlanBasic,
			OwnerEmail:    "owner@" + sub + ".example.com",
			OwnerName:     "Owner " + sub,
			OwnerPassword: password,
		})
		if err != nil {
			if errors.Is(err, registry.ErrSubdomainTaken) {
				fmt.Printf("Cooperative already exists: %s\n", sub)
				continue
			}
			log.Fatalf("failed to provision %s: %v", sub, err)
		}

		owner, err := grant.OwnerOf(result.Organization.ID)
		if err != nil {
			log.Fatalf("failed to own %s: %v", sub, err)
		}
		if err := partners.Create(ctx, owner, models.NewPartner(owner, "12345678", "Juan Pérez", models.PartnerMember)); err != nil {
			log.Fatalf("failed to create partner in %s: %v", sub, err)
		}

		fmt.Printf("Cooperative %s created\n", sub)
		fmt.Printf("  Owner: %s / %s\n", result.Owner.Email, password)
		fmt.Printf("  Try:   curl -H 'X-Tenant-Subdomain: %s' ...\n", sub)
	}
}
