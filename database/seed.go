package database

import (
	"context"
	"errors"
	"log"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
)

// DefaultPackages is the catalogue installed on an empty database
func DefaultPackages() []*models.Package {
	return []*models.Package{
		{PackageID: "home-10", Name: "Home", Speed: "10 Mbps", Price: 15000, Description: "For browsing and streaming at home", IsActive: true},
		{PackageID: "business-50", Name: "Business", Speed: "50 Mbps", Price: 50000, Description: "For small offices and shops", IsActive: true},
		{PackageID: "premium-100", Name: "Premium", Speed: "100 Mbps", Price: 80000, Description: "For heavy users and gamers", IsActive: true},
	}
}

// SeedPackages installs the default catalogue when no package is active
func SeedPackages(ctx context.Context, ref storage.ReferenceData) error {
	existing, err := ref.ActivePackages(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, p := range DefaultPackages() {
		if _, err := ref.CreatePackage(ctx, p); err != nil && !errors.Is(err, storage.ErrDuplicate) {
			return err
		}
	}
	log.Printf("🌱 Seeded %d packages", len(DefaultPackages()))
	return nil
}
