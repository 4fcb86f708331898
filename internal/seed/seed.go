package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/fieldops/internal/catalog/domain"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, node *snowflake.Node, clk clock.Clock, log *zap.Logger) {
		if !cfg.SeedCatalog {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				created, err := EnsureCatalog(ctx, db, node, clk.Now())
				if err != nil {
					return err
				}
				log.Named("seed").Info("service catalog seeded", zap.Int("created", created))
				return nil
			},
		})
	}),
)

type itemSeed struct {
	code      string
	name      string
	basePrice int64
}

type categorySeed struct {
	code  string
	name  string
	items []itemSeed
}

var defaultCatalog = []categorySeed{
	{code: "ac", name: "Air Conditioning", items: []itemSeed{
		{code: "ac-service", name: "AC general service", basePrice: 49900},
		{code: "ac-gas-refill", name: "AC gas refill", basePrice: 249900},
		{code: "ac-install", name: "AC installation", basePrice: 149900},
	}},
	{code: "plumbing", name: "Plumbing", items: []itemSeed{
		{code: "tap-repair", name: "Tap repair", basePrice: 19900},
		{code: "drain-unblock", name: "Drain unblocking", basePrice: 34900},
	}},
	{code: "electrical", name: "Electrical", items: []itemSeed{
		{code: "fan-install", name: "Ceiling fan installation", basePrice: 29900},
		{code: "wiring-check", name: "Wiring inspection", basePrice: 39900},
	}},
	{code: "appliance", name: "Appliance Repair", items: []itemSeed{
		{code: "washer-repair", name: "Washing machine repair", basePrice: 44900},
		{code: "fridge-repair", name: "Refrigerator repair", basePrice: 54900},
	}},
}

// EnsureCatalog inserts the default categories and items missing by code.
// Existing rows, including ones an admin retired or repriced, are left alone.
func EnsureCatalog(ctx context.Context, db *gorm.DB, node *snowflake.Node, now time.Time) (int, error) {
	if db == nil || node == nil {
		return 0, errors.New("seed database handle and id node are required")
	}

	created := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, cs := range defaultCatalog {
			category, inserted, err := ensureCategoryTx(ctx, tx, node, cs, now)
			if err != nil {
				return err
			}
			if inserted {
				created++
			}
			for _, is := range cs.items {
				inserted, err := ensureItemTx(ctx, tx, node, category.ID, is, now)
				if err != nil {
					return err
				}
				if inserted {
					created++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func ensureCategoryTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, cs categorySeed, now time.Time) (catalogdomain.Category, bool, error) {
	var category catalogdomain.Category
	err := tx.WithContext(ctx).Where("code = ?", cs.code).First(&category).Error
	if err == nil {
		return category, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return category, false, err
	}

	category = catalogdomain.Category{
		ID:        node.Generate(),
		Code:      cs.code,
		Name:      cs.name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&category).Error; err != nil {
		return category, false, err
	}
	return category, true, nil
}

func ensureItemTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, categoryID snowflake.ID, is itemSeed, now time.Time) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&catalogdomain.Item{}).Where("code = ?", is.code).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	item := catalogdomain.Item{
		ID:         node.Generate(),
		CategoryID: categoryID,
		Code:       is.code,
		Name:       is.name,
		BasePrice:  is.basePrice,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
		return false, err
	}
	return true, nil
}
