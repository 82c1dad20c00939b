package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
)

// LoadSeedFile upserts every product listed in the JSON array at path.
func LoadSeedFile(ctx context.Context, store Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	for i := range products {
		if err := store.UpsertProduct(ctx, &products[i]); err != nil {
			return i, fmt.Errorf("seed product %d: %w", products[i].ID, err)
		}
	}
	return len(products), nil
}
