package service

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/comanda-pos/api/internal/database"
	"github.com/google/uuid"
)

// codeAttempts bounds the search for a free code. The namespace holds 10,000
// values; hitting the bound means it is close to saturated and the caller
// gets an explicit ErrCodeSpaceExhausted instead of a silent collision.
const codeAttempts = 30

// GenerateOrderCode produces a 4-digit order code unique within the company.
// Order and product codes are independent namespaces.
func (s *OrderService) GenerateOrderCode(ctx context.Context, store OrderStore, companyID uuid.UUID) (string, error) {
	return generateCode(ctx, func(ctx context.Context, code string) (bool, error) {
		return store.OrderCodeTaken(ctx, database.OrderCodeTakenParams{CompanyID: companyID, Code: code})
	})
}

// GenerateProductCode produces a 4-digit product code unique within the
// company. Exposed for the admin tooling that registers products.
func (s *OrderService) GenerateProductCode(ctx context.Context, store OrderStore, companyID uuid.UUID) (string, error) {
	return generateCode(ctx, func(ctx context.Context, code string) (bool, error) {
		return store.ProductCodeTaken(ctx, database.ProductCodeTakenParams{CompanyID: companyID, Code: code})
	})
}

func generateCode(ctx context.Context, taken func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := fmt.Sprintf("%04d", rand.Intn(10000))
		inUse, err := taken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
