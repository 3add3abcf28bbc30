package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/tenant"
)

// ProductReader defines the database methods the product endpoints need.
// Satisfied by *database.Queries.
type ProductReader interface {
	ListActiveProducts(ctx context.Context, arg database.ListActiveProductsParams) ([]database.Product, error)
}

// ProductHandler handles the menu endpoints.
type ProductHandler struct {
	store ProductReader
}

func NewProductHandler(store ProductReader) *ProductHandler {
	return &ProductHandler{store: store}
}

func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type productResponse struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	StockQty   int32     `json:"stock_qty"`
	StockMin   int32     `json:"stock_min"`
	CategoryID *string   `json:"category_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// List handles GET /products?available=true&category_id=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	params := database.ListActiveProductsParams{
		CompanyID:     company.Company.ID,
		OnlyAvailable: r.URL.Query().Get("available") == "true",
	}
	if s := r.URL.Query().Get("category_id"); s != "" {
		categoryID, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		params.CategoryID = pgtype.UUID{Bytes: categoryID, Valid: true}
	}

	products, err := h.store.ListActiveProducts(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = productResponse{
			ID:         p.ID,
			Code:       p.Code,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			StockQty:   p.StockQty,
			StockMin:   p.StockMin,
			CreatedAt:  p.CreatedAt,
		}
		if p.CategoryID.Valid {
			s := uuid.UUID(p.CategoryID.Bytes).String()
			resp[i].CategoryID = &s
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
