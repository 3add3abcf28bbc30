package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/tenant"
)

// TableReader defines the database methods the table endpoints need.
// Satisfied by *database.Queries.
type TableReader interface {
	ListActiveTables(ctx context.Context, companyID uuid.UUID) ([]database.Table, error)
	GetTableCurrentOrder(ctx context.Context, arg database.GetTableCurrentOrderParams) (database.Order, error)
}

// TableHandler handles the floor view endpoints.
type TableHandler struct {
	store TableReader
}

func NewTableHandler(store TableReader) *TableHandler {
	return &TableHandler{store: store}
}

func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type tableResponse struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	CurrentOrder *orderResponse `json:"current_order"`
}

// List handles GET /tables: every active table plus the live order occupying
// it, if any. This is the waiter's floor view.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	tables, err := h.store.ListActiveTables(r.Context(), company.Company.ID)
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = tableResponse{ID: t.ID, Name: t.Name}

		order, err := h.store.GetTableCurrentOrder(r.Context(), database.GetTableCurrentOrderParams{
			TableID:   t.ID,
			CompanyID: company.Company.ID,
		})
		switch {
		case err == nil:
			o := toOrderResponse(order)
			resp[i].CurrentOrder = &o
		case errors.Is(err, pgx.ErrNoRows):
			// Table is free.
		default:
			log.Printf("ERROR: get table current order: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
