package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/tenant"
)

type mockTableReader struct {
	listActiveTablesFn     func(ctx context.Context, companyID uuid.UUID) ([]database.Table, error)
	getTableCurrentOrderFn func(ctx context.Context, arg database.GetTableCurrentOrderParams) (database.Order, error)
}

func (m *mockTableReader) ListActiveTables(ctx context.Context, companyID uuid.UUID) ([]database.Table, error) {
	return m.listActiveTablesFn(ctx, companyID)
}
func (m *mockTableReader) GetTableCurrentOrder(ctx context.Context, arg database.GetTableCurrentOrderParams) (database.Order, error) {
	return m.getTableCurrentOrderFn(ctx, arg)
}

func TestListTablesFloorView(t *testing.T) {
	busy := database.Table{ID: uuid.New(), Name: "Mesa 01", IsActive: true}
	free := database.Table{ID: uuid.New(), Name: "Mesa 02", IsActive: true}
	liveOrder := database.Order{ID: uuid.New(), Code: "0042", TableID: busy.ID, Status: enum.OrderStatusSentToKitchen}

	store := &mockTableReader{
		listActiveTablesFn: func(ctx context.Context, companyID uuid.UUID) ([]database.Table, error) {
			return []database.Table{busy, free}, nil
		},
		getTableCurrentOrderFn: func(ctx context.Context, arg database.GetTableCurrentOrderParams) (database.Order, error) {
			if arg.TableID == busy.ID {
				return liveOrder, nil
			}
			return database.Order{}, pgx.ErrNoRows
		},
	}

	h := NewTableHandler(store)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(tenant.WithCompany(req.Context(), testCompany)))
		})
	})
	r.Route("/tables", h.RegisterRoutes)

	rec := doJSON(t, r, http.MethodGet, "/tables", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var tables []map[string]interface{}
	if err := decodeInto(rec, &tables); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("tables: got %d, want 2", len(tables))
	}

	occupied := tables[0]
	if occupied["name"] != "Mesa 01" {
		t.Fatalf("first table: got %v", occupied["name"])
	}
	current, ok := occupied["current_order"].(map[string]interface{})
	if !ok {
		t.Fatal("busy table missing current_order")
	}
	if current["code"] != "0042" {
		t.Errorf("current order code: got %v", current["code"])
	}
	if tables[1]["current_order"] != nil {
		t.Errorf("free table: got %v, want null current_order", tables[1]["current_order"])
	}
}
