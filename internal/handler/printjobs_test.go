package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/tenant"
)

type mockPrintJobServicer struct {
	completePrintJobFn func(ctx context.Context, companyID, printJobID uuid.UUID) (database.PrintJob, error)
}

func (m *mockPrintJobServicer) CompletePrintJob(ctx context.Context, companyID, printJobID uuid.UUID) (database.PrintJob, error) {
	return m.completePrintJobFn(ctx, companyID, printJobID)
}

type mockPrintJobReader struct {
	listPrintJobsByStatusFn     func(ctx context.Context, arg database.ListPrintJobsByStatusParams) ([]database.ListPrintJobsRow, error)
	listOrderItemsWithProductFn func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemWithProduct, error)
}

func (m *mockPrintJobReader) ListPrintJobsByStatus(ctx context.Context, arg database.ListPrintJobsByStatusParams) ([]database.ListPrintJobsRow, error) {
	return m.listPrintJobsByStatusFn(ctx, arg)
}
func (m *mockPrintJobReader) ListOrderItemsWithProduct(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemWithProduct, error) {
	return m.listOrderItemsWithProductFn(ctx, orderID)
}

func newPrintJobRouter(svc PrintJobServicer, store PrintJobReader, hub Broadcaster) chi.Router {
	h := NewPrintJobHandler(svc, store, hub)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := tenant.WithCompany(req.Context(), testCompany)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/printjobs", h.RegisterRoutes)
	return r
}

func TestListPrintJobsDefaultsToPending(t *testing.T) {
	orderID := uuid.New()

	var gotStatus string
	store := &mockPrintJobReader{
		listPrintJobsByStatusFn: func(ctx context.Context, arg database.ListPrintJobsByStatusParams) ([]database.ListPrintJobsRow, error) {
			gotStatus = arg.Status
			return []database.ListPrintJobsRow{
				{
					PrintJob:  database.PrintJob{ID: uuid.New(), OrderID: orderID, Status: enum.PrintJobStatusPending},
					OrderCode: "0042",
					TableID:   uuid.New(),
					TableName: "Mesa 03",
				},
			}, nil
		},
		listOrderItemsWithProductFn: func(ctx context.Context, id uuid.UUID) ([]database.OrderItemWithProduct, error) {
			return []database.OrderItemWithProduct{
				{
					OrderItem:         database.OrderItem{ID: uuid.New(), OrderID: orderID, ProductID: uuid.New(), Qty: 1},
					ProductName:       "Pudim de Leite",
					ProductPriceCents: 1800,
				},
			}, nil
		},
	}

	router := newPrintJobRouter(&mockPrintJobServicer{}, store, &mockHub{})
	rec := doJSON(t, router, http.MethodGet, "/printjobs", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if gotStatus != enum.PrintJobStatusPending {
		t.Errorf("queried status: got %s, want PENDING", gotStatus)
	}

	var jobs []map[string]interface{}
	if err := decodeInto(rec, &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs: got %d, want 1", len(jobs))
	}
	if jobs[0]["order_code"] != "0042" {
		t.Errorf("order_code: got %v", jobs[0]["order_code"])
	}
	items := jobs[0]["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items: got %d, want 1", len(items))
	}
}

func TestListPrintJobsExcludesCanceledItems(t *testing.T) {
	orderID := uuid.New()
	store := &mockPrintJobReader{
		listPrintJobsByStatusFn: func(ctx context.Context, arg database.ListPrintJobsByStatusParams) ([]database.ListPrintJobsRow, error) {
			return []database.ListPrintJobsRow{
				{
					PrintJob:  database.PrintJob{ID: uuid.New(), OrderID: orderID, Status: enum.PrintJobStatusPending},
					OrderCode: "0042",
					TableID:   uuid.New(),
					TableName: "Mesa 03",
				},
			}, nil
		},
		listOrderItemsWithProductFn: func(ctx context.Context, id uuid.UUID) ([]database.OrderItemWithProduct, error) {
			return []database.OrderItemWithProduct{
				{
					OrderItem:         database.OrderItem{ID: uuid.New(), OrderID: orderID, ProductID: uuid.New(), Qty: 1},
					ProductName:       "Suco de Laranja",
					ProductPriceCents: 1200,
				},
				{
					OrderItem: database.OrderItem{
						ID:         uuid.New(),
						OrderID:    orderID,
						ProductID:  uuid.New(),
						Qty:        1,
						CanceledAt: pgtype.Timestamptz{Time: time.Now(), Valid: true},
					},
					ProductName:       "Refrigerante Lata",
					ProductPriceCents: 800,
				},
			}, nil
		},
	}

	router := newPrintJobRouter(&mockPrintJobServicer{}, store, &mockHub{})
	rec := doJSON(t, router, http.MethodGet, "/printjobs", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var jobs []map[string]interface{}
	if err := decodeInto(rec, &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	items := jobs[0]["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items: got %d, want only the live one", len(items))
	}
	item := items[0].(map[string]interface{})
	if item["product_name"] != "Suco de Laranja" {
		t.Errorf("product_name: got %v, want Suco de Laranja", item["product_name"])
	}
}

func TestListPrintJobsRejectsUnknownStatus(t *testing.T) {
	router := newPrintJobRouter(&mockPrintJobServicer{}, &mockPrintJobReader{}, &mockHub{})
	rec := doJSON(t, router, http.MethodGet, "/printjobs?status=QUEUED", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestMarkPrintedBroadcasts(t *testing.T) {
	jobID := uuid.New()
	orderID := uuid.New()

	hub := &mockHub{}
	svc := &mockPrintJobServicer{
		completePrintJobFn: func(ctx context.Context, companyID, id uuid.UUID) (database.PrintJob, error) {
			if id != jobID {
				t.Errorf("job: got %s, want %s", id, jobID)
			}
			return database.PrintJob{
				ID:        jobID,
				OrderID:   orderID,
				Status:    enum.PrintJobStatusPrinted,
				PrintedAt: pgtype.Timestamptz{Valid: true},
			}, nil
		},
	}

	router := newPrintJobRouter(svc, &mockPrintJobReader{}, hub)
	rec := doJSON(t, router, http.MethodPost, "/printjobs/"+jobID.String()+"/printed", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != enum.PrintJobStatusPrinted {
		t.Errorf("status: got %v, want PRINTED", body["status"])
	}
	if len(hub.events) != 2 {
		t.Errorf("events: got %v, want printed + order update", hub.events)
	}
}

func TestMarkPrintedNotFound(t *testing.T) {
	svc := &mockPrintJobServicer{
		completePrintJobFn: func(ctx context.Context, companyID, id uuid.UUID) (database.PrintJob, error) {
			return database.PrintJob{}, service.ErrPrintJobNotFound
		},
	}

	router := newPrintJobRouter(svc, &mockPrintJobReader{}, &mockHub{})
	rec := doJSON(t, router, http.MethodPost, "/printjobs/"+uuid.New().String()+"/printed", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}
