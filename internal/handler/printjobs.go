package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/tenant"
	"github.com/comanda-pos/api/internal/ws"
)

// PrintJobServicer defines the service methods the print job handlers need.
// Satisfied by *service.OrderService.
type PrintJobServicer interface {
	CompletePrintJob(ctx context.Context, companyID, printJobID uuid.UUID) (database.PrintJob, error)
}

// PrintJobReader defines the database methods the print job list needs.
// Satisfied by *database.Queries.
type PrintJobReader interface {
	ListPrintJobsByStatus(ctx context.Context, arg database.ListPrintJobsByStatusParams) ([]database.ListPrintJobsRow, error)
	ListOrderItemsWithProduct(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemWithProduct, error)
}

// PrintJobHandler handles the receipt print queue endpoints.
type PrintJobHandler struct {
	svc   PrintJobServicer
	store PrintJobReader
	hub   Broadcaster
}

func NewPrintJobHandler(svc PrintJobServicer, store PrintJobReader, hub Broadcaster) *PrintJobHandler {
	return &PrintJobHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers print job endpoints on the given Chi router.
// Mounted inside the tenant-scoped group: /printjobs
func (h *PrintJobHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{id}/printed", h.MarkPrinted)
}

type printJobListItem struct {
	printJobResponse
	OrderCode string              `json:"order_code"`
	TableID   uuid.UUID           `json:"table_id"`
	TableName string              `json:"table_name"`
	Items     []orderItemResponse `json:"items"`
}

// List handles GET /printjobs?status=. The print agent polls this with
// status=PENDING; each job carries the order's line items so the agent can
// render the receipt without a second round trip.
func (h *PrintJobHandler) List(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	status := r.URL.Query().Get("status")
	if status == "" {
		status = enum.PrintJobStatusPending
	}
	if status != enum.PrintJobStatusPending && status != enum.PrintJobStatusPrinted {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	jobs, err := h.store.ListPrintJobsByStatus(r.Context(), database.ListPrintJobsByStatusParams{
		CompanyID: company.Company.ID,
		Status:    status,
	})
	if err != nil {
		log.Printf("ERROR: list print jobs: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]printJobListItem, len(jobs))
	for i, job := range jobs {
		items, err := h.store.ListOrderItemsWithProduct(r.Context(), job.OrderID)
		if err != nil {
			log.Printf("ERROR: list print job items: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp[i] = printJobListItem{
			printJobResponse: toPrintJobResponse(job.PrintJob),
			OrderCode:        job.OrderCode,
			TableID:          job.TableID,
			TableName:        job.TableName,
			Items:            activeItemResponses(items),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// MarkPrinted handles POST /printjobs/{id}/printed. The print agent calls
// this after the receipt comes out; settlement runs here when the cashier
// has not closed the order yet.
func (h *PrintJobHandler) MarkPrinted(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid print job ID")
		return
	}

	job, err := h.svc.CompletePrintJob(r.Context(), company.Company.ID, jobID)
	if err != nil {
		writeServiceError(w, "mark print job printed", err)
		return
	}

	h.hub.BroadcastEvent(company.Company.ID, ws.EventPrintJobPrinted, toPrintJobResponse(job))
	h.hub.BroadcastEvent(company.Company.ID, ws.EventOrderUpdated, map[string]string{"order_id": job.OrderID.String()})
	writeJSON(w, http.StatusOK, toPrintJobResponse(job))
}
