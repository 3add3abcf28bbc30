package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/comanda-pos/api/internal/auth"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/middleware"
)

// mockStore implements Store over a fixed set of companies.
type mockStore struct {
	companies []database.Company
}

func (m *mockStore) GetActiveCompany(ctx context.Context, id uuid.UUID) (database.Company, error) {
	for _, c := range m.companies {
		if c.ID == id && c.IsActive {
			return c, nil
		}
	}
	return database.Company{}, pgx.ErrNoRows
}

func (m *mockStore) ListActiveCompanies(ctx context.Context, limit int32) ([]database.Company, error) {
	var out []database.Company
	for _, c := range m.companies {
		if !c.IsActive {
			continue
		}
		out = append(out, c)
		if int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

// serveResolved runs the Resolver and captures what, if anything, it resolved.
func serveResolved(t *testing.T, store Store, req *http.Request) (*Context, *httptest.ResponseRecorder) {
	t.Helper()

	var resolved *Context
	handler := Resolver(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return resolved, rec
}

func TestResolverHeaderWins(t *testing.T) {
	headerCompany := database.Company{ID: uuid.New(), Name: "Filial Centro", IsActive: true}
	queryCompany := database.Company{ID: uuid.New(), Name: "Filial Praia", IsActive: true}
	store := &mockStore{companies: []database.Company{headerCompany, queryCompany}}

	req := httptest.NewRequest(http.MethodGet, "/orders?company_id="+queryCompany.ID.String(), nil)
	req.Header.Set(HeaderCompanyID, headerCompany.ID.String())

	resolved, rec := serveResolved(t, store, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if resolved == nil || resolved.Company.ID != headerCompany.ID {
		t.Fatalf("resolved company: got %+v, want header company", resolved)
	}
}

func TestResolverQueryParam(t *testing.T) {
	company := database.Company{ID: uuid.New(), Name: "Filial Centro", IsActive: true}
	other := database.Company{ID: uuid.New(), Name: "Filial Praia", IsActive: true}
	store := &mockStore{companies: []database.Company{company, other}}

	req := httptest.NewRequest(http.MethodGet, "/orders?company_id="+company.ID.String(), nil)

	resolved, rec := serveResolved(t, store, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if resolved.Company.ID != company.ID {
		t.Fatalf("resolved company: got %s, want %s", resolved.Company.ID, company.ID)
	}
}

func TestResolverFallsBackToClaims(t *testing.T) {
	company := database.Company{ID: uuid.New(), Name: "Filial Centro", IsActive: true}
	other := database.Company{ID: uuid.New(), Name: "Filial Praia", IsActive: true}
	store := &mockStore{companies: []database.Company{company, other}}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req = req.WithContext(middleware.WithClaims(req.Context(), &auth.Claims{
		UserID:    uuid.New(),
		CompanyID: company.ID,
	}))

	resolved, rec := serveResolved(t, store, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if resolved.Company.ID != company.ID {
		t.Fatalf("resolved company: got %s, want claims company %s", resolved.Company.ID, company.ID)
	}
}

func TestResolverSoleActiveCompanyFallback(t *testing.T) {
	company := database.Company{ID: uuid.New(), Name: "Filial Centro", IsActive: true}
	inactive := database.Company{ID: uuid.New(), Name: "Filial Antiga", IsActive: false}
	store := &mockStore{companies: []database.Company{company, inactive}}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)

	resolved, rec := serveResolved(t, store, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if resolved.Company.ID != company.ID {
		t.Fatalf("resolved company: got %s, want sole active %s", resolved.Company.ID, company.ID)
	}
}

func TestResolverAmbiguousWithoutSelector(t *testing.T) {
	store := &mockStore{companies: []database.Company{
		{ID: uuid.New(), IsActive: true},
		{ID: uuid.New(), IsActive: true},
	}}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)

	resolved, rec := serveResolved(t, store, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	if resolved != nil {
		t.Fatal("handler must not run when resolution fails")
	}
}

func TestResolverUnknownCompany(t *testing.T) {
	store := &mockStore{companies: []database.Company{{ID: uuid.New(), IsActive: true}}}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(HeaderCompanyID, uuid.New().String())

	_, rec := serveResolved(t, store, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}

func TestResolverInactiveCompany(t *testing.T) {
	inactive := database.Company{ID: uuid.New(), IsActive: false}
	store := &mockStore{companies: []database.Company{inactive}}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(HeaderCompanyID, inactive.ID.String())

	_, rec := serveResolved(t, store, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}

func TestResolverMalformedCompanyID(t *testing.T) {
	store := &mockStore{companies: []database.Company{{ID: uuid.New(), IsActive: true}}}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(HeaderCompanyID, "not-a-uuid")

	_, rec := serveResolved(t, store, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}
