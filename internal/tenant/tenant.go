// Package tenant resolves which company an inbound request belongs to and
// makes the resolved company available to handlers. Every query downstream is
// scoped by the resolved company ID; there is no ambient tenant state.
package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HeaderCompanyID is the explicit tenant selector; it wins over everything.
const HeaderCompanyID = "X-Company-ID"

type contextKey string

const companyKey contextKey = "tenant.company"

// Context is the per-request tenant handle.
type Context struct {
	Company database.Company
}

// Store is the subset of database.Queries the resolver needs.
type Store interface {
	GetActiveCompany(ctx context.Context, id uuid.UUID) (database.Company, error)
	ListActiveCompanies(ctx context.Context, limit int32) ([]database.Company, error)
}

// Resolver resolves the request's company in priority order: the
// X-Company-ID header, the company_id query parameter, the authenticated
// staff token's company, and finally the sole active company when exactly one
// exists. Requests that resolve to no active company are rejected.
func Resolver(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			company, err := resolve(r, store)
			if err != nil {
				if errors.Is(err, errBadCompanyID) {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
					return
				}
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "company not found"})
				return
			}

			ctx := WithCompany(r.Context(), company)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var (
	errBadCompanyID    = errors.New("invalid company id")
	errCompanyNotFound = errors.New("company not found")
)

func resolve(r *http.Request, store Store) (database.Company, error) {
	raw := r.Header.Get(HeaderCompanyID)
	if raw == "" {
		raw = r.URL.Query().Get("company_id")
	}
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return database.Company{}, errBadCompanyID
		}
		return lookup(r.Context(), store, id)
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.CompanyID != uuid.Nil {
		return lookup(r.Context(), store, claims.CompanyID)
	}

	// No identifier anywhere on the request: fall back to the sole active
	// company. Ambiguous (more than one) is treated as not found rather
	// than guessing.
	companies, err := store.ListActiveCompanies(r.Context(), 2)
	if err != nil {
		return database.Company{}, err
	}
	if len(companies) != 1 {
		return database.Company{}, errCompanyNotFound
	}
	return companies[0], nil
}

func lookup(ctx context.Context, store Store, id uuid.UUID) (database.Company, error) {
	company, err := store.GetActiveCompany(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Company{}, errCompanyNotFound
		}
		return database.Company{}, err
	}
	return company, nil
}

// WithCompany returns a context carrying the resolved company. Exported for
// tests that mount handlers without the Resolver middleware.
func WithCompany(ctx context.Context, company database.Company) context.Context {
	return context.WithValue(ctx, companyKey, &Context{Company: company})
}

// FromContext returns the resolved tenant handle, or nil when resolution did
// not run.
func FromContext(ctx context.Context) *Context {
	tc, _ := ctx.Value(companyKey).(*Context)
	return tc
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
