package http

import (
	"context"
	"net/http"
	"strings"

	"contabile/internal/core"
)

type catalogRow struct {
	ID          string
	Name        string
	Description string
	Category    string
	Rate        string
}

type catalogView struct {
	Title     string
	RateLabel string
	Kind      string
	Rows      []catalogRow
}

// handleProductList renders the fixed-price catalog table.
func (s *Server) handleProductList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		writeDomainError(w, r, err, "product list")
		return
	}

	cfg := s.businessConfig(ctx)
	rows := make([]catalogRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, catalogRow{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Rate:        formatMoney(p.Price, cfg),
		})
	}

	s.render(w, "catalog.html", catalogView{
		Title:     "Products",
		RateLabel: "Price",
		Kind:      "product",
		Rows:      rows,
	})
}

// handleServiceList renders the hourly-rate catalog table.
func (s *Server) handleServiceList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	servicesList, err := s.catalog.ListServices(ctx)
	if err != nil {
		writeDomainError(w, r, err, "service list")
		return
	}

	cfg := s.businessConfig(ctx)
	rows := make([]catalogRow, 0, len(servicesList))
	for _, sv := range servicesList {
		rows = append(rows, catalogRow{
			ID:          sv.ID,
			Name:        sv.Name,
			Description: sv.Description,
			Category:    sv.Category,
			Rate:        formatMoney(sv.HourlyRate, cfg) + "/h",
		})
	}

	s.render(w, "catalog.html", catalogView{
		Title:     "Services",
		RateLabel: "Hourly rate",
		Kind:      "service",
		Rows:      rows,
	})
}

type catalogEditView struct {
	ID          string
	Kind        string
	Title       string
	RateLabel   string
	RateField   string
	Name        string
	Description string
	Category    string
	Rate        string
}

// handleProductEditForm swaps in a form pre-filled with the selected product.
func (s *Server) handleProductEditForm(w http.ResponseWriter, r *http.Request) {
	s.catalogEditForm(w, r, "product", func(ctx context.Context, id string) (catalogEditView, error) {
		p, err := s.catalog.GetProduct(ctx, id)
		if err != nil {
			return catalogEditView{}, err
		}
		return catalogEditView{
			ID:          p.ID,
			Kind:        "product",
			Title:       "Edit product",
			RateLabel:   "Price",
			RateField:   "price",
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Rate:        p.Price.StringFixed(2),
		}, nil
	})
}

// handleServiceEditForm swaps in a form pre-filled with the selected service.
func (s *Server) handleServiceEditForm(w http.ResponseWriter, r *http.Request) {
	s.catalogEditForm(w, r, "service", func(ctx context.Context, id string) (catalogEditView, error) {
		sv, err := s.catalog.GetService(ctx, id)
		if err != nil {
			return catalogEditView{}, err
		}
		return catalogEditView{
			ID:          sv.ID,
			Kind:        "service",
			Title:       "Edit service",
			RateLabel:   "Hourly rate",
			RateField:   "hourly_rate",
			Name:        sv.Name,
			Description: sv.Description,
			Category:    sv.Category,
			Rate:        sv.HourlyRate.StringFixed(2),
		}, nil
	})
}

func (s *Server) catalogEditForm(w http.ResponseWriter, r *http.Request, kind string, load func(context.Context, string) (catalogEditView, error)) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		BadRequestError("Missing " + kind + " id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	view, err := load(ctx, id)
	if err != nil {
		writeDomainError(w, r, err, kind+" edit form")
		return
	}
	s.render(w, "catalog_edit.html", view)
}

// handleCreateProduct adds a catalog product from the entry form.
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	price, err := core.ParseAmount(r.FormValue("price"))
	if err != nil {
		writeDomainError(w, r, err, "create product")
		return
	}

	created, err := s.catalog.CreateProduct(ctx, core.Product{
		Name:        sanitizeInput(r.FormValue("name")),
		Description: sanitizeInput(r.FormValue("description")),
		Category:    sanitizeInput(r.FormValue("category")),
		Price:       price,
	})
	if err != nil {
		writeDomainError(w, r, err, "create product")
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerCatalogChanged().
		TriggerSyncChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Added product " + created.Name).
		Write(w)
}

// handleCreateService adds a catalog service from the entry form.
func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	rate, err := core.ParseAmount(r.FormValue("hourly_rate"))
	if err != nil {
		writeDomainError(w, r, err, "create service")
		return
	}

	created, err := s.catalog.CreateService(ctx, core.Service{
		Name:        sanitizeInput(r.FormValue("name")),
		Description: sanitizeInput(r.FormValue("description")),
		Category:    sanitizeInput(r.FormValue("category")),
		HourlyRate:  rate,
	})
	if err != nil {
		writeDomainError(w, r, err, "create service")
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerCatalogChanged().
		TriggerSyncChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Added service " + created.Name).
		Write(w)
}

// handleUpdateProduct rewrites a catalog product from the edit form.
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := strings.TrimSpace(r.FormValue("id"))
	if id == "" {
		BadRequestError("Missing product id").Write(w)
		return
	}
	price, err := core.ParseAmount(r.FormValue("price"))
	if err != nil {
		writeDomainError(w, r, err, "update product")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	updated, err := s.catalog.UpdateProduct(ctx, core.Product{
		ID:          id,
		Name:        sanitizeInput(r.FormValue("name")),
		Description: sanitizeInput(r.FormValue("description")),
		Category:    sanitizeInput(r.FormValue("category")),
		Price:       price,
	})
	if err != nil {
		writeDomainError(w, r, err, "update product")
		return
	}

	NewHTMXResponse().
		TriggerCatalogChanged().
		TriggerSyncChanged().
		TriggerSuccessNotification("Updated product " + updated.Name).
		Write(w)
}

// handleUpdateService rewrites a catalog service from the edit form.
func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := strings.TrimSpace(r.FormValue("id"))
	if id == "" {
		BadRequestError("Missing service id").Write(w)
		return
	}
	rate, err := core.ParseAmount(r.FormValue("hourly_rate"))
	if err != nil {
		writeDomainError(w, r, err, "update service")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	updated, err := s.catalog.UpdateService(ctx, core.Service{
		ID:          id,
		Name:        sanitizeInput(r.FormValue("name")),
		Description: sanitizeInput(r.FormValue("description")),
		Category:    sanitizeInput(r.FormValue("category")),
		HourlyRate:  rate,
	})
	if err != nil {
		writeDomainError(w, r, err, "update service")
		return
	}

	NewHTMXResponse().
		TriggerCatalogChanged().
		TriggerSyncChanged().
		TriggerSuccessNotification("Updated service " + updated.Name).
		Write(w)
}

// handleDeleteProduct removes a catalog product by id.
func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	s.deleteCatalogItem(w, r, "product", s.catalog.DeleteProduct)
}

// handleDeleteService removes a catalog service by id.
func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	s.deleteCatalogItem(w, r, "service", s.catalog.DeleteService)
}

func (s *Server) deleteCatalogItem(w http.ResponseWriter, r *http.Request, kind string, del func(context.Context, string) error) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	id := parser.Get("id")
	if id == "" {
		BadRequestError("Missing " + kind + " id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	if err := del(ctx, id); err != nil {
		writeDomainError(w, r, err, "delete "+kind)
		return
	}

	NewHTMXResponse().
		TriggerCatalogChanged().
		TriggerSyncChanged().
		TriggerSuccessNotification("Deleted " + kind).
		Write(w)
}
