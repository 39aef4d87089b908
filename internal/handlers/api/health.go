package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/vatdesk/api/internal/vat"
)

// HealthHandler reports liveness and serves the reference rate table.
type HealthHandler struct {
	rates   *vat.RateCache
	version string
}

// NewHealthHandler creates a new health handler. rates may be nil when the
// rate check is disabled.
func NewHealthHandler(rates *vat.RateCache, version string) *HealthHandler {
	return &HealthHandler{rates: rates, version: version}
}

// RegisterRoutes registers the health and rate routes.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/rates/{country}", h.CountryRates)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	RateCountries int    `json:"rateCountries"`
}

// Health handles GET /api/v1/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: h.version}
	if h.rates != nil {
		resp.RateCountries = h.rates.CountryCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

type rateJSON struct {
	Type string `json:"type"`
	Rate string `json:"rate"`
}

type countryRatesResponse struct {
	Country string     `json:"country"`
	Rates   []rateJSON `json:"rates"`
}

// CountryRates handles GET /api/v1/rates/{country}. The country may be an
// ISO code or a name in any supported language.
func (h *HealthHandler) CountryRates(w http.ResponseWriter, r *http.Request) {
	code := vat.NormalizeCountry(r.PathValue("country"))
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "unknown country"})
		return
	}
	if h.rates == nil {
		writeJSON(w, http.StatusNotFound, errorJSON{Error: "rate table not loaded"})
		return
	}

	rates, ok := h.rates.GetCountryRates(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorJSON{Error: "no rates for " + strings.ToUpper(code)})
		return
	}

	types := make([]string, 0, len(rates.Rates))
	for rt := range rates.Rates {
		types = append(types, rt)
	}
	sort.Strings(types)

	resp := countryRatesResponse{Country: code, Rates: make([]rateJSON, 0, len(types))}
	for _, rt := range types {
		resp.Rates = append(resp.Rates, rateJSON{Type: rt, Rate: rates.Rates[rt].StringFixed(2)})
	}
	writeJSON(w, http.StatusOK, resp)
}
