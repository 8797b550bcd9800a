package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"prepaid-meter/internal/analytics/domain/statistic"
	"prepaid-meter/internal/audit"
	"prepaid-meter/internal/meter/application"
	meter "prepaid-meter/internal/meter/domain"
	exports "prepaid-meter/internal/meter/interfaces"
	tariff "prepaid-meter/internal/tariff/domain"
)

const (
	apiPrefix      = "/api/v1/"
	maxBodyBytes   = 1 << 20
	maxImportBytes = 16 << 20
)

// Handler serves the meter API.
type Handler struct {
	service  *application.Service
	currency string
	logger   *log.Logger
	auditor  audit.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAuditLogger records every successful mutation.
func WithAuditLogger(auditor audit.Logger) HandlerOption {
	return func(h *Handler) {
		h.auditor = auditor
	}
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, currency string, logger *log.Logger, opts ...HandlerOption) (*Handler, error) {
	if service == nil {
		return nil, errors.New("meter handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	if currency == "" {
		currency = "FCFA"
	}
	h := &Handler{service: service, currency: currency, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// ServeHTTP handles /api/v1/ meter routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, apiPrefix)
	resource, id, _ := strings.Cut(path, "/")

	switch resource {
	case "readings":
		h.handleReadings(w, r, id)
	case "recharges":
		h.handleRecharges(w, r, id)
	case "settings":
		h.handleSettings(w, r, id)
	case "tariffs":
		if !allow(w, r, id, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, h.service.Tariffs())
	case "dashboard":
		if !allow(w, r, id, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, h.dashboardView())
	case "analysis":
		if !allow(w, r, id, http.MethodGet) {
			return
		}
		h.handleAnalysis(w, r)
	case "series":
		if !allow(w, r, id, http.MethodGet) {
			return
		}
		h.handleSeries(w, r)
	case "export":
		if !allow(w, r, id, http.MethodGet) {
			return
		}
		h.handleExport(w, r)
	case "import":
		if !allow(w, r, id, http.MethodPost) {
			return
		}
		h.handleImport(w, r)
	case "reset":
		if !allow(w, r, id, http.MethodPost) {
			return
		}
		err := h.service.Reset(r.Context())
		h.record(r, err, audit.ActionReset, "", nil)
		h.respondMutation(w, err, http.StatusNoContent, nil)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// allow rejects sub-paths and unexpected methods on single-resource routes.
func allow(w http.ResponseWriter, r *http.Request, id string, method string) bool {
	if id != "" {
		w.WriteHeader(http.StatusNotFound)
		return false
	}
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

type readingView struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Reading     float64 `json:"reading"`
	Consumption float64 `json:"consumption"`
	Cost        float64 `json:"cost"`
	CostRounded float64 `json:"cost_rounded"`
}

func newReadingView(r meter.Reading) readingView {
	return readingView{
		ID:          r.ID,
		Date:        meter.FormatDate(r.Date),
		Reading:     r.RawValue,
		Consumption: r.Consumption,
		Cost:        r.Cost,
		CostRounded: tariff.RoundAmount(r.Cost),
	}
}

type rechargeView struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Units  float64 `json:"units"`
	Rate   float64 `json:"rate"`
}

func newRechargeView(r meter.Recharge) rechargeView {
	return rechargeView{
		ID:     r.ID,
		Date:   meter.FormatDate(r.Date),
		Amount: r.Amount,
		Units:  r.Units,
		Rate:   r.Rate,
	}
}

type settingsView struct {
	TariffPlan    string      `json:"tariffPlan"`
	TVA           float64     `json:"tva"`
	CurrentCredit float64     `json:"currentCredit"`
	Theme         meter.Theme `json:"theme"`
	Currency      string      `json:"currency"`
}

func (h *Handler) settingsView() settingsView {
	s := h.service.Settings()
	return settingsView{
		TariffPlan:    s.PlanID,
		TVA:           s.TaxPercent,
		CurrentCredit: tariff.RoundEnergy(s.Credit.Balance()),
		Theme:         s.Theme,
		Currency:      h.currency,
	}
}

type dashboardView struct {
	application.Dashboard
	LastReading *readingView `json:"last_reading,omitempty"`
	Currency    string       `json:"currency"`
}

func (h *Handler) dashboardView() dashboardView {
	d := h.service.Dashboard()
	view := dashboardView{Dashboard: d, Currency: h.currency}
	if d.LastReading != nil {
		last := newReadingView(*d.LastReading)
		view.LastReading = &last
	}
	return view
}

func (h *Handler) handleReadings(w http.ResponseWriter, r *http.Request, id string) {
	if id != "" {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		err := h.service.DeleteReading(r.Context(), id)
		h.record(r, err, audit.ActionReadingDelete, id, nil)
		h.respondMutation(w, err, http.StatusNoContent, nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		readings := h.service.Readings()
		views := make([]readingView, 0, len(readings))
		for _, reading := range readings {
			views = append(views, newReadingView(reading))
		}
		writeJSON(w, http.StatusOK, views)
	case http.MethodPost:
		var req struct {
			Date    string  `json:"date"`
			Reading float64 `json:"reading"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entry, err := h.service.AddReading(r.Context(), req.Date, req.Reading)
		h.record(r, err, audit.ActionReadingAdd, entry.ID, req)
		h.respondMutation(w, err, http.StatusCreated, newReadingView(entry))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleRecharges(w http.ResponseWriter, r *http.Request, id string) {
	if id != "" {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		err := h.service.DeleteRecharge(r.Context(), id)
		h.record(r, err, audit.ActionRechargeDelete, id, nil)
		h.respondMutation(w, err, http.StatusNoContent, nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		recharges := h.service.Recharges()
		views := make([]rechargeView, 0, len(recharges))
		for _, recharge := range recharges {
			views = append(views, newRechargeView(recharge))
		}
		writeJSON(w, http.StatusOK, views)
	case http.MethodPost:
		var req struct {
			Date   string  `json:"date"`
			Amount float64 `json:"amount"`
			Units  float64 `json:"units"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entry, err := h.service.AddRecharge(r.Context(), req.Date, req.Amount, req.Units)
		h.record(r, err, audit.ActionRechargeAdd, entry.ID, req)
		h.respondMutation(w, err, http.StatusCreated, newRechargeView(entry))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request, id string) {
	if id != "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.settingsView())
	case http.MethodPut:
		var req struct {
			TariffPlan *string  `json:"tariffPlan"`
			TVA        *float64 `json:"tva"`
			Theme      *string  `json:"theme"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.service.UpdateSettings(r.Context(), req.TariffPlan, req.TVA, req.Theme); err != nil {
			h.respondError(w, err)
			return
		}
		h.record(r, nil, audit.ActionSettingsUpdate, "", req)
		writeJSON(w, http.StatusOK, h.settingsView())
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	window, err := statistic.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		http.Error(w, "window must be 7days, 30days or all", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Analyze(window))
}

func (h *Handler) handleSeries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, h.service.Series(limit))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := exports.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, "format must be json, text, csv, pdf or xlsx", http.StatusBadRequest)
		return
	}
	now := h.service.Now()
	report := exports.Report{
		State:       h.service.State(),
		Plan:        h.service.ActivePlan(),
		Currency:    h.currency,
		GeneratedAt: now,
	}
	data, err := exports.Render(format, report)
	if err != nil {
		h.logger.Printf("meter handler: export %s error: %v", format, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(now)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		http.Error(w, "request body too large or unreadable", http.StatusBadRequest)
		return
	}
	if err := h.service.Import(r.Context(), data); err != nil {
		h.respondError(w, err)
		return
	}
	counts := map[string]int{
		"readings":  h.service.ReadingCount(),
		"recharges": h.service.RechargeCount(),
	}
	h.record(r, nil, audit.ActionImport, "", counts)
	writeJSON(w, http.StatusOK, counts)
}

// record writes an audit entry for a successful mutation. Audit failures are logged only.
func (h *Handler) record(r *http.Request, err error, action, resourceID string, metadata any) {
	if err != nil || h.auditor == nil {
		return
	}
	if logErr := h.auditor.Log(r.Context(), audit.FromRequest(r, action, resourceID, metadata)); logErr != nil {
		h.logger.Printf("meter handler: audit %s error: %v", action, logErr)
	}
}

func (h *Handler) respondMutation(w http.ResponseWriter, err error, status int, body any) {
	if err != nil {
		h.respondError(w, err)
		return
	}
	if body == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, body)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, meter.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, meter.ErrValidation),
		errors.Is(err, meter.ErrFormat),
		errors.Is(err, meter.ErrParse):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Printf("meter handler: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
