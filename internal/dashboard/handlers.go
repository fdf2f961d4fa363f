package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/zombor/smartreceipt/internal/api"
	"github.com/zombor/smartreceipt/internal/receipt"
)

// leaves room for multipart framing around a maximum size image
const maxFormSize = api.MaxUploadSize + 1<<20

type receiptsResponse struct {
	receipt.View
	Count        int    `json:"count"`
	EmptyMessage string `json:"empty_message,omitempty"`
	EmptyHint    string `json:"empty_hint,omitempty"`
	// receipts whose total is not subtotal plus tax
	Unbalanced []receipt.ID `json:"unbalanced"`
}

func newReceiptsResponse(view receipt.View) receiptsResponse {
	unbalanced := make([]receipt.ID, 0)
	for _, r := range view.Receipts {
		if !r.Balanced() {
			unbalanced = append(unbalanced, r.ID)
		}
	}
	return receiptsResponse{
		View:         view,
		Count:        len(view.Receipts),
		EmptyMessage: view.EmptyMessage(),
		EmptyHint:    view.EmptyHint(),
		Unbalanced:   unbalanced,
	}
}

type analyticsResponse struct {
	receipt.Summary
	Empty             bool            `json:"empty"`
	AveragePerReceipt decimal.Decimal `json:"average_per_receipt"`
	Categories        []receipt.Share `json:"categories"`
	Months            []receipt.Share `json:"months"`
}

type categoryResponse struct {
	receipt.Descriptor
	Color receipt.Color `json:"color,omitempty"`
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes {"error": message} with a status derived from err
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{
		"error": api.UserMessage(err),
	})
}

// statusFor maps the client error taxonomy onto dashboard statuses
func statusFor(err error) int {
	var (
		validationErr *api.ValidationError
		networkErr    *api.NetworkError
		serverErr     *api.ServerError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, receipt.ErrEmptyExport):
		return http.StatusConflict
	case errors.As(err, &networkErr):
		return http.StatusBadGateway
	case errors.As(err, &serverErr):
		if serverErr.StatusCode >= 400 && serverErr.StatusCode < 500 {
			return serverErr.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleHealthz reports that the dashboard itself is up
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListReceipts returns the visible receipts. A change of category
// triggers a fetch; the search query is applied locally.
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	category, ok := receipt.ParseSelector(query.Get("category"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("Unknown category: %s", query.Get("category")),
		})
		return
	}

	if !s.controller.Loaded() || category != s.controller.Category() {
		if err := s.controller.SelectCategory(r.Context(), category); err != nil {
			slog.Error("Error loading receipts", "category", category, "error", err)
			writeError(w, err)
			return
		}
	}
	s.controller.SetQuery(query.Get("q"))

	writeJSON(w, http.StatusOK, newReceiptsResponse(s.controller.View()))
}

// handleClearFilters resets category and query and returns the full list
func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.ClearFilters(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptsResponse(s.controller.View()))
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Receipt ID required"})
		return
	}
	rec, err := s.controller.Receipt(r.Context(), receipt.ID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Receipt ID required"})
		return
	}
	if err := s.controller.Delete(r.Context(), receipt.ID(id)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload validates the posted image and forwards it to the backend
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			errorMsg = "File too large. Max size is 10MB"
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errorMsg})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file was selected. Please choose a file to upload."})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error reading file. Please try again."})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = api.DetectContentType(header.Filename, data)
	}

	created, err := s.controller.Upload(r.Context(), api.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleRefresh re-fetches receipts and analytics
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.RefreshAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport streams the current category-scoped receipts as a CSV attachment
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.controller.Loaded() {
		if err := s.controller.SelectCategory(r.Context(), s.controller.Category()); err != nil {
			writeError(w, err)
			return
		}
	}
	a := &attachment{w: w}
	if _, err := s.controller.Export(a); err != nil && !a.written {
		writeError(w, err)
	}
}

// handleAnalytics returns the latest summary with derived values
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.controller.Summary()
	if !ok {
		if err := s.controller.LoadAnalytics(r.Context()); err != nil {
			slog.Error("Failed to load analytics", "error", err)
			writeError(w, err)
			return
		}
		// a newer fetch may have superseded this one before applying
		if summary, ok = s.controller.Summary(); !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Analytics are being refreshed. Please try again.",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, analyticsResponse{
		Summary:           summary,
		Empty:             summary.Empty(),
		AveragePerReceipt: summary.AveragePerReceipt(),
		Categories:        summary.CategoryBreakdown(),
		Months:            summary.MonthBreakdown(),
	})
}

// handleCategories returns the category registry with display colors
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	reg := receipt.Registry()
	out := make([]categoryResponse, len(reg))
	for i, d := range reg {
		out[i] = categoryResponse{Descriptor: d}
		if !d.IsAll() {
			out[i].Color = receipt.ColorFor(d.Value)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleNotifications drains pending notifications
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Notifications())
}

// handleDismissNotification removes one pending notification
func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if !s.controller.Dismiss(r.PathValue("id")) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Notification not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
