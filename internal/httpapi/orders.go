package httpapi

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/receipt"
	"github.com/MJ-02/BillSplitter/internal/service"
)

// maxUploadBytes bounds receipt uploads.
const maxUploadBytes = 10 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type itemRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"gte=0"`
}

type orderRequest struct {
	Restaurant   string          `json:"restaurant" validate:"required,max=200"`
	Total        decimal.Decimal `json:"total"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	DeliveryFee  decimal.Decimal `json:"delivery_fee"`
	Tip          decimal.Decimal `json:"tip"`
	Discount     decimal.Decimal `json:"discount"`
	PaidByUserID string          `json:"paid_by_user_id" validate:"required"`
	Date         *time.Time      `json:"date"`
	ImageURL     string          `json:"image_url" validate:"omitempty,uri"`
	OCRRawText   string          `json:"ocr_raw_text"`
	Items        []itemRequest   `json:"items" validate:"dive"`
}

func (req orderRequest) order() *models.Order {
	order := &models.Order{
		Restaurant:   req.Restaurant,
		Total:        req.Total,
		Subtotal:     req.Subtotal,
		Tax:          req.Tax,
		DeliveryFee:  req.DeliveryFee,
		Tip:          req.Tip,
		Discount:     req.Discount,
		PaidByUserID: req.PaidByUserID,
		ImageURL:     req.ImageURL,
		OCRRawText:   req.OCRRawText,
		Items:        make([]models.Item, len(req.Items)),
	}
	if req.Date != nil {
		order.Date = req.Date.UTC()
	}
	for i, item := range req.Items {
		order.Items[i] = models.Item{Name: item.Name, Price: item.Price, Quantity: item.Quantity}
	}
	return order
}

// parseReceiptResponse carries the scan and, when a payer was given, the
// order created from it.
type parseReceiptResponse struct {
	*service.ReceiptScan
	Order *models.Order `json:"order,omitempty"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order := req.order()
	if err := s.orders.CreateOrder(r.Context(), order); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if offset == 0 {
		// "skip" is accepted as an alias
		if offset, err = queryInt(r, "skip"); err != nil {
			writeError(w, r, err)
			return
		}
	}

	orders, err := s.orders.ListOrders(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.orders.DeleteOrder(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseReceipt reads a multipart upload with the image in "file". With the
// optional paid_by_user_id form field the result is stored as an order. An
// image_url form field replaces the URL the image store returned.
func (s *Server) parseReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid upload: %v", service.ErrInvalidArgument, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: file is required", service.ErrInvalidArgument))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	scan, err := s.orders.ParseReceipt(r.Context(), receipt.Image{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if url := strings.TrimSpace(r.FormValue("image_url")); url != "" {
		scan.ImageURL = url
	}
	resp := parseReceiptResponse{ReceiptScan: scan}
	payerID := strings.TrimSpace(r.FormValue("paid_by_user_id"))
	if payerID == "" {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	order, err := s.orders.CreateOrderFromReceipt(r.Context(), scan, payerID, scan.ImageURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp.Order = order
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) orderSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.splits.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) exportOrder(w http.ResponseWriter, r *http.Request) {
	f, filename, err := s.orders.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := f.WriteTo(w); err != nil {
		slog.Error("Failed to write export", "order_id", r.PathValue("id"), "error", err)
	}
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", service.ErrInvalidArgument, key)
	}
	return n, nil
}
