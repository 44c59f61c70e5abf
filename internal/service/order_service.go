package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/MJ-02/BillSplitter/internal/export"
	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/receipt"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

const (
	defaultOrderLimit = 100
	maxOrderLimit     = 500
)

// ReceiptScan is the outcome of reading and parsing one receipt upload.
type ReceiptScan struct {
	OCRRawText    string                 `json:"ocr_raw_text"`
	OCRConfidence float64                `json:"ocr_confidence"`
	OCREngine     string                 `json:"ocr_engine"`
	ParsedData    *receipt.ParsedReceipt `json:"parsed_data"`
	ImageURL      string                 `json:"image_url,omitempty"`
}

// OrderService manages orders and their receipts.
type OrderService struct {
	store     storage.Store
	extractor receipt.TextExtractor
	parser    receipt.Parser
	images    receipt.ImageStore
}

// NewOrderService wires the receipt collaborators. A nil images store
// leaves scans without an image URL.
func NewOrderService(store storage.Store, extractor receipt.TextExtractor, parser receipt.Parser, images receipt.ImageStore) *OrderService {
	return &OrderService{store: store, extractor: extractor, parser: parser, images: images}
}

// ParseReceipt extracts text from a receipt image and parses it. Once the
// receipt parses, the image is kept in the image store; no order is
// created, the caller reviews the result first.
func (s *OrderService) ParseReceipt(ctx context.Context, image receipt.Image) (*ReceiptScan, error) {
	ocr, err := s.extractor.Extract(ctx, image)
	if err != nil {
		if errors.Is(err, receipt.ErrNoText) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		slog.Error("Receipt OCR failed", "filename", image.Filename, "error", err)
		return nil, fmt.Errorf("error processing receipt: %w", err)
	}
	slog.Info("Receipt OCR completed", "engine", ocr.Engine, "chars", len(ocr.RawText), "confidence", ocr.Confidence)

	parsed, err := s.parser.Parse(ctx, ocr.RawText)
	if err != nil {
		slog.Error("Receipt parsing failed", "error", err)
		return nil, fmt.Errorf("error processing receipt: %w", err)
	}
	slog.Info("Receipt parsed", "restaurant", parsed.Restaurant, "items", len(parsed.Items))

	scan := &ReceiptScan{
		OCRRawText:    ocr.RawText,
		OCRConfidence: ocr.Confidence,
		OCREngine:     ocr.Engine,
		ParsedData:    parsed,
	}
	if s.images != nil {
		url, err := s.images.Put(ctx, image)
		if err != nil {
			slog.Error("Receipt image upload failed", "filename", image.Filename, "error", err)
			return nil, fmt.Errorf("failed to store receipt image: %w", err)
		}
		scan.ImageURL = url
		slog.Info("Receipt image stored", "url", url)
	}
	return scan, nil
}

// CreateOrder validates and stores an order with its items. The payer must
// exist.
func (s *OrderService) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := validateOrder(order); err != nil {
		return err
	}
	if _, err := s.store.GetUser(ctx, order.PaidByUserID); err != nil {
		return notFound(err, ErrPayerNotFound, order.PaidByUserID)
	}

	order.ID = ""
	for i := range order.Items {
		order.Items[i].ID = ""
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		slog.Error("CreateOrder failed", "error", err)
		// The payer can vanish between the check and the insert
		return notFound(err, ErrPayerNotFound, order.PaidByUserID)
	}

	slog.Info("Order created", "order_id", order.ID, "restaurant", order.Restaurant, "items", len(order.Items))
	return nil
}

// CreateOrderFromReceipt stores a parsed receipt as an order, keeping the
// raw text and parsed JSON for auditing. An empty imageURL falls back to
// the URL the scan's image was stored under.
func (s *OrderService) CreateOrderFromReceipt(ctx context.Context, scan *ReceiptScan, payerID, imageURL string) (*models.Order, error) {
	if scan == nil || scan.ParsedData == nil {
		return nil, invalidf("parsed receipt is required")
	}
	if imageURL == "" {
		imageURL = scan.ImageURL
	}
	order := scan.ParsedData.Order(payerID)
	order.ImageURL = imageURL
	order.OCRRawText = scan.OCRRawText
	raw, err := json.Marshal(scan.ParsedData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parsed receipt: %w", err)
	}
	order.ParsedData = string(raw)

	if err := s.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound, orderID)
	}
	return order, nil
}

// ListOrders pages through orders, newest first. A non-positive limit
// means 100; limits above 500 are capped.
func (s *OrderService) ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = defaultOrderLimit
	}
	limit = min(limit, maxOrderLimit)
	offset = max(offset, 0)

	orders, err := s.store.ListOrders(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

// DeleteOrder removes an order with its items and splits.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return notFound(err, ErrOrderNotFound, orderID)
	}
	slog.Info("Order deleted", "order_id", orderID)
	return nil
}

// Export renders the order and its splits as an xlsx workbook and suggests
// a filename for it.
func (s *OrderService) Export(ctx context.Context, orderID string) (*excelize.File, string, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	splits, err := s.store.ListSplits(ctx, orderID)
	if err != nil {
		return nil, "", err
	}

	users := make(map[string]*models.User, len(splits))
	for _, split := range splits {
		user, err := s.store.GetUser(ctx, split.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, "", err
		}
		users[user.ID] = user
	}

	f, err := export.OrderWorkbook(order, splits, users)
	if err != nil {
		return nil, "", err
	}
	return f, export.Filename(order), nil
}

func validateOrder(order *models.Order) error {
	order.Restaurant = strings.TrimSpace(order.Restaurant)
	switch {
	case order.Restaurant == "":
		return invalidf("restaurant is required")
	case order.PaidByUserID == "":
		return invalidf("paid_by_user_id is required")
	case order.Total.IsNegative():
		return invalidf("total must not be negative")
	}
	for _, fee := range []struct {
		name  string
		value interface{ IsNegative() bool }
	}{
		{"subtotal", order.Subtotal},
		{"tax", order.Tax},
		{"delivery_fee", order.DeliveryFee},
		{"tip", order.Tip},
		{"discount", order.Discount},
	} {
		if fee.value.IsNegative() {
			return invalidf("%s must not be negative", fee.name)
		}
	}
	for i, item := range order.Items {
		if strings.TrimSpace(item.Name) == "" {
			return invalidf("item %d: name is required", i+1)
		}
		if item.Price.IsNegative() {
			return invalidf("item %d: price must not be negative", i+1)
		}
		if item.Quantity < 0 {
			return invalidf("item %d: quantity must not be negative", i+1)
		}
	}
	return nil
}
