// Package httpapi exposes the services as a JSON API on net/http.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MJ-02/BillSplitter/internal/metrics"
	"github.com/MJ-02/BillSplitter/internal/service"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to the services.
type Server struct {
	users     *service.UserService
	orders    *service.OrderService
	splits    *service.SplitService
	reminders *service.ReminderService
	validate  *validator.Validate
}

func NewServer(users *service.UserService, orders *service.OrderService, splits *service.SplitService, reminders *service.ReminderService) *Server {
	return &Server{
		users:     users,
		orders:    orders,
		splits:    splits,
		reminders: reminders,
		validate:  newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Routes returns the mux with every API and ops route registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/users", s.createUser)
	mux.HandleFunc("GET /api/users", s.listUsers)
	mux.HandleFunc("GET /api/users/{id}", s.getUser)
	mux.HandleFunc("PUT /api/users/{id}", s.updateUser)
	mux.HandleFunc("DELETE /api/users/{id}", s.deleteUser)

	mux.HandleFunc("POST /api/orders", s.createOrder)
	mux.HandleFunc("GET /api/orders", s.listOrders)
	mux.HandleFunc("POST /api/orders/parse-receipt", s.parseReceipt)
	mux.HandleFunc("GET /api/orders/{id}", s.getOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", s.deleteOrder)
	mux.HandleFunc("GET /api/orders/{id}/summary", s.orderSummary)
	mux.HandleFunc("GET /api/orders/{id}/export", s.exportOrder)

	mux.HandleFunc("POST /api/splits", s.createSplit)
	mux.HandleFunc("POST /api/splits/bulk", s.reconcileSplits)
	mux.HandleFunc("GET /api/splits/{id}", s.getSplit)
	mux.HandleFunc("GET /api/splits/order/{order_id}", s.listSplits)
	mux.HandleFunc("PUT /api/splits/{id}/paid", s.markPaid)
	mux.HandleFunc("POST /api/splits/{id}/send-reminder", s.sendReminder)
	mux.HandleFunc("POST /api/splits/order/{order_id}/send-all-reminders", s.sendAllReminders)
	mux.HandleFunc("DELETE /api/splits/{id}", s.deleteSplit)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps service and storage errors onto status codes. Messages
// of unexpected errors are logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrNoValidAssignments):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrSplitNotFound),
		errors.Is(err, service.ErrPayerNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", service.ErrInvalidArgument, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", service.ErrInvalidArgument, describe(err))
	}
	return nil
}

// describe flattens validator errors into one readable line.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
