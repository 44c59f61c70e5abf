package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/MJ-02/BillSplitter/internal/calculator"
	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/service"
)

type splitRequest struct {
	OrderID    string          `json:"order_id" validate:"required"`
	UserID     string          `json:"user_id" validate:"required"`
	ItemIDs    []string        `json:"item_ids" validate:"dive,required"`
	AmountOwed decimal.Decimal `json:"amount_owed"`
}

type bulkSplitRequest struct {
	OrderID     string                  `json:"order_id" validate:"required"`
	Assignments []calculator.Assignment `json:"assignments" validate:"dive"`
}

type reminderResponse struct {
	SplitID string                   `json:"split_id"`
	Result  *service.ReminderOutcome `json:"sms_result"`
	Split   *models.Split            `json:"split,omitempty"`
}

func (s *Server) createSplit(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	split := &models.Split{
		OrderID:    req.OrderID,
		UserID:     req.UserID,
		ItemIDs:    req.ItemIDs,
		AmountOwed: req.AmountOwed,
	}
	if err := s.splits.CreateSplit(r.Context(), split); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, split)
}

// reconcileSplits replaces every split of the order with the allocation of
// the submitted assignments.
func (s *Server) reconcileSplits(w http.ResponseWriter, r *http.Request) {
	var req bulkSplitRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	splits, err := s.splits.Reconcile(r.Context(), req.OrderID, req.Assignments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, splits)
}

func (s *Server) getSplit(w http.ResponseWriter, r *http.Request) {
	split, err := s.splits.GetSplit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, split)
}

func (s *Server) listSplits(w http.ResponseWriter, r *http.Request) {
	splits, err := s.splits.ListSplits(r.Context(), r.PathValue("order_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, splits)
}

func (s *Server) markPaid(w http.ResponseWriter, r *http.Request) {
	paid, err := strconv.ParseBool(r.URL.Query().Get("paid"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: paid must be true or false", service.ErrInvalidArgument))
		return
	}
	split, err := s.splits.MarkPaid(r.Context(), r.PathValue("id"), paid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, split)
}

func (s *Server) sendReminder(w http.ResponseWriter, r *http.Request) {
	splitID := r.PathValue("id")
	outcome, err := s.reminders.Remind(r.Context(), splitID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := reminderResponse{SplitID: splitID, Result: outcome}
	split, err := s.splits.GetSplit(r.Context(), splitID)
	switch {
	case err == nil:
		resp.Split = split
	case !errors.Is(err, service.ErrSplitNotFound):
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) sendAllReminders(w http.ResponseWriter, r *http.Request) {
	result, err := s.reminders.RemindAll(r.Context(), r.PathValue("order_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) deleteSplit(w http.ResponseWriter, r *http.Request) {
	if err := s.splits.DeleteSplit(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
