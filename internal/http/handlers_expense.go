package http

import (
	"net/http"

	applog "expense-svc/internal/log"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}

	items, err := s.expenses.List(r.Context(), user, r.URL.Query().Get("month"))
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}

	NewJSONResponse().JSON(newExpenseListResponse(items)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}

	draft, err := ParseExpenseDraft(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	created, err := s.expenses.Create(r.Context(), user, draft)
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}

	s.metrics.incCreated()
	NewJSONResponse().JSON(newExpenseResponse(created)).Write(w)
}

func (s *Server) handleModifyExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}

	draft, err := ParseExpenseDraft(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	updated, err := s.expenses.Modify(r.Context(), user, draft)
	if err != nil {
		writeServiceError(w, r, applog.OpModify, err)
		return
	}

	s.metrics.incModified()
	NewJSONResponse().JSON(newExpenseResponse(updated)).Write(w)
}

// handleDeleteExpense answers 200 with an empty body on success.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}

	id, err := ParseExpenseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if err := s.expenses.Delete(r.Context(), user, id); err != nil {
		writeServiceError(w, r, applog.OpDelete, err)
		return
	}

	s.metrics.incDeleted()
	NewJSONResponse().Empty().Write(w)
}
