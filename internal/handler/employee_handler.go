package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/kintai/internal/model"
)

// EmployeeListerInterface は従業員ハンドラーが必要とするインターフェース。
// repository.EmployeeRepositoryの部分集合として定義する。
type EmployeeListerInterface interface {
	ListActive(ctx context.Context) ([]*model.Employee, error)
}

// EmployeeHandler は従業員照会のHTTPハンドラー。
type EmployeeHandler struct {
	employees EmployeeListerInterface
}

// NewEmployeeHandler はEmployeeHandlerを生成する。
func NewEmployeeHandler(employees EmployeeListerInterface) *EmployeeHandler {
	return &EmployeeHandler{employees: employees}
}

// employeeResponse は従業員情報のAPIレスポンス。
// メールアドレス等の連絡先は含めない。
type employeeResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ShiftProfileID string `json:"shift_profile_id,omitempty"`
}

// ListEmployees はアクティブな従業員の一覧を返す。
// GET /api/employees
func (h *EmployeeHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.employees.ListActive(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]employeeResponse, len(employees))
	for i, e := range employees {
		results[i] = employeeResponse{
			ID:             e.ID,
			Name:           e.Name,
			ShiftProfileID: e.ShiftProfileID,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}
