// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kintai/internal/attendance"
	"github.com/hitoshi/kintai/internal/model"
)

// AttendanceServiceInterface は打刻ハンドラーが必要とするサービスインターフェース。
type AttendanceServiceInterface interface {
	// ClockIn は出勤打刻レコードを作成する。
	ClockIn(ctx context.Context, employeeID string) (*attendance.ClockInResult, error)
	// ClockOut は最新のオープンレコードに退勤時刻を設定する。
	ClockOut(ctx context.Context, employeeID string) (time.Time, error)
	// DailySnapshot は指定日の出勤状況を集計する。
	DailySnapshot(ctx context.Context, date time.Time) (*model.DailySnapshot, error)
	// RecordsForEmployeeInRange は指定従業員の期間内レコードを返す。
	RecordsForEmployeeInRange(ctx context.Context, employeeID string, from, to time.Time) ([]*model.AttendanceRecord, error)
}

// EmployeeFinder は従業員の存在確認に必要なインターフェース。
// repository.EmployeeRepositoryの部分集合として定義する。
type EmployeeFinder interface {
	FindByID(ctx context.Context, id string) (*model.Employee, error)
}

// ClockMetricsRecorder は打刻APIの結果メトリクス記録インターフェース。
type ClockMetricsRecorder interface {
	RecordClockIn(result string)
	RecordClockOut(result string)
}

// AttendanceHandler は打刻と照会のHTTPハンドラー。
type AttendanceHandler struct {
	service   AttendanceServiceInterface
	employees EmployeeFinder
	metrics   ClockMetricsRecorder
}

// NewAttendanceHandler はAttendanceHandlerを生成する。
func NewAttendanceHandler(service AttendanceServiceInterface, employees EmployeeFinder, metrics ClockMetricsRecorder) *AttendanceHandler {
	return &AttendanceHandler{
		service:   service,
		employees: employees,
		metrics:   metrics,
	}
}

// clockRequest は出勤・退勤打刻リクエストのボディ。
type clockRequest struct {
	EmployeeID string `json:"employee_id"`
}

// clockInResponse は出勤打刻のAPIレスポンス。
type clockInResponse struct {
	RecordID   int64     `json:"record_id"`
	EmployeeID string    `json:"employee_id"`
	EntryTime  time.Time `json:"entry_time"`
}

// clockOutResponse は退勤打刻のAPIレスポンス。
type clockOutResponse struct {
	EmployeeID string    `json:"employee_id"`
	ExitTime   time.Time `json:"exit_time"`
}

// snapshotResponse は日次スナップショットのAPIレスポンス。
type snapshotResponse struct {
	Date    string                `json:"date"`
	Present int                   `json:"present"`
	Left    int                   `json:"left"`
	Total   int                   `json:"total"`
	Rows    []snapshotRowResponse `json:"rows"`
}

// snapshotRowResponse は日次スナップショットの1行のAPIレスポンス。
type snapshotRowResponse struct {
	RecordID     int64      `json:"record_id"`
	EmployeeID   string     `json:"employee_id"`
	EmployeeName string     `json:"employee_name"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     *time.Time `json:"exit_time,omitempty"`
}

// recordResponse は打刻レコードのAPIレスポンス。
type recordResponse struct {
	RecordID  int64      `json:"record_id"`
	WorkDate  string     `json:"work_date"`
	EntryTime time.Time  `json:"entry_time"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`
}

// ClockIn は出勤打刻を記録する。
// POST /api/attendance/clock-in
func (h *AttendanceHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	var req clockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	result, err := h.service.ClockIn(r.Context(), req.EmployeeID)
	if err != nil {
		h.metrics.RecordClockIn(clockResultLabel(err))
		handleServiceError(w, err)
		return
	}
	h.metrics.RecordClockIn("ok")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(clockInResponse{
		RecordID:   result.RecordID,
		EmployeeID: req.EmployeeID,
		EntryTime:  result.EntryTime,
	})
}

// ClockOut は退勤打刻を記録する。
// POST /api/attendance/clock-out
func (h *AttendanceHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	var req clockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	exitTime, err := h.service.ClockOut(r.Context(), req.EmployeeID)
	if err != nil {
		h.metrics.RecordClockOut(clockResultLabel(err))
		handleServiceError(w, err)
		return
	}
	h.metrics.RecordClockOut("ok")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(clockOutResponse{
		EmployeeID: req.EmployeeID,
		ExitTime:   exitTime,
	})
}

// Snapshot は指定日（省略時は当日）の出勤状況を返す。
// GET /api/attendance/snapshot?date=YYYY-MM-DD
func (h *AttendanceHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(raw))
			return
		}
		date = parsed
	}

	snapshot, err := h.service.DailySnapshot(r.Context(), date)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	rows := make([]snapshotRowResponse, len(snapshot.Rows))
	for i, row := range snapshot.Rows {
		rows[i] = snapshotRowResponse{
			RecordID:     row.RecordID,
			EmployeeID:   row.EmployeeID,
			EmployeeName: row.EmployeeName,
			EntryTime:    row.EntryTime,
			ExitTime:     exitTimePtr(row.ExitTime, row.HasExit),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshotResponse{
		Date:    snapshot.Date.Format("2006-01-02"),
		Present: snapshot.Present,
		Left:    snapshot.Left,
		Total:   snapshot.Total,
		Rows:    rows,
	})
}

// ListRecords は従業員の期間内打刻レコードを返す。
// GET /api/employees/{id}/records?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AttendanceHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	employee, err := h.employees.FindByID(r.Context(), employeeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if employee == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewEmployeeNotFoundError(employeeID))
		return
	}

	now := time.Now()
	// 既定の照会期間は当月1日から当日まで
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(raw))
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(raw))
			return
		}
		to = parsed
	}

	records, err := h.service.RecordsForEmployeeInRange(r.Context(), employeeID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]recordResponse, len(records))
	for i, rec := range records {
		results[i] = recordResponse{
			RecordID:  rec.ID,
			WorkDate:  rec.WorkDate.Format("2006-01-02"),
			EntryTime: rec.EntryTime,
			ExitTime:  exitTimePtr(rec.ExitTime, rec.HasExit),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// exitTimePtr は退勤済みの場合のみ退勤時刻へのポインタを返す。
func exitTimePtr(exitTime time.Time, hasExit bool) *time.Time {
	if !hasExit {
		return nil
	}
	return &exitTime
}

// clockResultLabel は打刻エラーをメトリクスの結果ラベルに変換する。
func clockResultLabel(err error) string {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return "error"
	}
	switch apiErr.Code {
	case model.ErrCodeEntryAlreadyOpen:
		return "conflict"
	case model.ErrCodeNoOpenEntry:
		return "no_open"
	default:
		return "error"
	}
}

// apiErrorResponse はAPIエラーレスポンスのJSONフォーマット。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestBody はリクエストボディ解析失敗の400レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingEmployeeID, model.ErrCodeInvalidDate:
		return http.StatusBadRequest
	case model.ErrCodeNoOpenEntry, model.ErrCodeEntryAlreadyOpen:
		return http.StatusConflict
	case model.ErrCodeEmployeeNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
