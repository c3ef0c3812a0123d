package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/garyjia/disbursement/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const requestColumns = `
	id, request_type, employee_id, employee_name, employee_role,
	amount, currency, category, description, priority,
	status, next_action_by, version,
	department, company,
	business_purpose, expense_start_date, expense_end_date,
	advance_purpose, expected_liquidation_date, planned_expense_date, destination, remarks,
	advance_id, actual_amount, remaining_amount,
	created_at, updated_at`

// RequestRepository implements port.RequestRepository on sqlite
type RequestRepository struct {
	db       *sql.DB
	idPrefix string
	logger   *zap.Logger
}

// NewRequestRepository creates a new request repository. Ids are idPrefix
// followed by a sequence number padded to three digits.
func NewRequestRepository(db *sql.DB, idPrefix string, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{
		db:       db,
		idPrefix: idPrefix,
		logger:   logger,
	}
}

// NextID reserves the next request id
func (r *RequestRepository) NextID(ctx context.Context) (string, error) {
	var seq int64
	err := getExecutor(ctx, r.db).QueryRowContext(ctx,
		`UPDATE request_sequence SET value = value + 1 WHERE name = 'requests' RETURNING value`,
	).Scan(&seq)
	if err != nil {
		r.logger.Error("Failed to reserve request id", zap.Error(err))
		return "", fmt.Errorf("failed to reserve request id: %w", err)
	}
	return fmt.Sprintf("%s%03d", r.idPrefix, seq), nil
}

// Create inserts a new request at version 1
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	nextActionBy, err := json.Marshal(rolesOrEmpty(req.NextActionBy))
	if err != nil {
		return fmt.Errorf("failed to encode next_action_by: %w", err)
	}

	query := `INSERT INTO requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	req.Version = 1
	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		req.ID, req.RequestType, req.EmployeeID, req.EmployeeName, req.EmployeeRole,
		req.Amount, req.Currency, req.Category, req.Description, req.Priority,
		req.Status, string(nextActionBy), req.Version,
		req.Department, req.Company,
		req.BusinessPurpose, timeOrNil(req.ExpenseStartDate), timeOrNil(req.ExpenseEndDate),
		req.AdvancePurpose, timeOrNil(req.ExpectedLiquidationDate), timeOrNil(req.PlannedExpenseDate), req.Destination, req.Remarks,
		stringOrNil(req.AdvanceID), decimalOrNil(req.ActualAmount), decimalOrNil(req.RemainingAmount),
		req.CreatedAt.UTC(), req.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// GetByID retrieves a request by id
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	req, err := scanRequest(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: request %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get request by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return req, nil
}

// Update writes the mutable workflow fields guarded by the loaded version
func (r *RequestRepository) Update(ctx context.Context, req *entity.Request) error {
	nextActionBy, err := json.Marshal(rolesOrEmpty(req.NextActionBy))
	if err != nil {
		return fmt.Errorf("failed to encode next_action_by: %w", err)
	}

	query := `
		UPDATE requests
		SET status = ?, next_action_by = ?, remaining_amount = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		req.Status, string(nextActionBy), decimalOrNil(req.RemainingAmount), req.UpdatedAt.UTC(),
		req.ID, req.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s at version %d", port.ErrStaleRequest, req.ID, req.Version)
	}

	req.Version++
	return nil
}

// List returns requests matching filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter entity.RequestFilter, page port.Page) ([]*entity.Request, int, error) {
	where, args := buildRequestWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM requests` + where
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count requests", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	query := `SELECT ` + requestColumns + ` FROM requests` + where + ` ORDER BY created_at DESC, rowid DESC`
	if page.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit, page.Offset())
	}

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, total, rows.Err()
}

// Delete removes a request; its timeline goes with it
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete request", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: request %s", workflow.ErrNotFound, id)
	}
	return nil
}

func buildRequestWhere(f entity.RequestFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.RequestType != "" {
		clauses = append(clauses, "request_type = ?")
		args = append(args, f.RequestType)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, f.Priority)
	}
	if f.EmployeeID != 0 {
		clauses = append(clauses, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.ActionBy != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(requests.next_action_by) WHERE json_each.value = ?)")
		args = append(args, f.ActionBy)
	}
	if f.AdvanceID != "" {
		clauses = append(clauses, "advance_id = ?")
		args = append(args, f.AdvanceID)
	}
	if f.OpenOnly {
		clauses = append(clauses, "status NOT IN (?, ?, ?)")
		args = append(args, entity.StatusPaid, entity.StatusRejected, entity.StatusLiquidated)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanRequest(s scanner) (*entity.Request, error) {
	var (
		req                                 entity.Request
		nextActionBy                        string
		expenseStart, expenseEnd            sql.NullTime
		expectedLiquidation, plannedExpense sql.NullTime
		advanceID                           sql.NullString
		actualAmount, remainingAmount       decimal.NullDecimal
	)

	err := s.Scan(
		&req.ID, &req.RequestType, &req.EmployeeID, &req.EmployeeName, &req.EmployeeRole,
		&req.Amount, &req.Currency, &req.Category, &req.Description, &req.Priority,
		&req.Status, &nextActionBy, &req.Version,
		&req.Department, &req.Company,
		&req.BusinessPurpose, &expenseStart, &expenseEnd,
		&req.AdvancePurpose, &expectedLiquidation, &plannedExpense, &req.Destination, &req.Remarks,
		&advanceID, &actualAmount, &remainingAmount,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(nextActionBy), &req.NextActionBy); err != nil {
		return nil, fmt.Errorf("failed to decode next_action_by for %s: %w", req.ID, err)
	}

	req.ExpenseStartDate = timePtr(expenseStart)
	req.ExpenseEndDate = timePtr(expenseEnd)
	req.ExpectedLiquidationDate = timePtr(expectedLiquidation)
	req.PlannedExpenseDate = timePtr(plannedExpense)
	req.AdvanceID = advanceID.String
	if actualAmount.Valid {
		req.ActualAmount = &actualAmount.Decimal
	}
	if remainingAmount.Valid {
		req.RemainingAmount = &remainingAmount.Decimal
	}

	return &req, nil
}

func rolesOrEmpty(roles []entity.Role) []entity.Role {
	if roles == nil {
		return []entity.Role{}
	}
	return roles
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringOrNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func decimalOrNil(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

var _ port.RequestRepository = (*RequestRepository)(nil)
