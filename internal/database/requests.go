package database

import (
	"context"
	"fmt"
	"time"

	"traderesonance/server/internal/models"
)

// CreateRequest stores a pending change proposal.
func (d *Database) CreateRequest(ctx context.Context, fields models.EntryFields, submitIP string) (*models.EntryRequest, error) {
	fields.Normalize()
	req := &models.EntryRequest{
		City:             fields.City,
		Product:          fields.Product,
		Price:            fields.Price,
		Trend:            fields.Trend,
		Percent:          fields.Percent,
		IsProductionCity: fields.IsProductionCity,
		Status:           models.RequestPending,
		SubmitIP:         submitIP,
	}
	if err := d.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return req, nil
}

// ListRequests returns requests with the given status, newest first. An empty
// status lists everything.
func (d *Database) ListRequests(ctx context.Context, status models.RequestStatus) ([]models.EntryRequest, error) {
	q := d.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	requests := []models.EntryRequest{}
	if err := q.Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

func (d *Database) GetRequest(ctx context.Context, id uint) (*models.EntryRequest, error) {
	var req models.EntryRequest
	if err := d.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// ApproveRequest merges a pending request into the entry table and marks it
// approved.
func (d *Database) ApproveRequest(ctx context.Context, id uint) (*models.Entry, error) {
	req, err := d.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestPending {
		return nil, ErrRequestClosed
	}

	entry, _, err := d.UpsertEntry(ctx, req.Fields())
	if err != nil {
		return nil, err
	}
	if err := d.closeRequest(ctx, req, models.RequestApproved); err != nil {
		return nil, err
	}
	return entry, nil
}

// RejectRequest marks a pending request rejected without touching entries.
func (d *Database) RejectRequest(ctx context.Context, id uint) (*models.EntryRequest, error) {
	req, err := d.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestPending {
		return nil, ErrRequestClosed
	}
	if err := d.closeRequest(ctx, req, models.RequestRejected); err != nil {
		return nil, err
	}
	return req, nil
}

func (d *Database) closeRequest(ctx context.Context, req *models.EntryRequest, status models.RequestStatus) error {
	now := time.Now().UTC()
	// status guard keeps two admins from deciding the same request twice
	result := d.db.WithContext(ctx).Model(req).
		Where("status = ?", models.RequestPending).
		Updates(map[string]interface{}{"status": status, "decided_at": now})
	if result.Error != nil {
		return fmt.Errorf("failed to update request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRequestClosed
	}
	req.Status = status
	req.DecidedAt = &now
	return nil
}

// PendingCount returns the number of requests awaiting a decision.
func (d *Database) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.EntryRequest{}).
		Where("status = ?", models.RequestPending).
		Count(&count).Error
	return count, err
}
