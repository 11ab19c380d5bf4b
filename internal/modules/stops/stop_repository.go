package stops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"freight-ops/internal/models"
)

// RepositoryInterface defines every upstream TMS operation this module needs.
// Reads return the latest stop snapshot; writes propose a status change. The
// authoritative status always lives upstream, so writes return no record and
// callers re-read after a successful mutation.
type RepositoryInterface interface {
	// FindStopByID fetches the current snapshot of a single stop.
	FindStopByID(ctx context.Context, stopID string) (*models.Stop, error)
	// ListStopsByOrder fetches all stops for an order in sequence order.
	ListStopsByOrder(ctx context.Context, orderID string) ([]*models.Stop, error)
	// UpdateStopStatus submits a generic status transition.
	UpdateStopStatus(ctx context.Context, cmd models.TransitionCommand) error
	// MarkArrived and MarkDeparted are the upstream's named shortcut
	// operations; the upstream records the corresponding timestamp itself.
	MarkArrived(ctx context.Context, stopID, orderID string) error
	MarkDeparted(ctx context.Context, stopID, orderID string) error
}

// Repository implements RepositoryInterface against the TMS REST API.
type Repository struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewRepository creates a TMS-backed stop repository.
func NewRepository(baseURL, token string, timeout time.Duration) RepositoryInterface {
	return &Repository{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (r *Repository) FindStopByID(ctx context.Context, stopID string) (*models.Stop, error) {
	var stop models.Stop
	if err := r.do(ctx, http.MethodGet, "/api/stops/"+stopID, nil, &stop); err != nil {
		return nil, fmt.Errorf("repository.FindStopByID: %w", err)
	}
	return &stop, nil
}

func (r *Repository) ListStopsByOrder(ctx context.Context, orderID string) ([]*models.Stop, error) {
	var stopList []*models.Stop
	if err := r.do(ctx, http.MethodGet, "/api/orders/"+orderID+"/stops", nil, &stopList); err != nil {
		return nil, fmt.Errorf("repository.ListStopsByOrder: %w", err)
	}
	return stopList, nil
}

func (r *Repository) UpdateStopStatus(ctx context.Context, cmd models.TransitionCommand) error {
	body := map[string]string{
		"order_id":   cmd.OrderID,
		"status":     string(cmd.TargetStatus),
		"request_id": cmd.RequestID,
	}
	if err := r.do(ctx, http.MethodPatch, "/api/stops/"+cmd.StopID+"/status", body, nil); err != nil {
		return fmt.Errorf("repository.UpdateStopStatus: %w", err)
	}
	return nil
}

func (r *Repository) MarkArrived(ctx context.Context, stopID, orderID string) error {
	body := map[string]string{"order_id": orderID}
	if err := r.do(ctx, http.MethodPost, "/api/stops/"+stopID+"/arrive", body, nil); err != nil {
		return fmt.Errorf("repository.MarkArrived: %w", err)
	}
	return nil
}

func (r *Repository) MarkDeparted(ctx context.Context, stopID, orderID string) error {
	body := map[string]string{"order_id": orderID}
	if err := r.do(ctx, http.MethodPost, "/api/stops/"+stopID+"/depart", body, nil); err != nil {
		return fmt.Errorf("repository.MarkDeparted: %w", err)
	}
	return nil
}

// do issues one API request and decodes the response into out when non-nil.
func (r *Repository) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return fmt.Errorf("tms api %s %s: %s (status %d)", method, path, apiErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("tms api %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
