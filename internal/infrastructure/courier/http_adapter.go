package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
)

const (
	// maxResponseSize limits the response body read from the courier
	maxResponseSize = 1 << 20
	pickupPath      = "/api/cmu/create.json"
	paymentModePick = "Pickup"
)

// HTTPAdapter books reverse pickups over the courier's HTTPS API
type HTTPAdapter struct {
	config     *HTTPConfig
	httpClient *http.Client
}

// NewHTTPAdapter creates a client. The http.Client timeout bounds every call
// even when the caller's context has no deadline.
func NewHTTPAdapter(cfg *HTTPConfig) (*HTTPAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.timeout()},
	}, nil
}

// Name returns the courier partner name recorded on returns
func (a *HTTPAdapter) Name() string {
	return a.config.Name
}

// IsEnabled is always true for a configured client
func (a *HTTPAdapter) IsEnabled() bool {
	return true
}

// CreatePickup books a reverse pickup. A response the courier marks as failed
// is returned with Success=false and the raw body, not as an error.
func (a *HTTPAdapter) CreatePickup(ctx context.Context, req returns.PickupRequest) (*returns.PickupResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.timeout())
	defer cancel()

	body, err := json.Marshal(pickupRequestBody{
		PickupLocation: a.config.WarehouseCode,
		Shipments:      []pickupShipment{a.toShipment(req)},
	})
	if err != nil {
		return nil, shared.NewCourierError("failed to encode pickup request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+pickupPath, bytes.NewReader(body))
	if err != nil {
		return nil, shared.NewCourierError("failed to create pickup request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Token "+a.config.APIKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, shared.NewCourierError("courier unavailable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, shared.NewCourierError("failed to read courier response", err)
	}

	if resp.StatusCode >= 400 {
		return &returns.PickupResult{Success: false, Raw: diagnostic(raw, resp.StatusCode)},
			shared.NewCourierError(fmt.Sprintf("courier returned HTTP %d", resp.StatusCode), nil)
	}

	var parsed pickupResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &returns.PickupResult{Success: false, Raw: diagnostic(raw, resp.StatusCode)},
			shared.NewCourierError("failed to parse courier response", err)
	}

	waybill := parsed.waybill()
	return &returns.PickupResult{
		Success: parsed.Success && waybill != "",
		Waybill: waybill,
		Raw:     json.RawMessage(raw),
	}, nil
}

func (a *HTTPAdapter) toShipment(req returns.PickupRequest) pickupShipment {
	return pickupShipment{
		OrderReference:  req.ReferenceNumber,
		Name:            req.CustomerName,
		Phone:           req.Phone,
		Address:         req.Address,
		City:            req.City,
		State:           req.State,
		Pincode:         req.Pincode,
		ProductsDesc:    req.ProductDescription,
		Quantity:        req.Quantity,
		WeightGrams:     req.WeightGrams,
		LengthCm:        req.Dimensions.LengthCm,
		WidthCm:         req.Dimensions.WidthCm,
		HeightCm:        req.Dimensions.HeightCm,
		PaymentMode:     paymentModePick,
		PickupDate:      req.PickupDate,
		ReturnWarehouse: a.config.WarehouseCode,
	}
}

// diagnostic keeps a non-JSON courier body as a JSON document so it can be
// stored in the courier_response column
func diagnostic(raw []byte, statusCode int) json.RawMessage {
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	out, _ := json.Marshal(map[string]any{
		"http_status": statusCode,
		"body":        string(raw),
	})
	return out
}

var _ returns.CourierAdapter = (*HTTPAdapter)(nil)
