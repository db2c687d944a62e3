package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"order-sync/internal/dto"
	"order-sync/internal/entities"
	apperrors "order-sync/pkg/errors"
	"order-sync/pkg/types"

	"go.uber.org/zap"
)

// envelope повторяет конверт pkg/api.Response на стороне клиента.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// HTTPClient - реализация Backend поверх REST API бэкофиса.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *HTTPClient) FetchOrder(ctx context.Context, id uint64) (*entities.Order, error) {
	var order entities.Order
	path := fmt.Sprintf("/orders/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) PatchOrder(ctx context.Context, id uint64, patch dto.UpdateOrderDTO) (*entities.Order, error) {
	var order entities.Order
	path := fmt.Sprintf("/orders/%d", id)
	if err := c.do(ctx, http.MethodPatch, path, patch, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) CreateItem(ctx context.Context, orderID uint64, payload dto.CreateOrderItemDTO) (*entities.OrderItem, error) {
	var item entities.OrderItem
	path := fmt.Sprintf("/orders/%d/items", orderID)
	if err := c.do(ctx, http.MethodPost, path, payload, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *HTTPClient) DeleteItem(ctx context.Context, orderID uint64, itemID string) error {
	path := fmt.Sprintf("/orders/%d/items/%s", orderID, url.PathEscape(itemID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) SearchLookup(ctx context.Context, q types.LookupQuery) (*LookupResult, error) {
	values := url.Values{}
	values.Set("kind", string(q.Kind))
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Area != "" {
		values.Set("area", q.Area)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}

	var result LookupResult
	if err := c.do(ctx, http.MethodGet, "/lookup?"+values.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do выполняет запрос, разбирает конверт и раскладывает ошибки: сетевые
// заворачиваются в ErrBackendUnavailable, HTTP-статусы сопоставляются с
// доменными ошибками.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ошибка сериализации тела запроса: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса %s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("бэкенд не ответил",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", apperrors.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения тела ответа: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("ошибка разбора конверта ответа '%s': %w", path, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.FromStatusCode(resp.StatusCode, env.Message)
	}

	if out != nil && len(env.Body) > 0 {
		if err := json.Unmarshal(env.Body, out); err != nil {
			return fmt.Errorf("ошибка разбора тела ответа '%s': %w", path, err)
		}
	}
	return nil
}
