// Package smm — перепродажа услуг внешней SMM-панели.
// Панель опрашивается по обычному для таких панелей протоколу:
// POST form-data с ключом и полем action.
package smm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"starsbot/internal/common"
)

// APIService — услуга из каталога панели.
type APIService struct {
	ID       int64  `json:"service,string"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Rate     string `json:"rate"` // цена панели за 1000, строкой
	Min      int64  `json:"min,string"`
	Max      int64  `json:"max,string"`
}

// RatePer1000 парсит цену панели за 1000 единиц.
func (s *APIService) RatePer1000() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s.Rate), 64)
}

type addResponse struct {
	OrderID int64  `json:"order"`
	Error   string `json:"error"`
}

// Client — HTTP-клиент панели.
type Client struct {
	apiURL string
	apiKey string
	http   *http.Client
}

// NewClient создаёт клиента панели.
func NewClient(apiURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) post(ctx context.Context, form url.Values) ([]byte, error) {
	form.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("запрос к панели: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSMMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: статус %d", common.ErrSMMUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSMMUnavailable, err)
	}
	return body, nil
}

// Services запрашивает каталог услуг панели.
func (c *Client) Services(ctx context.Context) ([]APIService, error) {
	body, err := c.post(ctx, url.Values{"action": {"services"}})
	if err != nil {
		return nil, err
	}
	var services []APIService
	if err := json.Unmarshal(body, &services); err != nil {
		return nil, fmt.Errorf("%w: ответ каталога: %v", common.ErrSMMUnavailable, err)
	}
	return services, nil
}

type balanceResponse struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// Balance запрашивает остаток средств на счёте панели.
func (c *Client) Balance(ctx context.Context) (string, string, error) {
	body, err := c.post(ctx, url.Values{"action": {"balance"}})
	if err != nil {
		return "", "", err
	}
	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", fmt.Errorf("%w: ответ баланса: %v", common.ErrSMMUnavailable, err)
	}
	return resp.Balance, resp.Currency, nil
}

// Add размещает заказ на панели и возвращает её номер заказа.
func (c *Client) Add(ctx context.Context, serviceID int64, link string, quantity int64) (int64, error) {
	body, err := c.post(ctx, url.Values{
		"action":   {"add"},
		"service":  {strconv.FormatInt(serviceID, 10)},
		"link":     {link},
		"quantity": {strconv.FormatInt(quantity, 10)},
	})
	if err != nil {
		return 0, err
	}

	var resp addResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: ответ заказа: %v", common.ErrSMMUnavailable, err)
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("%w: %s", common.ErrSMMUnavailable, resp.Error)
	}
	if resp.OrderID == 0 {
		return 0, fmt.Errorf("%w: панель не вернула номер заказа", common.ErrSMMUnavailable)
	}
	return resp.OrderID, nil
}
