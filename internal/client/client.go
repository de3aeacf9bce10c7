// Package client talks to the booking API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/slotselect"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a client for the API rooted at baseURL, e.g. http://localhost:8080.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createBookingRequest struct {
	ServiceID       string    `json:"service_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	SongCount       int       `json:"song_count,omitempty"`
	BeatLicenseID   string    `json:"beat_license_id,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

type paymentIntentRequest struct {
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func (c *Client) CreateBooking(ctx context.Context, draft slotselect.Draft) (domain.Booking, error) {
	var b domain.Booking
	err := c.do(ctx, http.MethodPost, "/bookings", createBookingRequest{
		ServiceID:       draft.ServiceID,
		Start:           draft.Start,
		End:             draft.End,
		DurationMinutes: draft.DurationMinutes,
		SongCount:       draft.SongCount,
		BeatLicenseID:   draft.BeatLicenseID,
		Notes:           draft.Notes,
	}, &b)
	return b, err
}

func (c *Client) CreatePaymentIntent(ctx context.Context, bookingID string, amount int64) (slotselect.PaymentIntent, error) {
	var pi slotselect.PaymentIntent
	err := c.do(ctx, http.MethodPost, "/payments/intent", paymentIntentRequest{BookingID: bookingID, Amount: amount}, &pi)
	return pi, err
}

func (c *Client) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	var b domain.Booking
	err := c.do(ctx, http.MethodGet, "/bookings/"+url.PathEscape(id), nil, &b)
	return b, err
}

func (c *Client) GetService(ctx context.Context, id string) (domain.Service, error) {
	var svc domain.Service
	err := c.do(ctx, http.MethodGet, "/services/"+url.PathEscape(id), nil, &svc)
	return svc, err
}

func (c *Client) ListServices(ctx context.Context) ([]domain.Service, error) {
	var services []domain.Service
	err := c.do(ctx, http.MethodGet, "/services", nil, &services)
	return services, err
}

// Calendar returns the occupied intervals in [from, to) shaped as bookings,
// ready for the slot selection machine.
func (c *Client) Calendar(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	var intervals []struct {
		Start  time.Time            `json:"start"`
		End    time.Time            `json:"end"`
		Status domain.BookingStatus `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/calendar?"+q.Encode(), nil, &intervals); err != nil {
		return nil, err
	}
	bookings := make([]domain.Booking, 0, len(intervals))
	for _, iv := range intervals {
		bookings = append(bookings, domain.Booking{Start: iv.Start, End: iv.End, Status: iv.Status})
	}
	return bookings, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError rebuilds the server's typed error so callers can branch on
// domain.KindOf and domain.ReasonOf as they would in process.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e errorResponse
	if err := json.Unmarshal(data, &e); err != nil || e.Error == "" {
		return &domain.Error{
			Kind:    domain.KindInternal,
			Message: fmt.Sprintf("unexpected response %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}
	kind := domain.ErrorKind(e.Kind)
	if kind == "" {
		kind = domain.KindInternal
	}
	return &domain.Error{Kind: kind, Message: e.Error, Reason: e.Reason}
}

var _ slotselect.Submitter = (*Client)(nil)
