package petshop

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

	"petagenda/internal/config"
	"petagenda/internal/metrics"
	"petagenda/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxBodySize = 4 << 20

type ctxKey int

const (
	tokenKey ctxKey = iota
	requestIDKey
)

// WithToken attaches the session bearer token to outgoing requests made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// WithRequestID makes requests made with ctx carry id as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func tokenFrom(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey).(string)
	return s
}

func requestIDFrom(ctx context.Context) string {
	if s, ok := ctx.Value(requestIDKey).(string); ok && s != "" {
		return s
	}
	return uuid.NewString()
}

// Client talks to the scheduling REST backend. Paths always end in "/".
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zerolog.Logger

	Clients      *Resource[models.Client]
	Pets         *Resource[models.Pet]
	Services     *Resource[models.Service]
	Appointments *Resource[models.Appointment]
}

func NewClient(cfg config.BackendConfig, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = models.DefaultBackendTimeout * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
	c.Clients = newResource[models.Client](c, "clientes")
	c.Pets = newResource[models.Pet](c, "pets")
	c.Services = newResource[models.Service](c, "servicos")
	c.Appointments = newResource[models.Appointment](c, "agendamentos")
	return c
}

// do performs one request. out may be nil; a *json.RawMessage receives the
// undecoded body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("backend throttle: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	c.addHeaders(ctx, req, body != nil)

	resource := resourceLabel(path)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveBackend(method, resource, 0, time.Since(start))
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("Backend request failed")
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	metrics.ObserveBackend(method, resource, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", ErrTransport, method, path, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) addHeaders(ctx context.Context, req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-ID", requestIDFrom(ctx))
}

func resourceLabel(path string) string {
	trimmed := strings.Trim(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

// AvailableSlots asks the backend which times are free for serviceID on
// date. Values are returned as sent.
func (c *Client) AvailableSlots(ctx context.Context, date models.Date, serviceID int64) ([]string, error) {
	query := url.Values{}
	query.Set("data", date.String())
	query.Set("servico_id", fmt.Sprintf("%d", serviceID))

	var resp models.AvailableSlots
	if err := c.do(ctx, http.MethodGet, "/agendamentos/horarios_disponiveis/", query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Slots == nil {
		return []string{}, nil
	}
	return resp.Slots, nil
}

func (c *Client) ListClients(ctx context.Context) ([]models.Client, error) {
	return c.Clients.List(ctx, nil)
}

func (c *Client) ListPets(ctx context.Context) ([]models.Pet, error) {
	return c.Pets.List(ctx, nil)
}

func (c *Client) ListServices(ctx context.Context) ([]models.Service, error) {
	return c.Services.List(ctx, nil)
}

func (c *Client) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	return c.Appointments.List(ctx, nil)
}

func (c *Client) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	return c.Clients.Get(ctx, id)
}

func (c *Client) GetPet(ctx context.Context, id int64) (*models.Pet, error) {
	return c.Pets.Get(ctx, id)
}

func (c *Client) GetService(ctx context.Context, id int64) (*models.Service, error) {
	return c.Services.Get(ctx, id)
}

func (c *Client) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	return c.Appointments.Get(ctx, id)
}

func (c *Client) CreateAppointment(ctx context.Context, in models.NewAppointment) (*models.Appointment, error) {
	return c.Appointments.Create(ctx, in)
}

// UpdateAppointment sends the full record, as the backend expects on PUT.
func (c *Client) UpdateAppointment(ctx context.Context, appt models.Appointment) (*models.Appointment, error) {
	return c.Appointments.Update(ctx, appt.ID, appt)
}

func (c *Client) DeleteAppointment(ctx context.Context, id int64) error {
	return c.Appointments.Delete(ctx, id)
}
