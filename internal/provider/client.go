// Package provider is the HTTP client for the external rank-data provider.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"rankwatch/internal/config"
)

const (
	pathTaskPost     = "/v3/serp/google/organic/task_post"
	pathTaskGet      = "/v3/serp/google/organic/task_get/advanced/"
	pathLive         = "/v3/serp/google/organic/live/advanced"
	pathSearchVolume = "/v3/keywords_data/google_ads/search_volume/live"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Login      string // basic auth; ignored when HTTPClient carries its own auth
	Password   string
	HTTPClient *http.Client
	RatePerSec int
	Timeout    time.Duration
	Depth      int
	MaxBatch   int
	Logger     *slog.Logger
}

// Client talks to the ranking provider's JSON API.
type Client struct {
	baseURL  string
	login    string
	password string
	http     *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	depth    int
	maxBatch int
	log      *slog.Logger
}

// New creates a provider client.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Depth <= 0 {
		opts.Depth = 100
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 100
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		baseURL:  opts.BaseURL,
		login:    opts.Login,
		password: opts.Password,
		http:     opts.HTTPClient,
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec),
		timeout:  opts.Timeout,
		depth:    opts.Depth,
		maxBatch: opts.MaxBatch,
		log:      opts.Logger,
	}
}

// NewFromConfig builds a client using the configured auth mode.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) *Client {
	opts := Options{
		BaseURL:    cfg.ProviderBaseURL,
		RatePerSec: cfg.ProviderRatePerSec,
		Timeout:    cfg.ProviderTimeout,
		Depth:      cfg.SearchDepth,
		MaxBatch:   cfg.ProviderMaxBatch,
		Logger:     logger,
	}

	if cfg.ProviderAuthMode == config.ProviderAuthOAuth2 {
		cc := clientcredentials.Config{
			ClientID:     cfg.ProviderClientID,
			ClientSecret: cfg.ProviderClientSecret,
			TokenURL:     cfg.ProviderTokenURL,
		}
		opts.HTTPClient = cc.Client(ctx)
	} else {
		opts.Login = cfg.ProviderLogin
		opts.Password = cfg.ProviderPassword
	}

	return New(opts)
}

// MaxBatch is the largest number of items accepted by one SubmitBatch call.
func (c *Client) MaxBatch() int {
	return c.maxBatch
}

// SubmitBatch posts rank-check tasks and returns correlation IDs keyed by tag.
// Items the provider refused are absent from the map.
func (c *Client) SubmitBatch(ctx context.Context, items []TaskItem) (map[string]string, error) {
	if len(items) == 0 {
		return map[string]string{}, nil
	}
	if len(items) > c.maxBatch {
		return nil, fmt.Errorf("%w: batch of %d exceeds limit %d", ErrRejected, len(items), c.maxBatch)
	}

	body := make([]postTask, 0, len(items))
	for _, it := range items {
		body = append(body, c.toPostTask(it))
	}

	var env envelope
	if err := c.do(ctx, http.MethodPost, pathTaskPost, body, &env); err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(env.Tasks))
	for _, task := range env.Tasks {
		if task.StatusCode != codeTaskCreated || task.ID == "" {
			c.log.Warn("provider refused task", "status_code", task.StatusCode, "message", task.StatusMessage)
			continue
		}
		tag, _ := task.Data["tag"].(string)
		if tag == "" {
			continue
		}
		ids[tag] = task.ID
	}
	return ids, nil
}

// TaskStatus polls a task by correlation ID.
func (c *Client) TaskStatus(ctx context.Context, correlationID string) (*TaskStatus, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, pathTaskGet+url.PathEscape(correlationID), nil, &env); err != nil {
		return nil, err
	}
	return taskStatusFromEnvelope(&env)
}

// LiveCheck runs a synchronous check for one item.
func (c *Client) LiveCheck(ctx context.Context, item TaskItem) (*TaskStatus, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPost, pathLive, []postTask{c.toPostTask(item)}, &env); err != nil {
		return nil, err
	}
	status, err := taskStatusFromEnvelope(&env)
	if err != nil {
		return nil, err
	}
	if status.State != StateDone {
		return nil, fmt.Errorf("%w: live check %s: %s", ErrRejected, status.State, status.Message)
	}
	return status, nil
}

// SearchVolume returns the monthly search volume for a term.
func (c *Client) SearchVolume(ctx context.Context, term string, locationCode int, language string) (int64, error) {
	body := []volumeTask{{Keywords: []string{term}, LocationCode: locationCode, LanguageCode: language}}

	var env envelope
	if err := c.do(ctx, http.MethodPost, pathSearchVolume, body, &env); err != nil {
		return 0, err
	}
	if len(env.Tasks) == 0 || env.Tasks[0].StatusCode != codeOK {
		return 0, fmt.Errorf("%w: search volume task failed", ErrRejected)
	}
	for _, r := range env.Tasks[0].Result {
		if r.SearchVolume != nil {
			return *r.SearchVolume, nil
		}
	}
	// No data means the provider has no volume for the term.
	return 0, nil
}

func (c *Client) toPostTask(it TaskItem) postTask {
	return postTask{
		Keyword:      it.Term,
		LocationCode: it.LocationCode,
		LanguageCode: it.Language,
		Device:       it.Device,
		Depth:        c.depth,
		Tag:          it.Tag,
	}
}

// do performs a paced, time-bounded request and decodes the envelope.
func (c *Client) do(ctx context.Context, method, path string, in any, out *envelope) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Rankwatch/1.0")
	if c.login != "" {
		req.SetBasicAuth(c.login, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: HTTP %s", ErrUnavailable, resp.Status)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: HTTP %s", ErrRejected, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if out.StatusCode != 0 && out.StatusCode != codeOK {
		if out.StatusCode >= 50000 {
			return fmt.Errorf("%w: %d %s", ErrUnavailable, out.StatusCode, out.StatusMessage)
		}
		return fmt.Errorf("%w: %d %s", ErrRejected, out.StatusCode, out.StatusMessage)
	}
	return nil
}

// taskStatusFromEnvelope maps a task_get style response. Missing fields yield
// a done task with no results.
func taskStatusFromEnvelope(env *envelope) (*TaskStatus, error) {
	if len(env.Tasks) == 0 {
		return &TaskStatus{State: StateDone, Message: "no tasks in response"}, nil
	}
	task := env.Tasks[0]

	switch {
	case task.StatusCode == codeTaskInQueue || task.StatusCode == codeTaskHanded:
		return &TaskStatus{State: StateQueued, Message: task.StatusMessage}, nil
	case task.StatusCode >= 50000:
		return nil, fmt.Errorf("%w: task %d %s", ErrUnavailable, task.StatusCode, task.StatusMessage)
	case task.StatusCode >= 40000:
		return &TaskStatus{State: StateFailed, Message: task.StatusMessage}, nil
	}

	status := &TaskStatus{State: StateDone, Message: task.StatusMessage}
	for _, r := range task.Result {
		for _, item := range r.Items {
			if item.Type != "organic" || item.RankGroup == nil {
				continue
			}
			status.Results = append(status.Results, OrganicResult{
				Domain:    item.Domain,
				URL:       item.URL,
				RankGroup: *item.RankGroup,
			})
		}
	}
	return status, nil
}
