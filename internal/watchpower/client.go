// Package watchpower talks to the WatchPower (ShineMonitor) cloud API.
package watchpower

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

const (
	DefaultBaseURL    = "https://web.shinemonitor.com/public/"
	DefaultCompanyKey = "bnrl_frRFjEz8Mkn"

	pageSize = 200

	errNone     = 0
	errNoRecord = 12

	// suffix the mobile app appends to every action
	appContext = "&i18n=en_US&lang=en_US&source=1&_app_client_=android&_app_id_=wifiapp.volfw.watchpower&_app_version_=1.0.6.3"
)

// APIError is a non-zero err code in a response envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("watchpower api error %d: %s", e.Code, e.Message)
}

type Config struct {
	BaseURL      string
	CompanyKey   string
	Username     string
	Password     string
	SerialNumber string
	WifiPN       string
	DevCode      int
	DevAddr      int
	Layout       FieldLayout
	Location     *time.Location
	Timeout      time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	token     string
	secret    string
	expiresAt time.Time
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.CompanyKey == "" {
		cfg.CompanyKey = DefaultCompanyKey
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Layout == (FieldLayout{}) {
		cfg.Layout = DefaultLayout()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

type envelope struct {
	Err  int             `json:"err"`
	Desc string          `json:"desc"`
	Dat  json.RawMessage `json:"dat"`
}

type authResult struct {
	Secret string `json:"secret"`
	Token  string `json:"token"`
	Expire int64  `json:"expire"`
}

type pageResult struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pagesize"`
	Row      []struct {
		Field []cell `json:"field"`
	} `json:"row"`
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (c *Client) salt() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

// login must be called with mu held.
func (c *Client) login(ctx context.Context) error {
	action := "&action=authSource&usr=" + url.QueryEscape(c.cfg.Username) +
		"&company-key=" + c.cfg.CompanyKey + appContext
	salt := c.salt()
	sign := sha1Hex(salt + sha1Hex(c.cfg.Password) + action)

	env, err := c.get(ctx, "?sign="+sign+"&salt="+salt+action)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if env.Err != errNone {
		return fmt.Errorf("login: %w", &APIError{Code: env.Err, Message: env.Desc})
	}

	var auth authResult
	if err := json.Unmarshal(env.Dat, &auth); err != nil {
		return fmt.Errorf("login: decode auth result: %w", err)
	}
	if auth.Token == "" || auth.Secret == "" {
		return errors.New("login: empty token in auth result")
	}

	c.token = auth.Token
	c.secret = auth.Secret
	c.expiresAt = time.Time{}
	if auth.Expire > 0 {
		// refresh a minute early
		c.expiresAt = c.now().Add(time.Duration(auth.Expire)*time.Second - time.Minute)
	}
	log.Info().Str("user", c.cfg.Username).Msg("Logged in to WatchPower")
	return nil
}

func (c *Client) ensureLogin(ctx context.Context) error {
	if c.token != "" && (c.expiresAt.IsZero() || c.now().Before(c.expiresAt)) {
		return nil
	}
	return c.login(ctx)
}

func (c *Client) get(ctx context.Context, query string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+query, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env, nil
}

// doRequest signs action with the session and retries once with a fresh
// login when the server rejects the token.
func (c *Client) doRequest(ctx context.Context, action string) (*envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if err := c.ensureLogin(ctx); err != nil {
			return nil, err
		}
		salt := c.salt()
		sign := sha1Hex(salt + c.secret + c.token + action)
		env, err := c.get(ctx, "?sign="+sign+"&salt="+salt+"&token="+c.token+action)
		if err != nil {
			return nil, err
		}
		if env.Err == errNone || env.Err == errNoRecord || attempt > 0 {
			return env, nil
		}
		log.Warn().Int("err", env.Err).Str("desc", env.Desc).Msg("WatchPower rejected session, logging in again")
		c.token = ""
		c.secret = ""
	}
	return nil, errors.New("session rejected after fresh login")
}

// rows pages through queryDeviceDataOneDayPaging for date (YYYY-MM-DD).
func (c *Client) rows(ctx context.Context, date string) ([][]cell, error) {
	var all [][]cell
	for page := 0; ; page++ {
		action := fmt.Sprintf("&action=queryDeviceDataOneDayPaging&devaddr=%d&pn=%s&devcode=%d&sn=%s&date=%s&page=%d&pagesize=%d%s",
			c.cfg.DevAddr, url.QueryEscape(c.cfg.WifiPN), c.cfg.DevCode, url.QueryEscape(c.cfg.SerialNumber),
			date, page, pageSize, appContext)

		env, err := c.doRequest(ctx, action)
		if err != nil {
			return nil, fmt.Errorf("query %s page %d: %w", date, page, err)
		}
		if env.Err == errNoRecord {
			break
		}
		if env.Err != errNone {
			return nil, fmt.Errorf("query %s page %d: %w", date, page, &APIError{Code: env.Err, Message: env.Desc})
		}

		var res pageResult
		if err := json.Unmarshal(env.Dat, &res); err != nil {
			return nil, fmt.Errorf("query %s page %d: decode rows: %w", date, page, err)
		}
		for _, r := range res.Row {
			all = append(all, r.Field)
		}
		if len(res.Row) == 0 || len(all) >= res.Total {
			break
		}
	}
	log.Debug().Str("date", date).Int("rows", len(all)).Msg("Fetched WatchPower rows")
	return all, nil
}

// FetchDailySamples returns the day's rows that carry enough fields to be a
// sample, in upstream order.
func (c *Client) FetchDailySamples(ctx context.Context, date string) ([]model.Sample, error) {
	if _, err := time.ParseInLocation("2006-01-02", date, c.cfg.Location); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	rows, err := c.rows(ctx, date)
	if err != nil {
		return nil, err
	}

	samples := make([]model.Sample, 0, len(rows))
	for _, row := range rows {
		s, ok := c.cfg.Layout.Sample(row, c.cfg.Location)
		if !ok {
			continue
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// FetchCurrentReading uses the latest row of the local day. Just after
// midnight, before today's first row lands, it falls back to yesterday's last
// row. No row at all is a failed reading, not an error.
func (c *Client) FetchCurrentReading(ctx context.Context) (model.Reading, error) {
	now := c.now().In(c.cfg.Location)

	rows, err := c.rows(ctx, now.Format("2006-01-02"))
	if err != nil {
		return model.FailedReading(now), err
	}
	if len(rows) == 0 {
		rows, err = c.rows(ctx, now.AddDate(0, 0, -1).Format("2006-01-02"))
		if err != nil {
			return model.FailedReading(now), err
		}
	}
	if len(rows) == 0 {
		log.Warn().Msg("WatchPower returned no rows")
		return model.FailedReading(now), nil
	}

	latest := rows[0]
	latestTS, _ := c.cfg.Layout.timestamp(latest, c.cfg.Location)
	for _, row := range rows[1:] {
		if ts, ok := c.cfg.Layout.timestamp(row, c.cfg.Location); ok && ts.After(latestTS) {
			latest, latestTS = row, ts
		}
	}
	return c.cfg.Layout.Reading(latest, c.cfg.Location, now), nil
}
