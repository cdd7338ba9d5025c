package source

import (
	"encoding/json"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"GreyPulse/internal/domain/models"
	pkghttp "GreyPulse/pkg/http"
	"GreyPulse/pkg/logger"
	"GreyPulse/pkg/util"
)

// gmpEntry is the wire row aggregator endpoints return. Field names and value
// types vary between providers, so everything inessential is tolerant.
type gmpEntry struct {
	Company   string      `json:"company"`
	Name      string      `json:"name"`
	IPO       string      `json:"ipo"`
	GMP       interface{} `json:"gmp"`
	Premium   interface{} `json:"premium"`
	UpdatedAt string      `json:"updated_at"`
	Timestamp string      `json:"timestamp"`
}

type gmpPayload struct {
	Data []gmpEntry `json:"data"`
}

// HTTPAdapter polls one JSON aggregator endpoint for current GMP rows.
type HTTPAdapter struct {
	id     string
	url    string
	client *pkghttp.Client
	log    *logger.Logger
}

func NewHTTPAdapter(id, url string, timeout time.Duration, log *logger.Logger) *HTTPAdapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPAdapter{
		id:     id,
		url:    url,
		client: pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		log:    log,
	}
}

func (a *HTTPAdapter) ID() string { return a.id }

// Fetch pulls the endpoint and converts rows into observations. Rows that
// cannot be parsed are skipped, not fatal: one bad row must not sink the
// whole source.
func (a *HTTPAdapter) Fetch(ctx context.Context) ([]models.Observation, error) {
	var raw []byte
	err := a.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    a.url,
		Headers: map[string]string{
			"Accept": "application/json",
		},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", a.id, err)
	}

	entries, err := decodeEntries(raw)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", a.id, err)
	}

	now := time.Now()
	out := make([]models.Observation, 0, len(entries))
	for _, e := range entries {
		obs, ok := a.toObservation(e, now)
		if !ok {
			continue
		}
		out = append(out, obs)
	}
	if len(out) == 0 && len(entries) > 0 {
		return nil, fmt.Errorf("source %s: no parsable rows out of %d", a.id, len(entries))
	}
	return out, nil
}

func (a *HTTPAdapter) toObservation(e gmpEntry, now time.Time) (models.Observation, bool) {
	name := firstNonEmpty(e.Company, e.Name, e.IPO)
	key := models.NormalizeIPOKey(name)
	if key == "" {
		return models.Observation{}, false
	}

	value, ok := numeric(firstNonNil(e.GMP, e.Premium))
	if !ok {
		a.log.Debug("unparsable gmp row",
			logger.String("source", a.id),
			logger.String("company", name))
		return models.Observation{}, false
	}

	observedAt := now
	if ts := firstNonEmpty(e.UpdatedAt, e.Timestamp); ts != "" {
		if parsed, ok := util.ParseTime(ts); ok {
			observedAt = parsed
		}
	}

	obs, err := models.NewObservation(key, a.id, value, observedAt)
	if err != nil {
		return models.Observation{}, false
	}
	return obs, true
}

func decodeEntries(raw []byte) ([]gmpEntry, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var entries []gmpEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	var payload gmpPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// numeric coerces the variously typed gmp fields. Sources report numbers,
// numeric strings, and strings with currency prefixes.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimLeft(s, "₹$+ ")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(values ...interface{}) interface{} {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
