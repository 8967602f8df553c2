// Package httppurge invalidates tags on a reverse proxy over HTTP.
//
// Each purge request carries the tags space-separated in one header, the
// way Varnish xkey and surrogate-key CDNs expect them. Large sets are split
// into several requests so that no header exceeds MaxHeaderBytes.
package httppurge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/herbdool/d8cache/invalidate"
	"github.com/herbdool/d8cache/tags"
)

// Sentinel errors.
var (
	ErrMissingURL       = errors.New("httppurge: url is required")
	ErrUnexpectedStatus = errors.New("httppurge: unexpected status")
)

// Config configures a Purger.
type Config struct {
	// Name identifies the backend in results and logs.
	// Default: "http"
	Name string

	// URL is the purge endpoint.
	URL string

	// Method is the HTTP method of purge requests.
	// Default: PURGE
	Method string

	// Header carries the space-separated tags.
	// Default: Surrogate-Key
	Header string

	// MaxHeaderBytes bounds the tag header value of one request.
	// Default: 4096
	MaxHeaderBytes int

	// Token, when set, is sent in TokenHeader.
	Token string

	// TokenHeader carries Token.
	// Default: X-Purge-Token
	TokenHeader string

	// JWTSecret, when set, signs every request with an HS256 bearer token.
	JWTSecret []byte

	// JWTIssuer is the iss claim.
	// Default: d8cache
	JWTIssuer string

	// JWTTTL is the lifetime of a signed token.
	// Default: 1 minute
	JWTTTL time.Duration

	// HTTPClient is the HTTP client to use for requests.
	// If nil, a default client with 30s timeout is used.
	HTTPClient *http.Client
}

// PurgeClaims are the claims of a signed purge request.
type PurgeClaims struct {
	Tags int `json:"tags"`
	jwt.RegisteredClaims
}

// Purger implements invalidate.Backend against an HTTP purge endpoint.
type Purger struct {
	config Config
	now    func() time.Time
}

// New creates a Purger.
func New(config Config) (*Purger, error) {
	if config.URL == "" {
		return nil, ErrMissingURL
	}
	if config.Name == "" {
		config.Name = "http"
	}
	if config.Method == "" {
		config.Method = "PURGE"
	}
	if config.Header == "" {
		config.Header = tags.DefaultHeader
	}
	if config.MaxHeaderBytes <= 0 {
		config.MaxHeaderBytes = 4096
	}
	if config.TokenHeader == "" {
		config.TokenHeader = "X-Purge-Token"
	}
	if config.JWTIssuer == "" {
		config.JWTIssuer = "d8cache"
	}
	if config.JWTTTL <= 0 {
		config.JWTTTL = time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	return &Purger{config: config, now: time.Now}, nil
}

// Name implements invalidate.Backend.
func (p *Purger) Name() string { return p.config.Name }

// Invalidate sends one purge request per batch. Every batch is attempted;
// failures are joined.
func (p *Purger) Invalidate(ctx context.Context, set tags.Set) error {
	var errs []error
	for _, batch := range Batches(set.Sorted(), p.config.MaxHeaderBytes) {
		if err := p.purge(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Purger) purge(ctx context.Context, batch []tags.Tag) error {
	req, err := http.NewRequestWithContext(ctx, p.config.Method, p.config.URL, nil)
	if err != nil {
		return fmt.Errorf("httppurge: build request: %w", err)
	}
	req.Header.Set(p.config.Header, joinTags(batch))
	if err := p.authorize(req, len(batch)); err != nil {
		return err
	}

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("httppurge: %s %s: %w", p.config.Method, p.config.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

func (p *Purger) authorize(req *http.Request, count int) error {
	if p.config.Token != "" {
		req.Header.Set(p.config.TokenHeader, p.config.Token)
	}
	if len(p.config.JWTSecret) == 0 {
		return nil
	}

	now := p.now()
	claims := PurgeClaims{
		Tags: count,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.config.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.config.JWTTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("httppurge: sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	return nil
}

// Ping reports whether the purge endpoint answers. Any status below 500
// counts as reachable; proxies commonly reject HEAD on the purge path.
func (p *Purger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.config.URL, nil)
	if err != nil {
		return fmt.Errorf("httppurge: build request: %w", err)
	}
	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("httppurge: ping: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// Batches splits ts into groups whose space-joined length stays within limit
// bytes. A tag longer than limit travels alone.
func Batches(ts []tags.Tag, limit int) [][]tags.Tag {
	var (
		out  [][]tags.Tag
		cur  []tags.Tag
		size int
	)
	for _, t := range ts {
		n := len(t)
		if len(cur) > 0 && size+1+n > limit {
			out = append(out, cur)
			cur, size = nil, 0
		}
		if len(cur) > 0 {
			size++
		}
		cur = append(cur, t)
		size += n
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func joinTags(ts []tags.Tag) string {
	var b strings.Builder
	for i, t := range ts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(string(t))
	}
	return b.String()
}

var _ invalidate.Backend = (*Purger)(nil)
