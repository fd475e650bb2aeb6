package license

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// LongTermMarker is the reserved suffix that overrides any embedded expiry.
	LongTermMarker = "LONGTERM"

	prefixLen          = 6
	suffixLen          = 4
	minPlainLen        = 18
	minEmbeddedWireLen = 20

	DefaultTerm  = 30 * 24 * time.Hour
	LongTermSpan = 365 * 24 * time.Hour

	// maxEpochSeconds is 9999-12-31T23:59:59Z.
	maxEpochSeconds = 253402300799
)

// ExpiryParsePolicy decides what happens when a code long enough to carry an
// embedded expiry does not parse to a positive epoch.
type ExpiryParsePolicy string

const (
	// ExpiryFallback grants the default term.
	ExpiryFallback ExpiryParsePolicy = "fallback"
	// ExpiryReject refuses the code.
	ExpiryReject ExpiryParsePolicy = "reject"
)

// ParseExpiryPolicy accepts "fallback" or "reject"; empty means fallback.
func ParseExpiryPolicy(s string) (ExpiryParsePolicy, error) {
	switch ExpiryParsePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExpiryFallback:
		return ExpiryFallback, nil
	case ExpiryReject:
		return ExpiryReject, nil
	default:
		return "", fmt.Errorf("unknown expiry parse policy %q", s)
	}
}

// Result is the outcome of Validate.
type Result struct {
	Authorized bool
	ExpiresAt  time.Time
}

// ValidatorConfig tunes expiry computation.
type ValidatorConfig struct {
	DefaultTerm  time.Duration
	ExpiryPolicy ExpiryParsePolicy
}

// Validator checks license codes against a device id.
type Validator struct {
	codec   Codec
	records *RecordStore
	cfg     ValidatorConfig
	logger  *slog.Logger
	metrics *Metrics
}

// NewValidator creates a Validator that persists grants into records.
func NewValidator(records *RecordStore, cfg ValidatorConfig, logger *slog.Logger, metrics *Metrics) *Validator {
	if cfg.DefaultTerm <= 0 {
		cfg.DefaultTerm = DefaultTerm
	}
	if cfg.ExpiryPolicy == "" {
		cfg.ExpiryPolicy = ExpiryFallback
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		records: records,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "license_validator")),
		metrics: metrics,
	}
}

// Validate accepts wire or legacy plaintext codes. Rejections carry no
// reason. The error is non-nil only when persisting a grant failed.
func (v *Validator) Validate(ctx context.Context, code, deviceID string, now time.Time) (Result, error) {
	start := time.Now()
	expiresAt, ok := v.evaluate(code, deviceID, now)
	v.metrics.recordValidation(ctx, ok, time.Since(start))

	if !ok {
		v.logger.InfoContext(ctx, "license code rejected", slog.String("code", maskCode(code)))
		return Result{}, nil
	}

	if err := v.records.Grant(ctx, now, expiresAt); err != nil {
		v.logger.ErrorContext(ctx, "persist authorization failed", slog.String("error", err.Error()))
		return Result{}, err
	}

	v.logger.InfoContext(ctx, "license code accepted",
		slog.String("code", maskCode(code)),
		slog.Time("expires_at", expiresAt),
		slog.Int64("days", (expiresAt.Unix()-now.Unix()+86399)/86400),
	)
	return Result{Authorized: true, ExpiresAt: expiresAt}, nil
}

// evaluate is the pure part of Validate.
func (v *Validator) evaluate(code, deviceID string, now time.Time) (time.Time, bool) {
	plain, err := v.codec.Decode(code)
	if err != nil {
		plain = code
	}

	if len(deviceID) < prefixLen {
		return time.Time{}, false
	}
	expectedPrefix := strings.ToUpper(deviceID[len(deviceID)-prefixLen:])
	if !strings.HasPrefix(plain, expectedPrefix) || len(plain) < minPlainLen {
		return time.Time{}, false
	}

	var expiresAt time.Time
	switch {
	case strings.HasSuffix(code, LongTermMarker):
		expiresAt = now.Add(LongTermSpan)
	case len(code) >= minEmbeddedWireLen:
		secs, ok := leadingEpochSeconds(plain[prefixLen+suffixLen:])
		switch {
		case ok:
			expiresAt = time.Unix(secs, 0)
		case v.cfg.ExpiryPolicy == ExpiryReject:
			return time.Time{}, false
		default:
			expiresAt = now.Add(v.cfg.DefaultTerm)
		}
	default:
		expiresAt = now.Add(v.cfg.DefaultTerm)
	}

	if !expiresAt.After(now) {
		expiresAt = now.Add(DefaultTerm)
	}
	// Records keep millisecond precision.
	return time.UnixMilli(expiresAt.UnixMilli()), true
}

// leadingEpochSeconds parses the leading run of decimal digits. It fails on
// an empty run, zero, or anything past year 9999.
func leadingEpochSeconds(s string) (int64, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || n <= 0 || n > maxEpochSeconds {
		return 0, false
	}
	return n, true
}

func maskCode(code string) string {
	if len(code) <= 8 {
		return "****"
	}
	return code[:4] + "****" + code[len(code)-4:]
}

func resultAttr(ok bool) metric.MeasurementOption {
	if ok {
		return metric.WithAttributes(attribute.String("result", "accepted"))
	}
	return metric.WithAttributes(attribute.String("result", "rejected"))
}
