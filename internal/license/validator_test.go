package license

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "vidgrab/internal/errors"
	"vidgrab/internal/store"
)

const testDeviceID = "VID_1700000000000_123456"

var testNow = time.Unix(1_750_000_000, 0)

func newTestValidator(t *testing.T, policy ExpiryParsePolicy) (*Validator, *RecordStore, store.Store) {
	t.Helper()
	s := store.NewMemory()
	records := NewRecordStore(s, nil)
	return NewValidator(records, ValidatorConfig{ExpiryPolicy: policy}, nil, nil), records, s
}

func TestValidator_EmbeddedExpiry(t *testing.T) {
	v, records, _ := newTestValidator(t, ExpiryFallback)
	future := testNow.Add(90 * 24 * time.Hour).Truncate(time.Second)
	code := Codec{}.Encode(fmt.Sprintf("1234560001%d", future.Unix()))
	require.GreaterOrEqual(t, len(code), 20)

	res, err := v.Validate(context.Background(), code, testDeviceID, testNow)
	require.NoError(t, err)
	assert.True(t, res.Authorized)
	assert.True(t, future.Equal(res.ExpiresAt))

	rec, err := records.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.Granted)
	assert.Equal(t, testNow.UnixMilli(), rec.GrantedAt.UnixMilli())
	assert.Equal(t, future.UnixMilli(), rec.ExpiresAt.UnixMilli())
}

func TestValidator_MismatchedPrefixLeavesRecordUnchanged(t *testing.T) {
	v, records, _ := newTestValidator(t, ExpiryFallback)
	ctx := context.Background()

	before, err := records.Load(ctx)
	require.NoError(t, err)

	code := Codec{}.Encode(fmt.Sprintf("6543210001%d", testNow.Add(time.Hour).Unix()))
	res, err := v.Validate(ctx, code, testDeviceID, testNow)
	require.NoError(t, err)
	assert.False(t, res.Authorized)

	after, err := records.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestValidator_Matrix(t *testing.T) {
	enc := Codec{}.Encode
	past := testNow.Add(-time.Hour).Unix()
	future := testNow.Add(10 * 24 * time.Hour).Unix()

	tests := []struct {
		name       string
		code       string
		deviceID   string
		policy     ExpiryParsePolicy
		authorized bool
		expiresAt  time.Time
	}{
		{
			name:       "wire code with future expiry",
			code:       enc(fmt.Sprintf("1234560001%d", future)),
			authorized: true,
			expiresAt:  time.Unix(future, 0),
		},
		{
			name:       "lowercase device suffix is upper-cased",
			code:       enc(fmt.Sprintf("ABCDEF0001%d", future)),
			deviceID:   "VID_1700000000000_abcdef",
			authorized: true,
			expiresAt:  time.Unix(future, 0),
		},
		{
			name:       "past embedded expiry is clamped",
			code:       enc(fmt.Sprintf("1234560001%d", past)),
			authorized: true,
			expiresAt:  testNow.Add(DefaultTerm),
		},
		{
			name:       "legacy plaintext of 18 chars gets default term",
			code:       "123456000112345678",
			authorized: true,
			expiresAt:  testNow.Add(DefaultTerm),
		},
		{
			name:       "legacy plaintext longer than 20 uses embedded expiry",
			code:       fmt.Sprintf("1234560001%d", future),
			authorized: true,
			expiresAt:  time.Unix(future, 0),
		},
		{
			name:       "legacy longterm",
			code:       "1234560001LONGTERM",
			authorized: true,
			expiresAt:  testNow.Add(LongTermSpan),
		},
		{
			name:       "longterm overrides embedded expiry",
			code:       fmt.Sprintf("1234560001%dLONGTERM", future),
			authorized: true,
			expiresAt:  testNow.Add(LongTermSpan),
		},
		{
			name:       "non-numeric expiry falls back",
			code:       enc("1234560001NOTANEPOCH"),
			policy:     ExpiryFallback,
			authorized: true,
			expiresAt:  testNow.Add(DefaultTerm),
		},
		{
			name:       "non-numeric expiry rejected under reject policy",
			code:       enc("1234560001NOTANEPOCH"),
			policy:     ExpiryReject,
			authorized: false,
		},
		{
			name:       "leading digit run is parsed",
			code:       enc(fmt.Sprintf("1234560001%dXYZ", future)),
			authorized: true,
			expiresAt:  time.Unix(future, 0),
		},
		{
			name:       "last second of year 9999 is accepted",
			code:       enc("1234560001253402300799"),
			authorized: true,
			expiresAt:  time.Unix(253402300799, 0),
		},
		{
			name:       "expiry past year 9999 falls back",
			code:       enc("1234560001253402300800"),
			policy:     ExpiryFallback,
			authorized: true,
			expiresAt:  testNow.Add(DefaultTerm),
		},
		{
			name:       "expiry overflowing milliseconds rejected under reject policy",
			code:       enc("12345600019223372036854776"),
			policy:     ExpiryReject,
			authorized: false,
		},
		{name: "too short", code: "12345600011234567", authorized: false},
		{name: "wrong prefix", code: "654321000112345678", authorized: false},
		{name: "empty", code: "", authorized: false},
		{name: "garbage", code: "\x00\xff\x10", authorized: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deviceID := tt.deviceID
			if deviceID == "" {
				deviceID = testDeviceID
			}
			v, _, s := newTestValidator(t, tt.policy)
			res, err := v.Validate(context.Background(), tt.code, deviceID, testNow)
			require.NoError(t, err)
			assert.Equal(t, tt.authorized, res.Authorized)
			if tt.authorized {
				assert.True(t, tt.expiresAt.Equal(res.ExpiresAt), "got %s want %s", res.ExpiresAt, tt.expiresAt)
				assert.True(t, res.ExpiresAt.After(testNow))
			} else {
				_, err := s.Get(context.Background(), store.KeyIsAuthorized)
				assert.ErrorIs(t, err, store.ErrNotFound)
			}
		})
	}
}

func TestValidator_HugeExpiryRoundTripsThroughGate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	records := NewRecordStore(s, store.NewKeyLock())
	v := NewValidator(records, ValidatorConfig{}, nil, nil)
	gate := NewGate(NewUsageCounter(s), records, 10, nil, nil)

	for _, secs := range []string{"9223372036854776", "99999999999999999", "253402300799"} {
		t.Run(secs, func(t *testing.T) {
			res, err := v.Validate(ctx, Codec{}.Encode("1234560001"+secs), testDeviceID, testNow)
			require.NoError(t, err)
			require.True(t, res.Authorized)

			rec, err := records.Load(ctx)
			require.NoError(t, err)
			assert.True(t, rec.Granted)
			assert.True(t, res.ExpiresAt.Equal(rec.ExpiresAt), "returned %s persisted %s", res.ExpiresAt, rec.ExpiresAt)
			assert.True(t, rec.ExpiresAt.After(rec.GrantedAt))

			ok, err := gate.IsAuthorized(ctx, testNow.Add(time.Minute))
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestValidator_ClampIgnoresConfiguredTerm(t *testing.T) {
	records := NewRecordStore(store.NewMemory(), nil)
	v := NewValidator(records, ValidatorConfig{DefaultTerm: 7 * 24 * time.Hour}, nil, nil)
	ctx := context.Background()

	res, err := v.Validate(ctx, Codec{}.Encode(fmt.Sprintf("1234560001%d", testNow.Add(-time.Hour).Unix())), testDeviceID, testNow)
	require.NoError(t, err)
	assert.True(t, testNow.Add(DefaultTerm).Equal(res.ExpiresAt), "past expiry is clamped to 30 days")

	res, err = v.Validate(ctx, "123456000112345678", testDeviceID, testNow)
	require.NoError(t, err)
	assert.True(t, testNow.Add(7*24*time.Hour).Equal(res.ExpiresAt), "short codes use the configured term")
}

func TestValidator_LongTermAlwaysOneYear(t *testing.T) {
	for _, code := range []string{
		"1234560001LONGTERM",
		"123456000199999999999LONGTERM",
		"1234560001" + "0000000000" + "LONGTERM",
	} {
		v, _, _ := newTestValidator(t, ExpiryReject)
		res, err := v.Validate(context.Background(), code, testDeviceID, testNow)
		require.NoError(t, err)
		assert.True(t, res.Authorized)
		assert.True(t, testNow.Add(LongTermSpan).Equal(res.ExpiresAt), code)
	}
}

func TestValidator_StorageFailure(t *testing.T) {
	records := NewRecordStore(brokenStore{store.NewMemory()}, nil)
	v := NewValidator(records, ValidatorConfig{}, nil, nil)

	res, err := v.Validate(context.Background(), "123456000112345678", testDeviceID, testNow)
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))
	assert.False(t, res.Authorized)
}

func TestParseExpiryPolicy(t *testing.T) {
	p, err := ParseExpiryPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ExpiryFallback, p)

	p, err = ParseExpiryPolicy(" Reject ")
	require.NoError(t, err)
	assert.Equal(t, ExpiryReject, p)

	_, err = ParseExpiryPolicy("maybe")
	assert.Error(t, err)
}

func TestLeadingEpochSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1893456000", 1893456000, true},
		{"1893456000abc", 1893456000, true},
		{"abc", 0, false},
		{"", 0, false},
		{"0000", 0, false},
		{"253402300799", 253402300799, true},
		{"253402300800", 0, false},
		{"9223372036854776", 0, false},
		{"99999999999999999999999", 0, false},
	}
	for _, tt := range tests {
		got, ok := leadingEpochSeconds(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

// brokenStore fails every write.
type brokenStore struct{ *store.Memory }

func (brokenStore) Set(context.Context, string, []byte) error {
	return errors.New("read-only filesystem")
}

func (brokenStore) CompareAndSwap(context.Context, string, []byte, []byte) (bool, error) {
	return false, errors.New("read-only filesystem")
}
