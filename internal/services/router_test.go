package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vidgrab/internal/config"
	apperrors "vidgrab/internal/errors"
	"vidgrab/internal/license"
	"vidgrab/internal/store"
	"vidgrab/pkg/contracts"
)

// MockLicensing implements Licensing for testing
type MockLicensing struct {
	mock.Mock
}

func (m *MockLicensing) DeviceID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockLicensing) DownloadCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockLicensing) IncrementDownloadCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockLicensing) IsAuthorized(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockLicensing) VerifyAuthCode(ctx context.Context, code, deviceID string) (license.Result, error) {
	args := m.Called(ctx, code, deviceID)
	return args.Get(0).(license.Result), args.Error(1)
}

func (m *MockLicensing) Config(ctx context.Context) (config.AppConfig, error) {
	args := m.Called(ctx)
	return args.Get(0).(config.AppConfig), args.Error(1)
}

func (m *MockLicensing) AuthRemaining(ctx context.Context) (RemainingInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(RemainingInfo), args.Error(1)
}

func TestRouter_VerifyAuthCodeRejectsOddInputGenerically(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"whitespace only", "   \t"},
		{"longer than the cap", strings.Repeat("A", maxAuthCodeLen+88)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStack(t, 10)
			router := NewRouter(st.licenses, nil)

			resp := router.Dispatch(context.Background(), contracts.Request{
				Action:   contracts.ActionVerifyAuthCode,
				AuthCode: tt.code,
			})
			assert.True(t, resp.Success)
			assert.Empty(t, resp.Error)
			require.NotNil(t, resp.IsAuthorized)
			assert.False(t, *resp.IsAuthorized)
			assert.Nil(t, resp.ExpiresAt)

			_, err := st.store.Get(context.Background(), store.KeyIsAuthorized)
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestRouter_Dispatch(t *testing.T) {
	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name  string
		req   contracts.Request
		setup func(m *MockLicensing)
		check func(t *testing.T, resp contracts.Response)
	}{
		{
			name:  "getDeviceId",
			req:   contracts.Request{Action: contracts.ActionGetDeviceID},
			setup: func(m *MockLicensing) { m.On("DeviceID", mock.Anything).Return("VID_1_2", nil) },
			check: func(t *testing.T, resp contracts.Response) {
				assert.True(t, resp.Success)
				assert.Equal(t, "VID_1_2", resp.DeviceID)
			},
		},
		{
			name:  "getDownloadCount zero is reported",
			req:   contracts.Request{Action: contracts.ActionGetDownloadCount},
			setup: func(m *MockLicensing) { m.On("DownloadCount", mock.Anything).Return(0, nil) },
			check: func(t *testing.T, resp contracts.Response) {
				require.NotNil(t, resp.Count)
				assert.Zero(t, *resp.Count)
			},
		},
		{
			name:  "incrementDownloadCount",
			req:   contracts.Request{Action: contracts.ActionIncrementDownloadCount},
			setup: func(m *MockLicensing) { m.On("IncrementDownloadCount", mock.Anything).Return(4, nil) },
			check: func(t *testing.T, resp contracts.Response) {
				require.NotNil(t, resp.Count)
				assert.Equal(t, 4, *resp.Count)
			},
		},
		{
			name:  "isAuthorized false is reported",
			req:   contracts.Request{Action: contracts.ActionIsAuthorized},
			setup: func(m *MockLicensing) { m.On("IsAuthorized", mock.Anything).Return(false, nil) },
			check: func(t *testing.T, resp contracts.Response) {
				assert.True(t, resp.Success)
				require.NotNil(t, resp.IsAuthorized)
				assert.False(t, *resp.IsAuthorized)
			},
		},
		{
			name: "verifyAuthCode accepted",
			req:  contracts.Request{Action: contracts.ActionVerifyAuthCode, AuthCode: "CODE", DeviceID: "VID_1_2"},
			setup: func(m *MockLicensing) {
				m.On("VerifyAuthCode", mock.Anything, "CODE", "VID_1_2").
					Return(license.Result{Authorized: true, ExpiresAt: expires}, nil)
			},
			check: func(t *testing.T, resp contracts.Response) {
				require.NotNil(t, resp.IsAuthorized)
				assert.True(t, *resp.IsAuthorized)
				require.NotNil(t, resp.ExpiresAt)
				assert.Equal(t, expires, *resp.ExpiresAt)
			},
		},
		{
			name: "verifyAuthCode rejected has no expiry",
			req:  contracts.Request{Action: contracts.ActionVerifyAuthCode, AuthCode: "BAD"},
			setup: func(m *MockLicensing) {
				m.On("VerifyAuthCode", mock.Anything, "BAD", "").Return(license.Result{}, nil)
			},
			check: func(t *testing.T, resp contracts.Response) {
				assert.True(t, resp.Success)
				require.NotNil(t, resp.IsAuthorized)
				assert.False(t, *resp.IsAuthorized)
				assert.Nil(t, resp.ExpiresAt)
			},
		},
		{
			name: "getConfig",
			req:  contracts.Request{Action: contracts.ActionGetConfig},
			setup: func(m *MockLicensing) {
				m.On("Config", mock.Anything).Return(config.DefaultAppConfig(), nil)
			},
			check: func(t *testing.T, resp contracts.Response) {
				require.NotNil(t, resp.Config)
				assert.Equal(t, 10, resp.Config.MaxDownloads)
				assert.Equal(t, 30, resp.Config.AuthExpiryDays)
			},
		},
		{
			name: "getAuthRemaining active",
			req:  contracts.Request{Action: contracts.ActionGetAuthRemaining},
			setup: func(m *MockLicensing) {
				m.On("AuthRemaining", mock.Anything).
					Return(RemainingInfo{Active: true, Remaining: 50 * time.Hour, ExpiresAt: expires}, nil)
			},
			check: func(t *testing.T, resp contracts.Response) {
				assert.Equal(t, "2d 2h", resp.Remaining)
				require.NotNil(t, resp.ExpiresAt)
			},
		},
		{
			name: "storage failure becomes error payload",
			req:  contracts.Request{Action: contracts.ActionGetDownloadCount},
			setup: func(m *MockLicensing) {
				m.On("DownloadCount", mock.Anything).Return(0, apperrors.NewStorageError("read download count", assert.AnError))
			},
			check: func(t *testing.T, resp contracts.Response) {
				assert.False(t, resp.Success)
				assert.Contains(t, resp.Error, "read download count")
				assert.Nil(t, resp.Count)
			},
		},
		{
			name: "unknown action",
			req:  contracts.Request{Action: "selfDestruct"},
			check: func(t *testing.T, resp contracts.Response) {
				assert.False(t, resp.Success)
				assert.Equal(t, contracts.UnknownActionError, resp.Error)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockLicensing{}
			if tt.setup != nil {
				tt.setup(m)
			}
			resp := NewRouter(m, nil).Dispatch(context.Background(), tt.req)
			tt.check(t, resp)
			m.AssertExpectations(t)
		})
	}
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	m := &MockLicensing{}
	m.On("DeviceID", mock.Anything).Run(func(mock.Arguments) { panic("nil map") })

	var resp contracts.Response
	assert.NotPanics(t, func() {
		resp = NewRouter(m, nil).Dispatch(context.Background(), contracts.Request{Action: contracts.ActionGetDeviceID})
	})
	assert.False(t, resp.Success)
	assert.Equal(t, "internal error", resp.Error)
}

func TestRouter_WithRealServices(t *testing.T) {
	st := newStack(t, 10)
	r := NewRouter(st.licenses, nil)
	ctx := context.Background()

	resp := r.Dispatch(ctx, contracts.Request{Action: contracts.ActionGetDeviceID})
	require.True(t, resp.Success)

	code := st.issue(t, resp.DeviceID, testNow.Add(3*time.Hour))
	resp = r.Dispatch(ctx, contracts.Request{Action: contracts.ActionVerifyAuthCode, AuthCode: code, DeviceID: resp.DeviceID})
	require.True(t, resp.Success)
	assert.True(t, *resp.IsAuthorized)

	resp = r.Dispatch(ctx, contracts.Request{Action: contracts.ActionGetAuthRemaining})
	require.True(t, resp.Success)
	assert.Equal(t, "3h 0m", resp.Remaining)
}
