package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidgrab/internal/device"
	"vidgrab/internal/download"
	"vidgrab/internal/license"
	"vidgrab/internal/media"
	"vidgrab/internal/store"
)

var testNow = time.Unix(1_750_000_000, 0)

type stack struct {
	store    *store.Memory
	identity *device.Identity
	counter  *license.UsageCounter
	records  *license.RecordStore
	gate     *license.Gate
	licenses *LicenseService
}

func newStack(t *testing.T, maxDownloads int) *stack {
	t.Helper()
	s := store.NewMemory()
	records := license.NewRecordStore(s, store.NewKeyLock())
	counter := license.NewUsageCounter(s)
	gate := license.NewGate(counter, records, maxDownloads, nil, nil)
	identity := device.NewIdentity(s, nil, device.WithClock(func() time.Time { return testNow }))
	validator := license.NewValidator(records, license.ValidatorConfig{}, nil, nil)

	svc := NewLicenseService(LicenseDeps{
		Store:     s,
		Identity:  identity,
		Counter:   counter,
		Gate:      gate,
		Validator: validator,
	}, nil)
	svc.now = func() time.Time { return testNow }

	return &stack{store: s, identity: identity, counter: counter, records: records, gate: gate, licenses: svc}
}

func (st *stack) issue(t *testing.T, deviceID string, until time.Time) string {
	t.Helper()
	code, err := license.NewIssuer().Issue(deviceID, testNow, until)
	if err != nil {
		t.Fatalf("issue code: %v", err)
	}
	return code
}

type fakeStrategy struct {
	name       string
	applicable func(download.Request) bool
	err        error
	calls      atomic.Int32
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Applicable(req download.Request) bool {
	if f.applicable == nil {
		return true
	}
	return f.applicable(req)
}

func (f *fakeStrategy) Attempt(ctx context.Context, req download.Request) (download.Saved, error) {
	f.calls.Add(1)
	if f.err != nil {
		return download.Saved{}, f.err
	}
	return download.Saved{Path: "/out/" + req.Filename, Bytes: 10}, nil
}

type noticeLog struct {
	mu      sync.Mutex
	notices []download.Notice
}

func (n *noticeLog) Notify(ctx context.Context, notice download.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeLog) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

func videoElement(src string) *media.ElementSnapshot {
	return &media.ElementSnapshot{
		Attrs:      map[string]string{"src": src},
		Live:       true,
		Width:      640,
		Height:     360,
		ReadyState: 4,
	}
}
