package license

import (
	"context"
	"time"

	apperrors "vidgrab/internal/errors"
	"vidgrab/internal/store"
)

// Record is the persisted authorization state.
type Record struct {
	Granted   bool
	GrantedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the record grants access at now.
func (r Record) Active(now time.Time) bool {
	return r.Granted && now.Before(r.ExpiresAt)
}

// RecordStore is the only reader and writer of the authorization keys.
type RecordStore struct {
	store store.Store
	lock  *store.KeyLock
}

// NewRecordStore creates a RecordStore. lock may be shared with other
// facades over the same store; nil allocates a private one.
func NewRecordStore(s store.Store, lock *store.KeyLock) *RecordStore {
	if lock == nil {
		lock = store.NewKeyLock()
	}
	return &RecordStore{store: s, lock: lock}
}

// Load reads the record. Missing keys read as zero values.
func (r *RecordStore) Load(ctx context.Context) (Record, error) {
	var (
		rec       Record
		grantedMs int64
		expiresMs int64
	)
	if _, err := store.GetJSON(ctx, r.store, store.KeyIsAuthorized, &rec.Granted); err != nil {
		return Record{}, apperrors.NewStorageError("read authorization flag", err)
	}
	if _, err := store.GetJSON(ctx, r.store, store.KeyAuthExpiryTime, &expiresMs); err != nil {
		return Record{}, apperrors.NewStorageError("read authorization expiry", err)
	}
	if _, err := store.GetJSON(ctx, r.store, store.KeyAuthGrantedTime, &grantedMs); err != nil {
		return Record{}, apperrors.NewStorageError("read authorization grant time", err)
	}
	if expiresMs > 0 {
		rec.ExpiresAt = time.UnixMilli(expiresMs)
	}
	if grantedMs > 0 {
		rec.GrantedAt = time.UnixMilli(grantedMs)
	}
	return rec, nil
}

// Grant persists an active record. Timestamps are written before the flag
// so a partial write never exposes a granted flag with a stale expiry.
func (r *RecordStore) Grant(ctx context.Context, grantedAt, expiresAt time.Time) error {
	unlock, err := r.lock.Lock(ctx, store.KeyIsAuthorized)
	if err != nil {
		return err
	}
	defer unlock()

	if err := store.SetJSON(ctx, r.store, store.KeyAuthExpiryTime, expiresAt.UnixMilli()); err != nil {
		return apperrors.NewStorageError("write authorization expiry", err)
	}
	if err := store.SetJSON(ctx, r.store, store.KeyAuthGrantedTime, grantedAt.UnixMilli()); err != nil {
		return apperrors.NewStorageError("write authorization grant time", err)
	}
	if err := store.SetJSON(ctx, r.store, store.KeyIsAuthorized, true); err != nil {
		return apperrors.NewStorageError("write authorization flag", err)
	}
	return nil
}

// Observe reads the record at now and, if it is granted but expired, clears
// the flag. It reports whether access is active and whether this call did
// the clearing.
func (r *RecordStore) Observe(ctx context.Context, now time.Time) (active, cleared bool, err error) {
	unlock, err := r.lock.Lock(ctx, store.KeyIsAuthorized)
	if err != nil {
		return false, false, err
	}
	defer unlock()

	rec, err := r.Load(ctx)
	if err != nil {
		return false, false, err
	}
	if !rec.Granted {
		return false, false, nil
	}
	if rec.Active(now) {
		return true, false, nil
	}

	// Only flip true to false; another process may already have done it.
	swapped, err := r.store.CompareAndSwap(ctx, store.KeyIsAuthorized, []byte("true"), []byte("false"))
	if err != nil {
		return false, false, apperrors.NewStorageError("clear authorization flag", err)
	}
	return false, swapped, nil
}
