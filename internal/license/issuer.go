package license

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Issuer builds codes for a device. It is the operator-side counterpart of
// Validator.
type Issuer struct {
	codec Codec
}

// NewIssuer creates an Issuer.
func NewIssuer() *Issuer { return &Issuer{} }

// DevicePrefix returns the six characters a code for deviceID must start with.
func DevicePrefix(deviceID string) (string, error) {
	if len(deviceID) < prefixLen {
		return "", errors.New("device id too short")
	}
	return strings.ToUpper(deviceID[len(deviceID)-prefixLen:]), nil
}

// Plain builds prefix + 4-digit time suffix + expiry epoch seconds.
func (i *Issuer) Plain(deviceID string, issuedAt, expiresAt time.Time) (string, error) {
	prefix, err := DevicePrefix(deviceID)
	if err != nil {
		return "", err
	}
	if !expiresAt.After(issuedAt) {
		return "", errors.New("expiry must be after issue time")
	}
	return fmt.Sprintf("%s%04d%d", prefix, issuedAt.UnixMilli()%10000, expiresAt.Unix()), nil
}

// Issue returns the wire code for a grant ending at expiresAt.
func (i *Issuer) Issue(deviceID string, issuedAt, expiresAt time.Time) (string, error) {
	plain, err := i.Plain(deviceID, issuedAt, expiresAt)
	if err != nil {
		return "", err
	}
	return i.codec.Encode(plain), nil
}

// IssueLongTerm returns a legacy plaintext code ending in LongTermMarker. The
// marker is only honoured on the unencoded form.
func (i *Issuer) IssueLongTerm(deviceID string, issuedAt time.Time) (string, error) {
	prefix, err := DevicePrefix(deviceID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d%s", prefix, issuedAt.UnixMilli()%10000, LongTermMarker), nil
}
