// Package contracts holds the wire types shared by the message API, the
// websocket bridge and their clients.
package contracts

import "time"

// Action names a message handled by the router.
type Action string

const (
	ActionGetDeviceID            Action = "getDeviceId"
	ActionGetDownloadCount       Action = "getDownloadCount"
	ActionIncrementDownloadCount Action = "incrementDownloadCount"
	ActionIsAuthorized           Action = "isAuthorized"
	ActionVerifyAuthCode         Action = "verifyAuthCode"
	ActionGetConfig              Action = "getConfig"
	ActionGetAuthRemaining       Action = "getAuthRemaining"
)

// UnknownActionError is the error text for unrecognised actions.
const UnknownActionError = "unknown action"

// Request is one inbound message.
type Request struct {
	Action   Action `json:"action" validate:"required"`
	AuthCode string `json:"authCode,omitempty"`
	// DeviceID defaults to this installation's identity when empty.
	DeviceID string `json:"deviceId,omitempty" validate:"max=128"`
}

// AppConfig mirrors the persisted configuration object.
type AppConfig struct {
	MaxDownloads   int    `json:"maxDownloads"`
	AuthExpiryDays int    `json:"authExpiryDays"`
	Name           string `json:"name"`
	Version        string `json:"version"`
}

// Response is the reply to a Request. Only the fields the action produces
// are set.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	DeviceID     string     `json:"deviceId,omitempty"`
	Count        *int       `json:"count,omitempty"`
	IsAuthorized *bool      `json:"isAuthorized,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	Config       *AppConfig `json:"config,omitempty"`
	Remaining    string     `json:"remaining,omitempty"`
}

// Fail builds an error response.
func Fail(msg string) Response {
	return Response{Success: false, Error: msg}
}

// Frame types on the websocket.
const (
	FrameMessage  = "message"
	FrameResponse = "response"
	FrameNotice   = "notice"
)

// Frame wraps messages on the websocket. Requests and responses are
// correlated by ID.
type Frame struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	Request   *Request  `json:"request,omitempty"`
	Response  *Response `json:"response,omitempty"`
	Notice    *Notice   `json:"notice,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notice is the one user-visible failure message of an exhausted download.
type Notice struct {
	Filename string    `json:"filename"`
	URL      string    `json:"url,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}
