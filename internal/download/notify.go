package download

import (
	"context"
	"log/slog"
	"time"
)

// FailureMessage is the single user-visible text on exhaustion.
const FailureMessage = "Download failed. Try opening the video in a new tab and saving it from there."

// Notice is sent once when every strategy has failed.
type Notice struct {
	Filename string    `json:"filename"`
	URL      string    `json:"url,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Notifier delivers failure notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, n.Message, slog.String("filename", n.Filename), slog.String("url", n.URL))
}
