package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/LeventeLantos/sheet-messaging/internal/client"
	"github.com/LeventeLantos/sheet-messaging/internal/model"
	"github.com/LeventeLantos/sheet-messaging/internal/sheet"
)

// Gateway is the subset of the provider client the engines call.
type Gateway interface {
	LookupContact(ctx context.Context, phone string) (bool, error)
	UpsertContact(ctx context.Context, phone, name string, allowBroadcast bool) (client.UpsertResult, error)
	SendTemplateMessage(ctx context.Context, phone, template, broadcast string, params []client.Parameter) (client.SendResult, error)
}

type Normalizer interface {
	Normalize(raw string) string
}

// Pacer blocks until the next call of one kind may go out.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Recorder receives per-record outcomes. *metrics.Recorder satisfies it.
type Recorder interface {
	Contact(outcome string)
	Message(table, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Contact(string)         {}
func (nopRecorder) Message(string, string) {}

// NewIntervalPacer spaces calls at least interval apart. The first call passes
// immediately; a zero interval disables pacing.
func NewIntervalPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// providerDetail flattens a gateway error into log attributes.
func providerDetail(err error) []any {
	attrs := []any{"error", err}

	var perr *client.PermanentError
	if errors.As(err, &perr) {
		return append(attrs, "status", perr.StatusCode, "body", perr.Body)
	}
	var terr *client.TransientError
	if errors.As(err, &terr) {
		attrs = append(attrs, "attempts", terr.Attempts, "endpoint", terr.Endpoint)
		if terr.StatusCode != 0 {
			attrs = append(attrs, "status", terr.StatusCode, "body", terr.Body)
		}
	}
	return attrs
}

// recordLogger tags a log line with the subject of one per-record outcome.
func recordLogger(stage model.Stage, table string, readIndex int, phone string) *slog.Logger {
	return slog.With(
		"stage", string(stage),
		"table", table,
		"row", sheet.SheetRow(readIndex),
		"phone", phone,
	)
}
