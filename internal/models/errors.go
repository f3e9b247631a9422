package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by the repository for a missing row.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadySent is returned when a ledger insert hits the unique key.
	// It means another dispatcher run got there first; not a failure.
	ErrAlreadySent = errors.New("notification already sent for this threshold")
	// ErrRateUnavailable is returned when neither the live rate source nor the
	// fixed fallback table covers the requested currency.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	// ErrUnsupportedURL is returned before any network call for URLs outside
	// the marketplace domain.
	ErrUnsupportedURL = errors.New("url does not belong to the auction marketplace")
)

// ScrapeError is a failed fetch or parse of one listing page. Fatal to that
// item's refresh this cycle, never to the batch.
type ScrapeError struct {
	URL   string
	Stage string // "fetch" or "parse"
	Err   error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s failed at %s: %v", e.URL, e.Stage, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// TranslationError is non-fatal: callers fall back to the source text.
type TranslationError struct {
	Target string
	Err    error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation to %s failed: %v", e.Target, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// NotificationChannelError is a single channel failing for one alert.
// Other channels and other subscriptions continue.
type NotificationChannelError struct {
	Channel string // "telegram" or "email"
	Err     error
}

func (e *NotificationChannelError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *NotificationChannelError) Unwrap() error { return e.Err }
