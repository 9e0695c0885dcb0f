// Package state persists the bot's small named JSON documents: thresholds,
// the processed-address set, the scan interval and the enabled flag. Each
// document is independently loadable; a missing or malformed document falls
// back to defaults at the call site rather than failing startup.
package state

import "errors"

// Document names used by the pipeline and the control surface.
const (
	DocThresholds      = "thresholds"
	DocProcessedTokens = "processed_tokens"
	DocInterval        = "interval"
	DocBotState        = "state"
)

// ErrNotFound is returned by Load when the named document does not exist.
var ErrNotFound = errors.New("document not found")

// DocumentStore loads and saves named JSON documents.
type DocumentStore interface {
	// Load unmarshals the named document into v. Returns ErrNotFound when
	// the document has never been saved.
	Load(name string, v interface{}) error

	// Save marshals v and durably replaces the named document.
	Save(name string, v interface{}) error
}

// IntervalDoc is the persisted shape of the scan interval.
type IntervalDoc struct {
	CheckIntervalMinutes int `json:"check_interval_minutes"`
}

// BotStateDoc is the persisted shape of the enabled and test-mode flags.
type BotStateDoc struct {
	Enabled  bool `json:"enabled"`
	TestMode bool `json:"test_mode"`
}
