// Package localize provides static label text for the agenda output.
// It only ever sources display strings; date logic never depends on it.
package localize

import "sync"

// catalog maps message keys to their default (English) text.
var catalog = map[string]string{
	"common.fullDayEventText":        "All day",
	"common.untilText":               "Until",
	"common.noEventText":             "No events",
	"common.hiddenEventText":         "hidden",
	"common.noEventsForNextDaysText": "No events in the coming days",
	"errors.update":                  "The agenda could not be updated",
}

var (
	mu        sync.RWMutex
	overrides map[string]string
)

// Localize returns the text for the given key. Unknown keys are returned
// verbatim so a missing translation is visible instead of silently blank.
func Localize(key string) string {
	mu.RLock()
	if s, ok := overrides[key]; ok {
		mu.RUnlock()
		return s
	}
	mu.RUnlock()

	if s, ok := catalog[key]; ok {
		return s
	}
	return key
}

// Override replaces the text for a key at runtime. Empty values are ignored
// so unset config fields fall through to the catalog defaults.
func Override(key, value string) {
	if value == "" {
		return
	}
	mu.Lock()
	if overrides == nil {
		overrides = map[string]string{}
	}
	overrides[key] = value
	mu.Unlock()
}
