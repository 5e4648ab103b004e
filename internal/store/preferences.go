package store

import (
	"context"

	"fyne.io/fyne/v2"
)

// PreferencesKV stores values in the fyne application preferences.
// An empty string is indistinguishable from a missing key there, so both read as absent.
type PreferencesKV struct {
	Prefs fyne.Preferences
}

// NewPreferencesKV wraps the application preferences.
func NewPreferencesKV(prefs fyne.Preferences) *PreferencesKV {
	return &PreferencesKV{Prefs: prefs}
}

func (p *PreferencesKV) Get(_ context.Context, key string) (string, bool, error) {
	v := p.Prefs.String(key)
	return v, v != "", nil
}

func (p *PreferencesKV) Set(_ context.Context, key, value string) error {
	p.Prefs.SetString(key, value)
	return nil
}

func (p *PreferencesKV) Remove(_ context.Context, key string) error {
	p.Prefs.RemoveValue(key)
	return nil
}
