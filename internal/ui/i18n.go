package ui

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-enroll/internal/config"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// SetupI18n initializes the translation bundle and detects available languages.
func (app *EnrollApp) SetupI18n() {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
		return
	}

	var detectedLangs []string

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}
		detectedLangs = append(detectedLangs, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
		)
	}

	app.SupportedLanguages = detectedLangs
	app.I18nBundle = bundle
	app.UpdateLocalizer()
}

// UpdateLocalizer refreshes the translator based on the user's language preference.
func (app *EnrollApp) UpdateLocalizer() {
	lang := app.Preferences.StringWithFallback(config.PrefLanguage, config.DefaultLanguage)
	app.Localizer = i18n.NewLocalizer(app.I18nBundle, lang)
}

// GetMsg translates a key, returning the key itself when it is missing.
func (app *EnrollApp) GetMsg(key string) string {
	return app.Tr(key, nil)
}

// Tr translates a templated message.
func (app *EnrollApp) Tr(key string, data map[string]any) string {
	if app.Localizer == nil {
		return key
	}
	msg, err := app.Localizer.Localize(&i18n.LocalizeConfig{MessageID: key, TemplateData: data})
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return key
	}
	return msg
}

// fieldLabel translates a form field name.
func (app *EnrollApp) fieldLabel(field string) string {
	key := config.TKeyFieldPrefix + field
	if msg := app.GetMsg(key); msg != key {
		return msg
	}
	return field
}

// errorText translates a validation error code.
func (app *EnrollApp) errorText(code string) string {
	if code == "" {
		return ""
	}
	key := config.TKeyErrPrefix + code
	if msg := app.GetMsg(key); msg != key {
		return msg
	}
	return code
}

// milestoneSummary localizes calendar event titles.
func (app *EnrollApp) milestoneSummary(kind, name string) string {
	var key, fallback string
	switch kind {
	case config.MilestoneMinor:
		key, fallback = config.TKeyEvtMinorMilestone, config.FallbackMinorMilestone
	default:
		key, fallback = config.TKeyEvtSeniorMilestone, config.FallbackSeniorMilestone
	}

	var err error
	msg := ""
	if app.Localizer != nil {
		msg, err = app.Localizer.Localize(&i18n.LocalizeConfig{
			MessageID:    key,
			TemplateData: map[string]any{"Name": name},
		})
	} else {
		err = errors.New(config.ErrLocNotInit)
	}
	if err != nil || msg == "" {
		return fmt.Sprintf(fallback, name)
	}
	return msg
}
