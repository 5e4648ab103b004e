package ui

import (
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
)

// choice maps a stored value to a translation key for select widgets.
type choice struct {
	value string
	tkey  string
}

var (
	genderChoices = []choice{
		{string(engine.GenderMale), config.TKeyOptMale},
		{string(engine.GenderFemale), config.TKeyOptFemale},
	}
	tobaccoChoices = []choice{
		{string(engine.TobaccoSmoker), config.TKeyOptSmoker},
		{string(engine.TobaccoNonSmoker), config.TKeyOptNonSmoker},
	}
	yesNoChoices = []choice{
		{"yes", config.TKeyOptYes},
		{"no", config.TKeyOptNo},
	}
)

// choicesFor returns the select options of a field, or nil for free text.
func choicesFor(field string) []choice {
	switch field {
	case engine.FieldGender:
		return genderChoices
	case engine.FieldTobaccoUsage:
		return tobaccoChoices
	case engine.FieldIsUSCitizen, engine.FieldIsIncarcerated, engine.FieldIsPendingDisposition:
		return yesNoChoices
	}
	return nil
}

func (app *EnrollApp) optionLabels(choices []choice) []string {
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = app.GetMsg(c.tkey)
	}
	return out
}

// optionLabel translates a stored value; unknown values are shown as-is.
func (app *EnrollApp) optionLabel(choices []choice, value string) string {
	for _, c := range choices {
		if c.value == value {
			return app.GetMsg(c.tkey)
		}
	}
	return value
}

// optionValue maps a translated label back to its stored value.
func (app *EnrollApp) optionValue(choices []choice, label string) string {
	for _, c := range choices {
		if app.GetMsg(c.tkey) == label {
			return c.value
		}
	}
	return ""
}

var frequencyChoices = []choice{
	{string(engine.FrequencyMonthly), config.TKeyFreqMonthly},
	{string(engine.FrequencyBiweekly), config.TKeyFreqBiweekly},
	{string(engine.FrequencyWeekly), config.TKeyFreqWeekly},
	{string(engine.FrequencyYearly), config.TKeyFreqYearly},
}

var sectionTitles = map[engine.Section]string{
	engine.SectionPersonal: config.TKeySectionPersonal,
	engine.SectionContact:  config.TKeySectionContact,
	engine.SectionAddress:  config.TKeySectionAddress,
	engine.SectionIdentity: config.TKeySectionIdentity,
}
