package ui

import (
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
)

// intakeView is the first screen: date of birth, gender and tobacco usage.
type intakeView struct {
	app *EnrollApp
	dob *engine.DOBField

	date    *DateEntry
	gender  *widget.Select
	tobacco *widget.Select
	age     *widget.Label
	notice  *widget.Label
	errText *widget.Label
	next    *widget.Button
	form    *widget.Form
}

// ShowIntakeWindow opens the intake screen, or focuses it when already open.
func (app *EnrollApp) ShowIntakeWindow() {
	if app.intakeWindow != nil {
		app.intakeWindow.RequestFocus()
		return
	}

	slog.Info(config.MsgIntakeOpened, config.LogKeyComponent, config.CompUIIntake)
	w := app.App.NewWindow(app.GetMsg(config.TKeyWinIntake))
	app.intakeWindow = w

	v := &intakeView{app: app, dob: engine.NewDOBField(app.Clock)}
	app.intake = v

	v.date = NewDateEntry()
	v.date.OnChanged = v.onDateChanged
	v.gender = widget.NewSelect(app.optionLabels(genderChoices), nil)
	v.tobacco = widget.NewSelect(app.optionLabels(tobaccoChoices), nil)
	v.age = widget.NewLabel(config.AgeUnknown)
	v.notice = widget.NewLabel("")
	v.notice.Wrapping = fyne.TextWrapWord
	v.notice.Importance = widget.WarningImportance
	v.errText = widget.NewLabel("")
	v.errText.Importance = widget.DangerImportance

	v.next = widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnContinue), theme.NavigateNextIcon(), func() {
		v.submit()
	})
	v.next.Importance = widget.HighImportance

	// Resume whatever an earlier session stored.
	primary := app.Repo.Snapshot().Primary
	if primary.DateOfBirth != "" {
		v.date.SetText(primary.DateOfBirth)
	}
	if primary.Gender != engine.GenderUnset {
		v.gender.SetSelected(app.optionLabel(genderChoices, string(primary.Gender)))
	}
	if primary.Tobacco != engine.TobaccoUnknown {
		v.tobacco.SetSelected(app.optionLabel(tobaccoChoices, string(primary.Tobacco)))
	}

	v.form = widget.NewForm(
		widget.NewFormItem(app.GetMsg(config.TKeyLblDateOfBirth), v.date),
		widget.NewFormItem(app.GetMsg(config.TKeyLblAge), v.age),
		widget.NewFormItem(app.GetMsg(config.TKeyLblGender), v.gender),
		widget.NewFormItem(app.GetMsg(config.TKeyLblTobacco), v.tobacco),
	)

	content := container.NewPadded(container.NewVBox(v.form, v.errText, v.notice, v.next))
	w.SetContent(content)
	w.Resize(fyne.NewSize(config.IntakeWindowWidth, content.MinSize().Height))
	w.SetOnClosed(func() {
		app.intakeWindow = nil
		app.intake = nil
	})
	w.Show()
}

// onDateChanged runs the date-of-birth state machine on every keystroke.
func (v *intakeView) onDateChanged(text string) {
	state := v.dob.Input(text)
	if canonical := v.dob.Text(); canonical != text {
		v.date.SetText(canonical)
	}

	v.errText.SetText("")
	v.notice.SetText("")
	v.age.SetText(config.AgeUnknown)
	v.next.Enable()

	switch state {
	case engine.DOBInvalid:
		v.errText.SetText(v.app.errorText(v.dob.ErrorCode()))
	case engine.DOBValid:
		e, _ := v.dob.Eligibility()
		v.age.SetText(strconv.Itoa(e.Age))
		switch {
		case e.IsOver65:
			v.notice.SetText(v.app.GetMsg(config.TKeyNoticeIntakeSenior))
			if v.app.IntakeGate.Policy() == engine.PolicyHardBlock {
				v.next.Disable()
			}
		case e.IsUnder19:
			v.notice.SetText(v.app.Tr(config.TKeyNoticeMinor, map[string]any{
				"Name": v.app.GetMsg(config.TKeyLblPrimary), "Age": e.Age,
			}))
		}
	}
}

func (v *intakeView) values() engine.Values {
	return engine.Values{
		engine.FieldDateOfBirth:  v.dob.Text(),
		engine.FieldGender:       v.app.optionValue(genderChoices, v.gender.Selected),
		engine.FieldTobaccoUsage: v.app.optionValue(tobaccoChoices, v.tobacco.Selected),
	}
}

// submit validates, runs the hard-block gate and moves on to the review
// screen. It reports whether navigation happened.
func (v *intakeView) submit() bool {
	app := v.app
	log := slog.With(config.LogKeyComponent, config.CompUIIntake)

	err := app.Repo.ApplySection(app.Ctx, engine.PrimaryID, engine.SectionIntake, v.values())
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		v.errText.SetText(app.describeErrors(verr.Fields))
		return false
	}
	if err != nil {
		log.Error(config.ErrSaveHousehold, config.LogKeyError, err)
		return false
	}

	res := app.IntakeGate.Continue(app.Ctx, nil)
	if !res.Advance {
		app.showIntakeBlock(res.Scan)
		return false
	}
	if len(res.Scan.Issues) > 0 {
		app.IntakeGate.Acknowledge(app.Ctx)
	}

	if app.intakeWindow != nil {
		app.intakeWindow.Close()
	}
	app.ShowReviewWindow()
	return true
}

// showIntakeBlock explains a hard block. There is no way past it here.
func (app *EnrollApp) showIntakeBlock(scan engine.ScanResult) {
	if app.intakeWindow == nil {
		return
	}
	msg := app.GetMsg(config.TKeyNoticeIntakeSenior) + "\n\n" + app.describeIssues(scan)
	d := dialog.NewInformation(app.GetMsg(config.TKeyTitleEligibility), msg, app.intakeWindow)
	d.SetDismissText(app.GetMsg(config.TKeyBtnOK))
	d.SetOnClosed(app.IntakeGate.Dismiss)
	d.Show()
}

func (v *intakeView) relabel() {
	app := v.app
	app.intakeWindow.SetTitle(app.GetMsg(config.TKeyWinIntake))
	v.next.SetText(app.GetMsg(config.TKeyBtnContinue))
	labels := []string{config.TKeyLblDateOfBirth, config.TKeyLblAge, config.TKeyLblGender, config.TKeyLblTobacco}
	for i, item := range v.form.Items {
		item.Text = app.GetMsg(labels[i])
	}
	v.form.Refresh()
}

// describeErrors renders field errors one per line, sorted by field.
func (app *EnrollApp) describeErrors(errs engine.FieldErrors) string {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, app.fieldLabel(f)+": "+app.errorText(errs[f]))
	}
	return strings.Join(lines, "\n")
}

// describeIssues renders one notice line per flagged person.
func (app *EnrollApp) describeIssues(scan engine.ScanResult) string {
	h := app.Repo.Snapshot()
	lines := make([]string, 0, len(scan.Issues))
	for _, issue := range scan.Issues {
		name := app.GetMsg(config.TKeyLblPrimary)
		if issue.Who != engine.RolePrimary {
			if p, ok := h.Person(issue.PersonID); ok {
				name = p.DisplayName()
			}
		}
		data := map[string]any{"Name": name, "Age": issue.Age}
		if issue.IsOver65 {
			lines = append(lines, app.Tr(config.TKeyNoticeSenior, data))
		} else {
			lines = append(lines, app.Tr(config.TKeyNoticeMinor, data))
		}
	}
	return strings.Join(lines, "\n")
}
