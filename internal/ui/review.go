package ui

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// reviewView lists every household person with section-scoped editing,
// the add/remove member flows and the final submission.
type reviewView struct {
	app *EnrollApp
	w   fyne.Window

	body   *fyne.Container
	submit *widget.Button

	// quiet suppresses the rebuild triggered by a pending member form
	// keystroke, which would otherwise steal the focus.
	quiet bool
	unsub func()
}

// ShowReviewWindow opens the review screen, or focuses it when already open.
func (app *EnrollApp) ShowReviewWindow() {
	if app.reviewWindow != nil {
		app.reviewWindow.RequestFocus()
		return
	}

	slog.Info(config.MsgReviewOpened, config.LogKeyComponent, config.CompUIReview)
	w := app.App.NewWindow(app.GetMsg(config.TKeyWinReview))
	app.reviewWindow = w

	v := &reviewView{app: app, w: w, body: container.NewVBox()}
	app.review = v

	v.submit = widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnSubmit), theme.ConfirmIcon(), v.submitAsync)
	v.submit.Importance = widget.HighImportance

	v.unsub = app.Repo.Subscribe(func(*engine.Household) {
		if v.quiet {
			return
		}
		fyne.Do(v.rebuild)
	})

	v.rebuild()
	w.SetContent(container.NewBorder(nil, container.NewPadded(v.submit), nil, nil, container.NewVScroll(v.body)))
	w.Resize(fyne.NewSize(config.ReviewWindowWidth, config.ReviewWindowHeight))
	w.SetOnClosed(func() {
		v.unsub()
		app.reviewWindow = nil
		app.review = nil
	})
	w.Show()
}

// rebuild redraws everything from the current snapshot and edit state.
func (v *reviewView) rebuild() {
	app := v.app
	h := app.Repo.Snapshot()

	v.w.SetTitle(app.GetMsg(config.TKeyWinReview))
	v.submit.SetText(app.GetMsg(config.TKeyBtnSubmit))
	if app.Submitter.Busy() || h.Status.EnrollmentSubmitted {
		v.submit.Disable()
	} else {
		v.submit.Enable()
	}

	objects := []fyne.CanvasObject{v.summaryCard(h), v.toolbar(h)}
	objects = append(objects, v.personCard(engine.PrimaryID, app.GetMsg(config.TKeyLblPrimary), nil))
	for i := range h.Members {
		m := h.Members[i]
		objects = append(objects, v.personCard(m.ID, m.DisplayName()+" ("+v.memberRole(m)+")", &m))
	}
	if len(h.Pending) > 0 {
		objects = append(objects, widget.NewLabelWithStyle(app.GetMsg(config.TKeyLblPending), fyne.TextAlignLeading, fyne.TextStyle{Bold: true}))
		for _, m := range h.Pending {
			objects = append(objects, v.pendingCard(m))
		}
	}

	v.body.Objects = objects
	v.body.Refresh()
}

func (v *reviewView) memberRole(m engine.FamilyMember) string {
	if m.Type == engine.MemberSpouse {
		return v.app.GetMsg(config.TKeyLblSpouse)
	}
	return v.app.GetMsg(config.TKeyLblDependent)
}

func (v *reviewView) summaryCard(h *engine.Household) fyne.CanvasObject {
	app := v.app
	lang := app.Preferences.StringWithFallback(config.PrefLanguage, config.DefaultLanguage)
	printer := message.NewPrinter(language.Make(lang))

	form := widget.NewForm(
		widget.NewFormItem(app.GetMsg(config.TKeyLblHouseholdSize), widget.NewLabel(strconv.Itoa(h.Size()))),
		widget.NewFormItem(app.GetMsg(config.TKeyLblHouseholdIncome), widget.NewLabel(printer.Sprintf("$%.2f", h.TotalAnnualIncome()))),
	)
	if url := app.calendarURL(); url != "" {
		link := widget.NewLabel(url)
		link.TextStyle = fyne.TextStyle{Monospace: true}
		form.Append(app.GetMsg(config.TKeyLblCalendar), link)
		form.Append("", widget.NewLabel(app.Tr(config.TKeyLblMilestones, map[string]any{"Count": app.milestones.Load()})))
	}
	return widget.NewCard("", "", form)
}

func (v *reviewView) toolbar(h *engine.Household) fyne.CanvasObject {
	app := v.app

	addSpouse := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnAddSpouse), theme.ContentAddIcon(), func() {
		_, _ = v.addMember(engine.MemberSpouse)
	})
	if h.HasSpouse() {
		addSpouse.Disable()
	}
	addDependent := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnAddDependent), theme.ContentAddIcon(), func() {
		_, _ = v.addMember(engine.MemberDependent)
	})
	importBtn := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnImport), theme.DownloadIcon(), app.ShowImportWindow)

	lang := widget.NewSelect(app.SupportedLanguages, func(s string) {
		app.Preferences.SetString(config.PrefLanguage, s)
	})
	lang.Selected = app.Preferences.StringWithFallback(config.PrefLanguage, config.DefaultLanguage)

	return container.NewBorder(nil, nil, nil, lang, container.NewHBox(addSpouse, addDependent, importBtn))
}

// personCard shows every section of one confirmed person. member is nil for the primary.
func (v *reviewView) personCard(owner engine.PersonID, title string, member *engine.FamilyMember) fyne.CanvasObject {
	app := v.app
	items := []fyne.CanvasObject{}

	if member != nil {
		id := member.ID
		included := widget.NewCheck(app.GetMsg(config.TKeyLblIncluded), nil)
		included.Checked = member.IncludedInCoverage
		included.OnChanged = func(b bool) { v.setIncluded(id, b) }
		remove := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnRemove), theme.DeleteIcon(), func() { v.removeMember(id) })
		remove.Importance = widget.DangerImportance
		items = append(items, container.NewBorder(nil, nil, nil, remove, included))
	}

	for _, section := range engine.Sections {
		items = append(items, v.sectionBlock(owner, section))
	}
	items = append(items, v.incomeBlock(owner))

	return widget.NewCard(title, "", container.NewVBox(items...))
}

// sectionBlock renders a section either read-only or as an edit form.
func (v *reviewView) sectionBlock(owner engine.PersonID, section engine.Section) fyne.CanvasObject {
	app := v.app
	title := widget.NewLabelWithStyle(app.GetMsg(sectionTitles[section]), fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	if draft, editing := app.Edits.Draft(owner, section); editing {
		form := widget.NewForm()
		for _, field := range engine.SectionFields(section, owner) {
			if field == engine.FieldIncludedInCoverage {
				continue
			}
			form.Append(app.fieldLabel(field), v.fieldInput(draft[field], field, func(value string) {
				_ = app.Edits.UpdateDraft(owner, section, field, value)
			}))
		}
		errText := widget.NewLabel(app.describeErrors(app.Edits.Errors(owner, section)))
		errText.Importance = widget.DangerImportance
		errText.Wrapping = fyne.TextWrapWord

		save := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnSave), theme.DocumentSaveIcon(), func() {
			_ = v.commitEdit(owner, section)
		})
		save.Importance = widget.HighImportance
		cancel := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnCancel), theme.CancelIcon(), func() {
			v.cancelEdit(owner, section)
		})
		return container.NewVBox(title, form, errText, container.NewGridWithColumns(config.LayoutColumnsDouble, cancel, save))
	}

	values, err := app.Repo.SectionValues(owner, section)
	if err != nil {
		return title
	}
	var lines []string
	for _, field := range engine.SectionFields(section, owner) {
		if field == engine.FieldIncludedInCoverage || values[field] == "" {
			continue
		}
		shown := values[field]
		if field == engine.FieldSSN {
			shown = maskSSN(shown)
		} else if choices := choicesFor(field); choices != nil {
			shown = app.optionLabel(choices, shown)
		}
		lines = append(lines, app.fieldLabel(field)+": "+shown)
	}
	body := widget.NewLabel(strings.Join(lines, "\n"))
	body.Wrapping = fyne.TextWrapWord

	edit := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnEdit), theme.DocumentCreateIcon(), func() {
		v.beginEdit(owner, section)
	})
	return container.NewVBox(container.NewBorder(nil, nil, nil, edit, title), body)
}

// fieldInput returns a select for enumerated fields and an entry otherwise.
func (v *reviewView) fieldInput(value, field string, onChange func(string)) fyne.CanvasObject {
	app := v.app
	if choices := choicesFor(field); choices != nil {
		sel := widget.NewSelect(app.optionLabels(choices), func(label string) {
			onChange(app.optionValue(choices, label))
		})
		sel.Selected = app.optionLabel(choices, value)
		return sel
	}
	switch field {
	case engine.FieldDateOfBirth:
		de := NewDateEntry()
		de.SetText(value)
		de.OnChanged = onChange
		return de
	case engine.FieldSSN:
		pe := widget.NewPasswordEntry()
		pe.SetText(value)
		pe.OnChanged = onChange
		return pe
	}
	entry := widget.NewEntry()
	entry.SetText(value)
	entry.OnChanged = onChange
	return entry
}

func (v *reviewView) incomeBlock(owner engine.PersonID) fyne.CanvasObject {
	app := v.app
	title := widget.NewLabelWithStyle(app.GetMsg(config.TKeySectionIncome), fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	p, ok := app.Repo.Person(owner)
	if !ok {
		return title
	}

	rows := []fyne.CanvasObject{title}
	for i, src := range p.Income {
		idx := i
		text := src.Type + " · " + app.optionLabel(frequencyChoices, string(src.Frequency)) + " · " + strconv.FormatFloat(src.Amount, 'f', 2, 64)
		if src.Employer != "" {
			text += " · " + src.Employer
		}
		remove := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
			v.removeIncome(owner, idx)
		})
		rows = append(rows, container.NewBorder(nil, nil, nil, remove, widget.NewLabel(text)))
	}

	typ := widget.NewEntry()
	typ.PlaceHolder = app.fieldLabel(engine.FieldIncomeType)
	freq := widget.NewSelect(app.optionLabels(frequencyChoices), nil)
	amount := widget.NewEntry()
	amount.PlaceHolder = app.fieldLabel(engine.FieldIncomeAmount)
	errText := widget.NewLabel("")
	errText.Importance = widget.DangerImportance

	add := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnAddIncome), theme.ContentAddIcon(), func() {
		if err := v.addIncome(owner, typ.Text, app.optionValue(frequencyChoices, freq.Selected), amount.Text); err != nil {
			errText.SetText(err.Error())
		}
	})
	rows = append(rows,
		container.NewBorder(nil, nil, nil, add, container.NewGridWithColumns(config.LayoutColumnsTriple, typ, freq, amount)),
		errText,
	)
	return container.NewVBox(rows...)
}

// pendingCard is the sub-form of a member still inside its add-flow.
func (v *reviewView) pendingCard(m engine.FamilyMember) fyne.CanvasObject {
	app := v.app
	id := m.ID
	values, _ := app.Repo.SectionValues(id, engine.SectionPersonal)
	if values == nil {
		values = engine.Values{}
	}

	form := widget.NewForm()
	for _, field := range engine.SectionFields(engine.SectionPersonal, id) {
		if field == engine.FieldIncludedInCoverage {
			continue
		}
		field := field
		form.Append(app.fieldLabel(field), v.fieldInput(values[field], field, func(value string) {
			values[field] = value
			v.recordMember(id, values)
		}))
	}

	cancel := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnCancel), theme.CancelIcon(), func() { v.removeMember(id) })
	return widget.NewCard(v.memberRole(m), "", container.NewVBox(form, cancel))
}

// -----------------------------------------------------------------------------
// Actions
// -----------------------------------------------------------------------------

func (v *reviewView) beginEdit(owner engine.PersonID, section engine.Section) {
	if _, err := v.app.Edits.BeginEdit(owner, section); err != nil {
		slog.Warn(config.MsgEditRejected,
			config.LogKeyComponent, config.CompUIReview,
			config.LogKeyOwner, owner,
			config.LogKeySection, section,
			config.LogKeyError, err,
		)
		return
	}
	v.rebuild()
}

// commitEdit saves the draft. A validation error keeps the form open with messages.
func (v *reviewView) commitEdit(owner engine.PersonID, section engine.Section) error {
	err := v.app.Edits.Commit(v.app.Ctx, owner, section)
	v.rebuild()
	return err
}

func (v *reviewView) cancelEdit(owner engine.PersonID, section engine.Section) {
	v.app.Edits.Cancel(owner, section)
	v.rebuild()
}

func (v *reviewView) addMember(t engine.MemberType) (engine.PersonID, error) {
	id, err := v.app.Repo.AddFamilyMember(v.app.Ctx, t)
	if err != nil {
		slog.Warn(config.MsgEditRejected,
			config.LogKeyComponent, config.CompUIReview,
			config.LogKeyType, t,
			config.LogKeyError, err,
		)
	}
	return id, err
}

// recordMember feeds the pending sub-form into the repository. The member is
// confirmed as soon as its personal section validates. values is the form's
// own copy and may hold text the household does not accept yet.
func (v *reviewView) recordMember(id engine.PersonID, values engine.Values) {
	app := v.app
	current, _, ok := app.Repo.Snapshot().Member(id)
	if !ok {
		return
	}

	complete := app.Repo.Validator().ValidateSection(engine.SectionPersonal, values) == nil
	m := current.Clone()
	m.FirstName = engine.NormalizeText(values[engine.FieldFirstName])
	m.LastName = engine.NormalizeText(values[engine.FieldLastName])
	// A partial date stays in values until it parses.
	m.DateOfBirth = ""
	if birth, ok := engine.ParseRealDate(values[engine.FieldDateOfBirth]); ok {
		m.DateOfBirth = engine.CanonicalDate(birth)
	}
	if g, ok := engine.ParseGender(values[engine.FieldGender]); ok {
		m.Gender = g
	}
	if t, ok := engine.ParseTobaccoUsage(values[engine.FieldTobaccoUsage]); ok {
		m.Tobacco = t
	}

	v.quiet = !complete
	_, err := app.Repo.RecordFamilyMemberForm(app.Ctx, id, complete, &m)
	v.quiet = false
	if err != nil {
		slog.Warn(config.MsgEditRejected,
			config.LogKeyComponent, config.CompUIReview,
			config.LogKeyMemberID, id,
			config.LogKeyError, err,
		)
	}
}

func (v *reviewView) removeMember(id engine.PersonID) {
	v.app.Repo.RemoveFamilyMember(v.app.Ctx, id)
}

func (v *reviewView) setIncluded(id engine.PersonID, included bool) {
	if err := v.app.Repo.SetIncludedInCoverage(v.app.Ctx, id, included); err != nil {
		slog.Warn(config.MsgEditRejected,
			config.LogKeyComponent, config.CompUIReview,
			config.LogKeyMemberID, id,
			config.LogKeyError, err,
		)
	}
}

func (v *reviewView) addIncome(owner engine.PersonID, typ, frequency, amount string) error {
	p, ok := v.app.Repo.Person(owner)
	if !ok {
		return engine.ErrUnknownPerson
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return errors.New(v.app.errorText(config.CodeInvalidAmount))
	}
	sources := append(p.Clone().Income, engine.IncomeSource{
		Type:      typ,
		Frequency: engine.Frequency(frequency),
		Amount:    value,
	})
	err = v.app.Repo.SetIncomeSources(v.app.Ctx, owner, sources)
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		return errors.New(v.app.describeErrors(verr.Fields))
	}
	return err
}

func (v *reviewView) removeIncome(owner engine.PersonID, index int) {
	p, ok := v.app.Repo.Person(owner)
	if !ok || index < 0 || index >= len(p.Income) {
		return
	}
	sources := append(p.Clone().Income[:index], p.Income[index+1:]...)
	_ = v.app.Repo.SetIncomeSources(v.app.Ctx, owner, sources)
}

// submitAsync runs the submission off the UI thread. The button stays disabled
// until it finishes, so a second click cannot start another one.
func (v *reviewView) submitAsync() {
	v.submit.Disable()
	v.app.App.SendNotification(fyne.NewNotification(config.AppName, v.app.GetMsg(config.TKeyNotifSubmitting)))
	go func() {
		receipt, err := v.app.Submitter.Submit(v.app.Ctx)
		fyne.Do(func() { v.handleSubmit(receipt, err) })
	}()
}

// handleSubmit renders the outcome of a submission.
func (v *reviewView) handleSubmit(receipt engine.Receipt, err error) {
	app := v.app
	defer v.rebuild()

	var verr *engine.ValidationError
	switch {
	case err == nil:
		msg := app.Tr(config.TKeyNotifSubmitted, map[string]any{"ID": receipt.ConfirmationID})
		app.App.SendNotification(fyne.NewNotification(config.AppName, msg))
		dialog.ShowInformation(config.AppName, msg, v.w)
	case errors.Is(err, engine.ErrEligibilityBlocked):
		scan, _ := app.ReviewGate.Last()
		v.showSoftBlock(scan)
	case errors.Is(err, engine.ErrNoticeUnacknowledged):
		scan, _ := app.ReviewGate.Last()
		v.showNotice(scan)
	case errors.As(err, &verr):
		dialog.ShowInformation(app.GetMsg(sectionTitles[verr.Section]), app.describeErrors(verr.Fields), v.w)
	case errors.Is(err, engine.ErrSubmissionInFlight), errors.Is(err, engine.ErrAlreadySubmitted):
	default:
		dialog.ShowError(err, v.w)
	}
}

// showNotice presents advisory issues. Closing it counts as acknowledgement
// and the submission resumes.
func (v *reviewView) showNotice(scan engine.ScanResult) {
	app := v.app
	d := dialog.NewInformation(app.GetMsg(config.TKeyTitleEligibility), app.describeIssues(scan), v.w)
	d.SetDismissText(app.GetMsg(config.TKeyBtnOK))
	d.SetOnClosed(v.acknowledgeAndSubmit)
	d.Show()
}

func (v *reviewView) acknowledgeAndSubmit() {
	v.app.ReviewGate.Acknowledge(v.app.Ctx)
	v.submitAsync()
}

// showSoftBlock offers "continue anyway" or "go back" for a blocking scan.
func (v *reviewView) showSoftBlock(scan engine.ScanResult) {
	app := v.app
	msg := widget.NewLabel(app.describeIssues(scan))
	msg.Wrapping = fyne.TextWrapWord

	dialog.NewCustomConfirm(
		app.GetMsg(config.TKeyTitleEligibility),
		app.GetMsg(config.TKeyBtnContinueAnyway),
		app.GetMsg(config.TKeyBtnGoBack),
		msg,
		func(proceed bool) {
			if !proceed {
				app.ReviewGate.Dismiss()
				return
			}
			v.overrideAndSubmit()
		},
		v.w,
	).Show()
}

func (v *reviewView) overrideAndSubmit() {
	if err := v.app.ReviewGate.Override(v.app.Ctx); err != nil {
		dialog.ShowError(err, v.w)
		return
	}
	v.submitAsync()
}

// submitNow is the synchronous form of submitAsync.
func (v *reviewView) submitNow(ctx context.Context) (engine.Receipt, error) {
	receipt, err := v.app.Submitter.Submit(ctx)
	v.handleSubmit(receipt, err)
	return receipt, err
}

func maskSSN(ssn string) string {
	if len(ssn) <= 4 {
		return ssn
	}
	return strings.Repeat("•", len(ssn)-4) + ssn[len(ssn)-4:]
}
