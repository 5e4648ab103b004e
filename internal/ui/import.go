package ui

import (
	"context"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
)

// importWidgets holds references to UI elements to simplify data retrieval.
type importWidgets struct {
	modeSelect *widget.Select
	urlEntry   *widget.Entry
	userEntry  *widget.Entry
	passEntry  *widget.Entry
	pathEntry  *widget.Entry
}

// ShowImportWindow opens the "import family from contacts" dialog.
func (app *EnrollApp) ShowImportWindow() {
	if app.importWindow != nil {
		app.importWindow.RequestFocus()
		return
	}

	w := app.App.NewWindow(app.GetMsg(config.TKeyWinImport))
	app.importWindow = w

	iw := &importWidgets{}
	iw.modeSelect = widget.NewSelect([]string{
		app.GetMsg(config.TKeyModeWeb),
		app.GetMsg(config.TKeyModeLocal),
	}, nil)

	iw.urlEntry = widget.NewEntry()
	iw.urlEntry.SetText(app.Preferences.String(config.PrefImportURL))
	iw.userEntry = widget.NewEntry()
	iw.userEntry.SetText(app.Preferences.String(config.PrefImportUser))
	iw.passEntry = widget.NewPasswordEntry()
	if user := iw.userEntry.Text; user != "" && app.Secrets != nil {
		if pwd, err := app.Secrets.Get(user); err == nil {
			iw.passEntry.SetText(pwd)
		}
	}
	iw.pathEntry = widget.NewEntry()
	iw.pathEntry.SetText(app.Preferences.String(config.PrefImportPath))

	browseBtn := widget.NewButton(app.GetMsg(config.TKeyBtnBrowse), func() {
		d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
			if err == nil && r != nil {
				iw.pathEntry.SetText(r.URI().Path())
				_ = r.Close()
			}
		}, w)
		d.SetFilter(storage.NewExtensionFileFilter([]string{config.ExtVCF, config.ExtVCard}))
		d.Show()
	})

	webForm := widget.NewForm(
		widget.NewFormItem(app.GetMsg(config.TKeyLblURL), iw.urlEntry),
		widget.NewFormItem(app.GetMsg(config.TKeyLblUser), iw.userEntry),
		widget.NewFormItem(app.GetMsg(config.TKeyLblPass), iw.passEntry),
	)
	localForm := container.NewBorder(nil, nil, nil, browseBtn, iw.pathEntry)

	var content *fyne.Container
	iw.modeSelect.OnChanged = func(mode string) {
		if mode == app.GetMsg(config.TKeyModeLocal) {
			webForm.Hide()
			localForm.Show()
		} else {
			webForm.Show()
			localForm.Hide()
		}
		if content != nil {
			w.Resize(fyne.NewSize(config.IntakeWindowWidth, content.MinSize().Height))
		}
	}
	if app.Preferences.String(config.PrefImportMode) == config.SourceModeLocal {
		iw.modeSelect.SetSelected(app.GetMsg(config.TKeyModeLocal))
	} else {
		iw.modeSelect.SetSelected(app.GetMsg(config.TKeyModeWeb))
	}

	var btnImport *widget.Button
	btnImport = widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnImport), theme.DownloadIcon(), func() {
		src := app.saveImportSource(iw)
		btnImport.Disable()
		go func() {
			report, err := app.runImport(app.Ctx, src)
			fyne.Do(func() {
				btnImport.Enable()
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				dialog.ShowInformation(config.AppName,
					app.Tr(config.TKeyNotifImported, map[string]any{"Count": report.Imported}), w)
			})
		}()
	})
	btnImport.Importance = widget.HighImportance
	btnCancel := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnCancel), theme.CancelIcon(), func() { w.Close() })

	content = container.NewPadded(container.NewVBox(
		widget.NewCard("", "", container.NewVBox(iw.modeSelect, webForm, localForm)),
		container.NewGridWithColumns(config.LayoutColumnsDouble, btnCancel, btnImport),
	))
	w.SetContent(content)
	w.Resize(fyne.NewSize(config.IntakeWindowWidth, content.MinSize().Height))
	w.SetOnClosed(func() { app.importWindow = nil })
	w.Show()
}

// saveImportSource remembers the dialog values and returns the source to import.
func (app *EnrollApp) saveImportSource(iw *importWidgets) engine.ImportSource {
	mode := config.SourceModeWeb
	if iw.modeSelect.Selected == app.GetMsg(config.TKeyModeLocal) {
		mode = config.SourceModeLocal
	}

	app.Preferences.SetString(config.PrefImportMode, mode)
	app.Preferences.SetString(config.PrefImportURL, iw.urlEntry.Text)
	app.Preferences.SetString(config.PrefImportUser, iw.userEntry.Text)
	app.Preferences.SetString(config.PrefImportPath, iw.pathEntry.Text)

	if iw.userEntry.Text != "" && iw.passEntry.Text != "" && app.Secrets != nil {
		if err := app.Secrets.Set(iw.userEntry.Text, iw.passEntry.Text); err != nil {
			slog.Error(config.ErrVaultWrite,
				config.LogKeyComponent, config.CompUI,
				config.LogKeyError, err,
			)
		}
	}

	return engine.ImportSource{
		Mode:      mode,
		LocalPath: iw.pathEntry.Text,
		WebURL:    iw.urlEntry.Text,
		WebUser:   iw.userEntry.Text,
		WebPass:   iw.passEntry.Text,
	}
}

// runImport adds contacts from src to the household and notifies the result.
func (app *EnrollApp) runImport(ctx context.Context, src engine.ImportSource) (engine.ImportReport, error) {
	report, err := app.Importer.Import(ctx, src)
	if err != nil {
		slog.Error(config.MsgImportFailed,
			config.LogKeyComponent, config.CompUI,
			config.LogKeyMode, src.Mode,
			config.LogKeyError, err,
		)
		app.App.SendNotification(fyne.NewNotification(config.AppName, app.GetMsg(config.TKeyNotifImportFailed)))
		return report, err
	}
	app.App.SendNotification(fyne.NewNotification(config.AppName,
		app.Tr(config.TKeyNotifImported, map[string]any{"Count": report.Imported})))
	return report, nil
}
