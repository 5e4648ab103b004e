package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
	"github.com/tartampluch/go-enroll/internal/server"
	"github.com/tartampluch/go-enroll/internal/store"
)

// EnrollApp encapsulates the UI state, preferences and the engine collaborators
// the windows drive.
type EnrollApp struct {
	App         fyne.App
	Preferences fyne.Preferences
	I18nBundle  *i18n.Bundle
	Localizer   *i18n.Localizer
	Ctx         context.Context
	Clock       engine.Clock

	Repo       *engine.Repository
	Edits      *engine.EditController
	IntakeGate *engine.Gate
	ReviewGate *engine.Gate
	Submitter  *engine.Submitter
	Calendar   *engine.MilestoneCalendar
	Importer   *engine.Importer
	Server     *server.CalendarServer

	// Secrets holds the import password, keyed by user name.
	Secrets store.Vault

	SupportedLanguages []string

	milestones atomic.Int64

	intakeWindow fyne.Window
	intake       *intakeView
	reviewWindow fyne.Window
	review       *reviewView
	importWindow fyne.Window
}

// NewEnrollApp constructs the application and wires the engine around repo.
func NewEnrollApp(a fyne.App, ctx context.Context, repo *engine.Repository, clock engine.Clock, srv *server.CalendarServer, fetcher engine.VCardFetcher, submitDelay time.Duration) *EnrollApp {
	app := &EnrollApp{
		App:                a,
		Preferences:        a.Preferences(),
		Ctx:                ctx,
		Clock:              clock,
		Repo:               repo,
		Edits:              engine.NewEditController(repo),
		IntakeGate:         engine.NewGate(repo, clock, engine.PolicyHardBlock),
		ReviewGate:         engine.NewGate(repo, clock, engine.PolicySoftBlockWithOverride),
		Importer:           &engine.Importer{Repo: repo, Fetcher: fetcher},
		Server:             srv,
		Secrets:            store.NewKeyringVault(),
		SupportedLanguages: config.SupportedLanguages,
	}
	app.Submitter = engine.NewSubmitter(repo, app.ReviewGate, clock, submitDelay)
	app.Calendar = &engine.MilestoneCalendar{Clock: clock, FormatSummary: app.milestoneSummary}
	return app
}

// Run launches the windows and the main UI loop.
func (app *EnrollApp) Run() {
	app.Start()
	app.App.Run()
}

// Start prepares i18n and subscriptions and opens the first window.
// Split from Run so tests can drive the windows headlessly.
func (app *EnrollApp) Start() {
	app.SetupI18n()
	app.watchPreferences()

	app.Repo.OnPersistError = app.notifyPersistError
	if err := app.Repo.LoadError(); err != nil {
		app.notifyPersistError(config.MetricOpLoad, err)
	}
	app.Repo.Subscribe(app.publishCalendar)
	app.publishCalendar(app.Repo.Snapshot())

	if app.intakeComplete() {
		app.ShowReviewWindow()
		return
	}
	app.ShowIntakeWindow()
}

// intakeComplete reports whether the first screen can be skipped.
func (app *EnrollApp) intakeComplete() bool {
	values, err := app.Repo.SectionValues(engine.PrimaryID, engine.SectionIntake)
	if err != nil {
		return false
	}
	return app.Repo.Validator().ValidateSection(engine.SectionIntake, values) == nil
}

// watchPreferences refreshes translations when the language changes.
func (app *EnrollApp) watchPreferences() {
	lang := app.Preferences.String(config.PrefLanguage)
	app.Preferences.AddChangeListener(func() {
		current := app.Preferences.String(config.PrefLanguage)
		if current == lang {
			return
		}
		lang = current
		app.UpdateLocalizer()
		fyne.Do(app.refreshWindows)
	})
}

func (app *EnrollApp) refreshWindows() {
	if app.intake != nil {
		app.intake.relabel()
	}
	if app.review != nil {
		app.review.rebuild()
	}
}

// publishCalendar rebuilds the milestone feed after every household change.
func (app *EnrollApp) publishCalendar(h *engine.Household) {
	if app.Server == nil {
		return
	}
	data, milestones, err := app.Calendar.Build(app.Ctx, h)
	if err != nil {
		slog.Error(config.ErrICalEncode,
			config.LogKeyComponent, config.CompUI,
			config.LogKeyError, err,
		)
		return
	}
	app.milestones.Store(int64(len(milestones)))
	app.Server.Update(data)
	app.Server.UpdateMilestones(milestones)
}

// notifyPersistError surfaces a failed load or save. The in-memory household stays current.
func (app *EnrollApp) notifyPersistError(op string, err error) {
	slog.Error(config.MsgPersistFailed,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyMode, op,
		config.LogKeyError, err,
	)
	key, fallback := config.TKeyNotifSaveFailed, config.FallbackSaveFailed
	if op == config.MetricOpLoad {
		key, fallback = config.TKeyNotifLoadFailed, config.FallbackLoadFailed
	}
	msg := app.GetMsg(key)
	if msg == key {
		msg = fallback
	}
	app.App.SendNotification(fyne.NewNotification(config.AppName, msg))
}

// calendarURL is where the milestone feed is served.
func (app *EnrollApp) calendarURL() string {
	if app.Server == nil {
		return ""
	}
	return fmt.Sprintf("http://%s%s%s%s", config.LocalhostBindAddr, config.AddrSeparator, app.Server.Port, config.RouteCalendar)
}
