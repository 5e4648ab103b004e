package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-enroll/internal/config"
)

// Milestone is an upcoming birthday that changes a person's eligibility:
// the 19th (leaves the minor program) or the 66th (first day over 65).
type Milestone struct {
	UID      string
	PersonID PersonID
	Name     string
	Kind     string // config.MilestoneMinor or config.MilestoneSenior
	Date     time.Time
	Age      int
}

// MilestoneCalendar turns covered household persons into an iCalendar feed.
type MilestoneCalendar struct {
	Clock Clock

	// FormatSummary allows the UI to inject localized strings into the logic layer.
	FormatSummary func(kind, name string) string
}

// Build lists upcoming milestones and encodes them as ICS.
func (c *MilestoneCalendar) Build(ctx context.Context, h *Household) ([]byte, []Milestone, error) {
	now := c.Clock.Now()
	milestones := UpcomingMilestones(h, now)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if len(milestones) == 0 {
		var buf bytes.Buffer
		// A valid empty VCALENDAR keeps subscribed clients from flagging the feed.
		buf.WriteString(config.StubVCalendar)
		c.logSuccess(0)
		return buf.Bytes(), nil, nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	for _, m := range milestones {
		event := ical.NewEvent()
		event.Props.SetText(config.PropUID, m.UID)
		event.Props.SetText(config.PropSummary, c.summary(m))
		event.Props.SetText(config.PropCategories, m.Kind)

		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDate(m.Date)
		event.Props.Set(dtStartProp)
		event.Props.Set(dtStampProp)

		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	c.logSuccess(len(milestones))
	return buf.Bytes(), milestones, nil
}

func (c *MilestoneCalendar) summary(m Milestone) string {
	if c.FormatSummary != nil {
		return c.FormatSummary(m.Kind, m.Name)
	}
	if m.Kind == config.MilestoneSenior {
		return fmt.Sprintf(config.FallbackSeniorMilestone, m.Name)
	}
	return fmt.Sprintf(config.FallbackMinorMilestone, m.Name)
}

func (c *MilestoneCalendar) logSuccess(events int) {
	slog.Info(config.MsgCalendarBuilt,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyEvents, events,
	)
}

// UpcomingMilestones returns the milestones falling today or later for the
// primary and every covered member, sorted by date.
func UpcomingMilestones(h *Household, now time.Time) []Milestone {
	var out []Milestone
	collect := func(p Person) {
		birth, ok := ParseRealDate(p.DateOfBirth)
		if !ok {
			return
		}
		for _, ms := range []struct {
			kind string
			age  int
		}{
			{config.MilestoneMinor, config.MinorAgeThreshold},
			{config.MilestoneSenior, config.SeniorAgeThreshold + 1},
		} {
			date := birthdayAt(birth, ms.age, now.Location())
			if afterDay(now, date) {
				continue
			}
			out = append(out, Milestone{
				UID:      milestoneUID(p.ID, ms.kind),
				PersonID: p.ID,
				Name:     p.DisplayName(),
				Kind:     ms.kind,
				Date:     date,
				Age:      ms.age,
			})
		}
	}

	collect(h.Primary)
	for _, m := range h.AllMembers() {
		if m.IncludedInCoverage {
			collect(m.Person)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// birthdayAt is the date a person reaches age. time.Date normalizes a Feb-29
// birth to Mar-1 in non-leap years, matching AgeInYears.
func birthdayAt(birth time.Time, age int, loc *time.Location) time.Time {
	return time.Date(birth.Year()+age, birth.Month(), birth.Day(), 0, 0, 0, 0, loc)
}

// milestoneUID is stable across refreshes for the same person and kind.
func milestoneUID(id PersonID, kind string) string {
	input := fmt.Sprintf(config.FormatHashInput, id, kind, config.UIDSalt)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf(config.FormatUID, fmt.Sprintf("%x", hash[:config.UIDHashLength]), kind, config.ICalDomain)
}
