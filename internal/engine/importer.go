package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/go-enroll/internal/config"
)

// ImportSource describes where household contacts come from.
type ImportSource struct {
	Mode      string // config.SourceModeLocal or config.SourceModeWeb
	LocalPath string
	WebURL    string
	WebUser   string
	WebPass   string
}

// ImportReport counts what an import did.
type ImportReport struct {
	Total     int
	Imported  int
	Confirmed int
	Skipped   int
	IDs       []PersonID
}

// Importer creates family members from vCards. Only contacts with a full
// birth date are taken. A CATEGORIES value of "spouse" makes a spouse (at most
// one), anything else a dependent. A member is confirmed when its personal
// section validates and stays pending otherwise.
type Importer struct {
	Repo    *Repository
	Fetcher VCardFetcher
}

// Import reads the source and adds members to the repository.
func (im *Importer) Import(ctx context.Context, src ImportSource) (ImportReport, error) {
	start := time.Now()
	var report ImportReport

	reader, err := im.acquireStream(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		return report, fmt.Errorf("%s: %w", config.ErrVCardParse, err)
	}
	defer func() { _ = reader.Close() }()

	decoder := vcard.NewDecoder(reader)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep going to recover as many contacts as possible.
			slog.WarnContext(ctx, config.MsgSkippedCard,
				config.LogKeyComponent, config.CompImport,
				config.LogKeyError, err)
			report.Skipped++
			continue
		}
		report.Total++

		member, ok := memberFromCard(card)
		if !ok {
			slog.DebugContext(ctx, config.MsgSkippedDate, config.LogKeyComponent, config.CompImport)
			report.Skipped++
			continue
		}

		complete := im.Repo.Validator().ValidateSection(SectionPersonal, memberValues(member, SectionPersonal)) == nil
		id, err := im.Repo.AddImportedMember(ctx, member, complete)
		if errors.Is(err, ErrSpouseAlreadyPresent) {
			slog.InfoContext(ctx, config.MsgImportSkipSpouse, config.LogKeyComponent, config.CompImport)
			report.Skipped++
			continue
		}
		if err != nil {
			return report, err
		}
		report.Imported++
		if complete {
			report.Confirmed++
		}
		report.IDs = append(report.IDs, id)
	}

	slog.InfoContext(ctx, config.MsgImportDone,
		config.LogKeyComponent, config.CompImport,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyTotal, report.Total),
			slog.Int(config.LogKeyImported, report.Imported),
		),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return report, nil
}

// acquireStream opens the appropriate data source based on configuration.
func (im *Importer) acquireStream(ctx context.Context, src ImportSource) (io.ReadCloser, error) {
	switch src.Mode {
	case config.SourceModeLocal:
		if src.LocalPath == "" {
			return nil, errors.New(config.ErrLocalPathEmpty)
		}
		return os.Open(src.LocalPath)
	case config.SourceModeWeb:
		if src.WebURL == "" {
			return nil, errors.New(config.ErrWebURLEmpty)
		}
		if im.Fetcher == nil {
			return nil, errors.New(config.ErrFetcherMissing)
		}
		return im.Fetcher.Fetch(ctx, src.WebURL, src.WebUser, src.WebPass)
	default:
		return nil, fmt.Errorf("%s: %q", config.ErrModeUnsupport, src.Mode)
	}
}

// memberFromCard maps a vCard to a covered family member. It fails when
// BDAY is missing or lacks a year.
func memberFromCard(card vcard.Card) (FamilyMember, bool) {
	bday := card.Get(config.VCardBDAY)
	if bday == nil || bday.Value == "" {
		return FamilyMember{}, false
	}
	birth, ok := parseVCardDate(bday.Value)
	if !ok {
		return FamilyMember{}, false
	}

	m := FamilyMember{
		Type:               MemberDependent,
		IncludedInCoverage: true,
	}
	m.DateOfBirth = CanonicalDate(birth)

	if n := card.Name(); n != nil && (n.GivenName != "" || n.FamilyName != "") {
		m.FirstName = NormalizeText(n.GivenName)
		m.LastName = NormalizeText(n.FamilyName)
	} else if fn := card.Get(config.VCardFN); fn != nil {
		m.FirstName, m.LastName = splitFullName(NormalizeText(fn.Value))
	}

	if g := card.Get(config.VCardGender); g != nil {
		switch strings.ToUpper(strings.TrimSpace(g.Value)) {
		case "M":
			m.Gender = GenderMale
		case "F":
			m.Gender = GenderFemale
		}
	}

	m.Contact.Email = strings.TrimSpace(card.PreferredValue(config.VCardEmail))
	m.Contact.Phone = NormalizeText(card.PreferredValue(config.VCardTel))

	for _, f := range card[config.VCardCategories] {
		for _, cat := range strings.Split(f.Value, ",") {
			if strings.EqualFold(strings.TrimSpace(cat), config.VCardSpouseCategory) {
				m.Type = MemberSpouse
			}
		}
	}
	return m, true
}

// splitFullName treats the last word as the family name.
func splitFullName(full string) (string, string) {
	i := strings.LastIndex(full, " ")
	if i < 0 {
		return full, ""
	}
	return full[:i], full[i+1:]
}

// parseVCardDate accepts the vCard date forms that carry a year.
// Year-less --MM-DD dates cannot yield an age and are rejected.
func parseVCardDate(value string) (time.Time, bool) {
	layouts := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
