// Package calendar keeps event snapshots in sync with their sources and
// imports ICS feeds into the event store.
package calendar

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/meetassist/backend/internal/config"
	"github.com/meetassist/backend/internal/storage/models"
)

const maxOccurrencesPerEvent = 1000

// feedLookback keeps the rest of the current week in the import window.
const feedLookback = 7

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// FeedParser downloads ICS feeds and turns them into events, expanding
// recurrences over a window around now.
type FeedParser struct {
	httpClient *http.Client
	loc        *time.Location
	horizon    time.Duration
	now        func() time.Time
}

// NewFeedParser creates a parser that expands recurrences from the start of
// the day a week ago to horizon ahead. Floating and all-day times are read
// in loc.
func NewFeedParser(loc *time.Location, horizon time.Duration) *FeedParser {
	if loc == nil {
		loc = time.Local
	}
	if horizon <= 0 {
		horizon = 60 * 24 * time.Hour
	}
	return &FeedParser{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		loc:     loc,
		horizon: horizon,
		now:     time.Now,
	}
}

// Fetch downloads and parses a feed.
func (p *FeedParser) Fetch(ctx context.Context, feed config.Feed) ([]models.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	return p.Parse(feed.ID, io.LimitReader(resp.Body, maxResponseBytes))
}

// Window returns the span Parse keeps events for. Stored feed events that
// end before the start are history and are left alone by the importer.
func (p *FeedParser) Window() (start, end time.Time) {
	now := p.now().In(p.loc)
	y, m, d := now.Date()
	start = time.Date(y, m, d-feedLookback, 0, 0, 0, 0, p.loc)
	return start, now.Add(p.horizon)
}

// Parse reads an ICS calendar. Cancelled occurrences are left out so the
// importer tombstones them.
func (p *FeedParser) Parse(feedID string, r io.Reader) ([]models.Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	calendarTitle := calendarName(cal)
	windowStart, windowEnd := p.Window()

	var masters, singles []feedEvent
	overrides := make(map[string]feedEvent)
	for _, ve := range cal.Events() {
		fe, err := p.readEvent(ve)
		if err != nil {
			log.Printf("Skipping feed %s event: %v", feedID, err)
			continue
		}
		fe.calendarTitle = calendarTitle

		switch {
		case fe.recurrenceID != nil:
			overrides[overrideKey(fe.uid, *fe.recurrenceID)] = fe
		case fe.rrule != "":
			masters = append(masters, fe)
		default:
			singles = append(singles, fe)
		}
	}

	var events []models.Event
	for _, fe := range singles {
		if overlapsWindow(fe.start, fe.end, windowStart, windowEnd) {
			events = append(events, fe.toEvents(feedID+":"+fe.uid)...)
		}
	}

	used := make(map[string]bool)
	for _, master := range masters {
		for _, start := range p.expand(master, windowStart, windowEnd) {
			id := fmt.Sprintf("%s:%s:%d", feedID, master.uid, start.Unix())
			key := overrideKey(master.uid, start)
			if override, ok := overrides[key]; ok {
				used[key] = true
				events = append(events, override.toEvents(id)...)
				continue
			}

			occurrence := master
			occurrence.end = start.Add(master.end.Sub(master.start))
			occurrence.start = start
			events = append(events, occurrence.toEvents(id)...)
		}
	}

	for key, override := range overrides {
		if used[key] || !overlapsWindow(override.start, override.end, windowStart, windowEnd) {
			continue
		}
		id := fmt.Sprintf("%s:%s:%d", feedID, override.uid, override.recurrenceID.Unix())
		events = append(events, override.toEvents(id)...)
	}

	return events, nil
}

// feedEvent is a VEVENT read off the wire, before expansion.
type feedEvent struct {
	uid           string
	summary       string
	status        string
	organizer     string
	calendarTitle string
	meetingURL    string
	platform      string

	start  time.Time
	end    time.Time
	hasEnd bool
	allDay bool

	rrule        string
	exdates      []time.Time
	recurrenceID *time.Time
}

func (p *FeedParser) readEvent(ve *ical.VEvent) (feedEvent, error) {
	fe := feedEvent{
		uid:       strings.TrimSpace(propertyValue(ve.GetProperty(ical.ComponentPropertyUniqueId))),
		summary:   sanitize(propertyValue(ve.GetProperty(ical.ComponentPropertySummary))),
		status:    strings.ToUpper(strings.TrimSpace(propertyValue(ve.GetProperty(ical.ComponentPropertyStatus)))),
		organizer: organizerEmail(propertyValue(ve.GetProperty(ical.ComponentPropertyOrganizer))),
		rrule:     strings.TrimSpace(propertyValue(ve.GetProperty(ical.ComponentPropertyRrule))),
	}
	if fe.uid == "" {
		return feedEvent{}, fmt.Errorf("missing UID")
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return feedEvent{}, fmt.Errorf("event %s: missing DTSTART", fe.uid)
	}
	fe.allDay = isAllDay(dtStart)

	if fe.allDay {
		start, err := parseDate(dtStart.Value, p.loc)
		if err != nil {
			return feedEvent{}, fmt.Errorf("event %s: DTSTART: %w", fe.uid, err)
		}
		fe.start = start
		fe.end = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseDate(dtEnd.Value, p.loc); err == nil && end.After(start) {
				fe.end = end
			}
		}
		fe.hasEnd = true
	} else {
		start, err := p.parseTimeValue(dtStart.Value, dtStart.ICalParameters)
		if err != nil {
			return feedEvent{}, fmt.Errorf("event %s: DTSTART: %w", fe.uid, err)
		}
		fe.start = start
		fe.end = start.Add(time.Hour)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := p.parseTimeValue(dtEnd.Value, dtEnd.ICalParameters); err == nil {
				fe.end = end
				fe.hasEnd = true
			}
		}
	}

	for _, prop := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, value := range strings.Split(prop.Value, ",") {
			if t, err := p.parseTimeValue(value, prop.ICalParameters); err == nil {
				fe.exdates = append(fe.exdates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId); rid != nil {
		if t, err := p.parseTimeValue(rid.Value, rid.ICalParameters); err == nil {
			fe.recurrenceID = &t
		}
	}

	fe.meetingURL, fe.platform = meetingLink(
		propertyValue(ve.GetProperty(ical.ComponentProperty("X-GOOGLE-CONFERENCE"))),
		propertyValue(ve.GetProperty(ical.ComponentPropertyUrl)),
		propertyValue(ve.GetProperty(ical.ComponentPropertyLocation)),
		propertyValue(ve.GetProperty(ical.ComponentPropertyDescription)),
	)

	return fe, nil
}

// expand returns the occurrence starts of a recurring event inside the
// window. An unparsable rule degrades to the first occurrence.
func (p *FeedParser) expand(fe feedEvent, windowStart, windowEnd time.Time) []time.Time {
	opt, err := rrule.StrToROption(fe.rrule)
	if err != nil {
		log.Printf("Failed to parse RRULE for %s: %v", fe.uid, err)
		return firstOnly(fe, windowStart, windowEnd)
	}
	opt.Dtstart = fe.start

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		log.Printf("Failed to build RRULE for %s: %v", fe.uid, err)
		return firstOnly(fe, windowStart, windowEnd)
	}

	set := &rrule.Set{}
	set.RRule(rule)
	for _, ex := range fe.exdates {
		set.ExDate(ex.In(fe.start.Location()))
	}

	duration := fe.end.Sub(fe.start)
	starts := set.Between(windowStart.Add(-duration), windowEnd, true)
	if len(starts) > maxOccurrencesPerEvent {
		log.Printf("Truncated %s to %d occurrences", fe.uid, maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}
	return starts
}

func firstOnly(fe feedEvent, windowStart, windowEnd time.Time) []time.Time {
	if overlapsWindow(fe.start, fe.end, windowStart, windowEnd) {
		return []time.Time{fe.start}
	}
	return nil
}

// toEvents converts one occurrence. All-day occurrences become one exact
// 24 hour event per day; the first day keeps id, later days get a date
// suffix.
func (fe feedEvent) toEvents(id string) []models.Event {
	if fe.status == "CANCELLED" {
		return nil
	}

	base := models.Event{
		ID:              id,
		Title:           fe.summary,
		MeetingPlatform: fe.platform,
		MeetingURL:      nonEmptyPtr(fe.meetingURL),
		Status:          eventStatus(fe.status),
		CreatorEmail:    nonEmptyPtr(fe.organizer),
		CalendarTitle:   nonEmptyPtr(fe.calendarTitle),
	}

	if !fe.allDay {
		e := base
		e.StartTime = fe.start
		if fe.hasEnd {
			end := fe.end
			e.EndTime = &end
		}
		return []models.Event{e}
	}

	var out []models.Event
	for day := fe.start; day.Before(fe.end); day = day.AddDate(0, 0, 1) {
		e := base
		if !day.Equal(fe.start) {
			e.ID = id + "/" + day.Format(models.DateLayout)
		}
		e.StartTime = day
		end := day.Add(24 * time.Hour)
		e.EndTime = &end
		out = append(out, e)
	}
	return out
}

func (p *FeedParser) parseTimeValue(value string, params map[string][]string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}

	loc := p.loc
	if tzids, ok := params["TZID"]; ok && len(tzids) > 0 {
		if tz, err := time.LoadLocation(strings.Trim(strings.TrimSpace(tzids[0]), `"`)); err == nil {
			loc = tz
		}
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T1504Z"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	for _, layout := range []string{"20060102T150405", "20060102T1504", "20060102"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time value %q", value)
}

// meetingLink picks the conference URL from the candidate fields in order,
// preferring a recognized platform anywhere over an unknown link.
func meetingLink(conference, eventURL, location, description string) (string, string) {
	var candidates []string
	for _, field := range []string{conference, eventURL, location, description} {
		candidates = append(candidates, urlPattern.FindAllString(field, -1)...)
	}

	var fallback string
	for _, raw := range candidates {
		link := normalizeURL(raw)
		if link == "" {
			continue
		}
		if platform := ClassifyPlatform(link); platform != models.PlatformOther {
			return link, platform
		}
		if fallback == "" {
			fallback = link
		}
	}
	if fallback == "" {
		return "", models.PlatformNone
	}
	return fallback, models.PlatformOther
}

// ClassifyPlatform names the meeting platform a URL belongs to.
func ClassifyPlatform(link string) string {
	parsed, err := url.Parse(link)
	if err != nil || parsed.Host == "" {
		return models.PlatformNone
	}

	host := strings.ToLower(parsed.Hostname())
	switch {
	case host == "zoom.us" || strings.HasSuffix(host, ".zoom.us") || strings.HasSuffix(host, "zoomgov.com"):
		return models.PlatformZoom
	case host == "meet.google.com":
		return models.PlatformGoogleMeet
	case strings.HasSuffix(host, "teams.microsoft.com") || strings.HasSuffix(host, "teams.live.com"):
		return models.PlatformTeams
	case host == "webex.com" || strings.HasSuffix(host, ".webex.com"):
		return models.PlatformWebex
	default:
		return models.PlatformOther
	}
}

func normalizeURL(raw string) string {
	value := strings.TrimRight(strings.TrimSpace(raw), ".,;)")
	parsed, err := url.Parse(value)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}
	return parsed.String()
}

func calendarName(cal *ical.Calendar) string {
	for _, prop := range cal.CalendarProperties {
		if strings.EqualFold(prop.IANAToken, "X-WR-CALNAME") {
			return sanitize(prop.Value)
		}
	}
	return ""
}

func organizerEmail(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 7 && strings.EqualFold(value[:7], "mailto:") {
		value = value[7:]
	}
	return value
}

func eventStatus(status string) string {
	switch status {
	case models.EventStatusTentative, models.EventStatusCancelled:
		return status
	default:
		return models.EventStatusConfirmed
	}
}

// parseDate reads the date part of a DATE or DATE-TIME value.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) < 8 {
		return time.Time{}, fmt.Errorf("unable to parse date %q", value)
	}
	return time.ParseInLocation("20060102", value[:8], loc)
}

func isAllDay(prop *ical.IANAProperty) bool {
	if values, ok := prop.ICalParameters["VALUE"]; ok {
		for _, v := range values {
			if strings.EqualFold(strings.TrimSpace(v), "DATE") {
				return true
			}
		}
	}
	return len(strings.TrimSpace(prop.Value)) == 8
}

func overlapsWindow(start, end, windowStart, windowEnd time.Time) bool {
	if !end.After(start) {
		end = start
	}
	return start.Before(windowEnd) && !end.Before(windowStart)
}

func overrideKey(uid string, start time.Time) string {
	return fmt.Sprintf("%s|%d", uid, start.Unix())
}

func propertyValue(prop *ical.IANAProperty) string {
	if prop == nil {
		return ""
	}
	return prop.Value
}

func sanitize(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
