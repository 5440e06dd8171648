package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bowerhall/daylog/internal/store"
)

const systemPreamble = `You are a personal daily-life assistant. You are given a log of the user's recent calendar events, visited locations and photos, followed by their question. Answer from the log when it is relevant; be concise and conversational. If the log does not cover the question, say so instead of guessing.`

const visionSystemPrompt = `You describe photos factually and concisely. Mention the main subjects, the setting and any visible text.`

const timeFormat = "3:04 PM"

// renderContext builds the natural-language context block: today's records in
// detail, the rest of the current week summarized per date, and the vision
// description when a photo came with this turn.
func renderContext(w Windows, tz *time.Location, events []store.EventRow, locations []store.LocationRow, photos []store.PhotoRow, visionDesc string) string {
	var b strings.Builder

	b.WriteString("Today is " + w.StartOfToday.In(tz).Format("Monday, January 2, 2006") + ".\n")

	renderToday(&b, w, tz, events, locations, photos)
	renderWeek(&b, w, tz, events, locations, photos)

	if visionDesc != "" {
		b.WriteString("\nThe user attached a photo to this message. Photo description (treat it as ground truth about the photo): ")
		b.WriteString(visionDesc)
		b.WriteString("\n")
	}

	return b.String()
}

func renderToday(b *strings.Builder, w Windows, tz *time.Location, events []store.EventRow, locations []store.LocationRow, photos []store.PhotoRow) {
	b.WriteString("\nToday's calendar:\n")
	count := 0
	for _, ev := range events {
		if !inWindow(ev.StartTime, w.StartOfToday, w.EndOfToday) {
			continue
		}
		count++
		fmt.Fprintf(b, "- %s (%s to %s)", ev.Title,
			ev.StartTime.In(tz).Format(timeFormat), ev.EndTime.In(tz).Format(timeFormat))
		if ev.Location != nil {
			fmt.Fprintf(b, " at %s", *ev.Location)
		}
		b.WriteString("\n")
	}
	if count == 0 {
		b.WriteString("- no events\n")
	}

	b.WriteString("\nToday's locations:\n")
	count = 0
	for _, loc := range locations {
		if !inWindow(loc.Timestamp, w.StartOfToday, w.EndOfToday) {
			continue
		}
		count++
		fmt.Fprintf(b, "- %s at %s\n", loc.Place, loc.Timestamp.In(tz).Format(timeFormat))
	}
	if count == 0 {
		b.WriteString("- no locations recorded\n")
	}

	b.WriteString("\nToday's photos:\n")
	count = 0
	for _, ph := range photos {
		if !inWindow(ph.Timestamp, w.StartOfToday, w.EndOfToday) {
			continue
		}
		count++
		fmt.Fprintf(b, "- photo at %s", ph.Timestamp.In(tz).Format(timeFormat))
		if ph.Place != nil {
			fmt.Fprintf(b, " in %s", *ph.Place)
		}
		if ph.Caption != "" {
			fmt.Fprintf(b, " (%s)", ph.Caption)
		}
		b.WriteString("\n")
	}
	if count == 0 {
		b.WriteString("- no photos\n")
	}
}

// renderWeek summarizes the current week before today, one line per date.
func renderWeek(b *strings.Builder, w Windows, tz *time.Location, events []store.EventRow, locations []store.LocationRow, photos []store.PhotoRow) {
	type daySummary struct {
		events    []string
		locations map[string]bool
		photos    int
	}
	days := map[string]*daySummary{}
	day := func(t time.Time) *daySummary {
		key := t.In(tz).Format("2006-01-02")
		if days[key] == nil {
			days[key] = &daySummary{locations: map[string]bool{}}
		}
		return days[key]
	}

	for _, ev := range events {
		if inWindow(ev.StartTime, w.StartOfWeek, w.StartOfToday) {
			day(ev.StartTime).events = append(day(ev.StartTime).events, ev.Title)
		}
	}
	for _, loc := range locations {
		if inWindow(loc.Timestamp, w.StartOfWeek, w.StartOfToday) {
			day(loc.Timestamp).locations[loc.Place] = true
		}
	}
	for _, ph := range photos {
		if inWindow(ph.Timestamp, w.StartOfWeek, w.StartOfToday) {
			day(ph.Timestamp).photos++
		}
	}

	if len(days) == 0 {
		return
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("\nEarlier this week:\n")
	for _, key := range keys {
		d := days[key]
		parts := []string{}
		if len(d.events) > 0 {
			parts = append(parts, "events: "+strings.Join(d.events, ", "))
		}
		if len(d.locations) > 0 {
			places := make([]string, 0, len(d.locations))
			for p := range d.locations {
				places = append(places, p)
			}
			sort.Strings(places)
			parts = append(parts, "places: "+strings.Join(places, ", "))
		}
		if d.photos > 0 {
			parts = append(parts, fmt.Sprintf("%d photos", d.photos))
		}
		fmt.Fprintf(b, "- %s: %s\n", key, strings.Join(parts, "; "))
	}
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// selectPhotos picks historical photos to show with the answer: today's
// photos when the query mentions "today", photos taken at a place named in
// the query, or recent photos when the query asks about photos generally.
func selectPhotos(query string, w Windows, photos []store.PhotoRow, locations []store.LocationRow) []string {
	const maxPhotos = 5
	lower := strings.ToLower(query)

	pick := func(match func(store.PhotoRow) bool) []string {
		var uris []string
		for _, ph := range photos {
			if match(ph) {
				uris = append(uris, ph.FileURI)
				if len(uris) == maxPhotos {
					break
				}
			}
		}
		return uris
	}

	if strings.Contains(lower, "today") {
		return pick(func(ph store.PhotoRow) bool {
			return inWindow(ph.Timestamp, w.StartOfToday, w.EndOfToday)
		})
	}

	for _, loc := range locations {
		place := strings.ToLower(loc.Place)
		if place != "" && place != strings.ToLower(unknownPlaceLabel) && strings.Contains(lower, place) {
			return pick(func(ph store.PhotoRow) bool {
				return ph.Place != nil && strings.EqualFold(*ph.Place, loc.Place)
			})
		}
	}

	if strings.Contains(lower, "photo") || strings.Contains(lower, "picture") {
		return pick(func(store.PhotoRow) bool { return true })
	}

	return nil
}

const unknownPlaceLabel = "Unknown location"
