// internal/app/system/timezones/timezones.go
package timezones

import (
	"sort"
	"sync"
	"time"
	_ "time/tzdata" // hosts without a zoneinfo database
)

// Zone is one entry in the curated selector list.
type Zone struct {
	ID     string
	Label  string
	Region string
}

type ZoneGroup struct {
	Region string
	Zones  []Zone
}

// curated is the list offered in selectors. IDs are IANA names.
var curated = []Zone{
	{ID: "UTC", Label: "UTC", Region: "Other"},

	{ID: "America/New_York", Label: "Eastern Time (New York)", Region: "Americas"},
	{ID: "America/Chicago", Label: "Central Time (Chicago)", Region: "Americas"},
	{ID: "America/Denver", Label: "Mountain Time (Denver)", Region: "Americas"},
	{ID: "America/Phoenix", Label: "Mountain Time, no DST (Phoenix)", Region: "Americas"},
	{ID: "America/Los_Angeles", Label: "Pacific Time (Los Angeles)", Region: "Americas"},
	{ID: "America/Anchorage", Label: "Alaska Time (Anchorage)", Region: "Americas"},
	{ID: "Pacific/Honolulu", Label: "Hawaii Time (Honolulu)", Region: "Americas"},
	{ID: "America/Toronto", Label: "Eastern Time (Toronto)", Region: "Americas"},
	{ID: "America/Mexico_City", Label: "Central Time (Mexico City)", Region: "Americas"},
	{ID: "America/Sao_Paulo", Label: "Brasília Time (São Paulo)", Region: "Americas"},

	{ID: "Europe/London", Label: "UK Time (London)", Region: "Europe"},
	{ID: "Europe/Paris", Label: "Central European Time (Paris)", Region: "Europe"},
	{ID: "Europe/Berlin", Label: "Central European Time (Berlin)", Region: "Europe"},
	{ID: "Europe/Athens", Label: "Eastern European Time (Athens)", Region: "Europe"},
	{ID: "Europe/Moscow", Label: "Moscow Time", Region: "Europe"},

	{ID: "Africa/Lagos", Label: "West Africa Time (Lagos)", Region: "Africa"},
	{ID: "Africa/Johannesburg", Label: "South Africa Time (Johannesburg)", Region: "Africa"},

	{ID: "Asia/Dubai", Label: "Gulf Time (Dubai)", Region: "Asia"},
	{ID: "Asia/Kolkata", Label: "India Time (Kolkata)", Region: "Asia"},
	{ID: "Asia/Singapore", Label: "Singapore Time", Region: "Asia"},
	{ID: "Asia/Shanghai", Label: "China Time (Shanghai)", Region: "Asia"},
	{ID: "Asia/Tokyo", Label: "Japan Time (Tokyo)", Region: "Asia"},

	{ID: "Australia/Sydney", Label: "Eastern Australia Time (Sydney)", Region: "Oceania"},
	{ID: "Pacific/Auckland", Label: "New Zealand Time (Auckland)", Region: "Oceania"},
}

var (
	indexOnce sync.Once
	byID      map[string]Zone

	groupsOnce sync.Once
	groups     []ZoneGroup
)

func index() {
	indexOnce.Do(func() {
		byID = make(map[string]Zone, len(curated))
		for _, z := range curated {
			byID[z.ID] = z
		}
	})
}

// All returns the curated list of zones in a stable order.
func All() []Zone {
	return curated
}

// Label returns the human-friendly label for an ID, or the ID itself if not found.
func Label(id string) string {
	index()
	if z, ok := byID[id]; ok {
		return z.Label
	}
	return id
}

// Valid reports whether the given ID exists in the curated list.
func Valid(id string) bool {
	index()
	_, ok := byID[id]
	return ok
}

// Location resolves a curated ID. Anything else, including "", is UTC.
func Location(id string) *time.Location {
	if !Valid(id) {
		return time.UTC
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Groups returns the curated zones grouped by region, regions and zones
// sorted by name. The result is built once and shared.
func Groups() []ZoneGroup {
	groupsOnce.Do(func() {
		byRegion := make(map[string][]Zone)
		for _, z := range curated {
			byRegion[z.Region] = append(byRegion[z.Region], z)
		}
		for region, zs := range byRegion {
			sort.SliceStable(zs, func(i, j int) bool { return zs[i].Label < zs[j].Label })
			groups = append(groups, ZoneGroup{Region: region, Zones: zs})
		}
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Region < groups[j].Region })
	})
	return groups
}
