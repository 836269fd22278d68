package jobs

import "time"

// primaryTier is one rule of the primary-component ordering. pick returns
// the index of its best component or false when the rule does not apply.
type primaryTier struct {
	name string
	pick func(components []JobComponent, now time.Time) (int, bool)
}

// primaryTiers are tried in order; the first tier that applies wins.
// Within a tier ties go to the earliest component.
var primaryTiers = []primaryTier{
	{name: "upcoming_schedule", pick: earliestUpcomingSchedule},
	{name: "recent_schedule", pick: latestPastSchedule},
	{name: "latest_update", pick: latestBy(func(c JobComponent) *time.Time { return c.UpdatedAt })},
	{name: "latest_creation", pick: latestBy(func(c JobComponent) *time.Time { return c.CreatedAt })},
	{name: "first", pick: first},
}

// SelectPrimary picks the component whose fields a parent mirrors.
func SelectPrimary(components []JobComponent, now time.Time) (int, bool) {
	idx, _, ok := selectPrimary(components, now)
	return idx, ok
}

func selectPrimary(components []JobComponent, now time.Time) (int, string, bool) {
	if len(components) == 0 {
		return 0, "", false
	}
	for _, tier := range primaryTiers {
		if idx, ok := tier.pick(components, now); ok {
			return idx, tier.name, true
		}
	}
	return 0, "", false
}

func earliestUpcomingSchedule(components []JobComponent, now time.Time) (int, bool) {
	best, found := 0, false
	var bestStart time.Time
	for i, c := range components {
		start, ok := c.Schedule.start()
		if !ok || !start.After(now) {
			continue
		}
		if !found || start.Before(bestStart) {
			best, bestStart, found = i, start, true
		}
	}
	return best, found
}

func latestPastSchedule(components []JobComponent, now time.Time) (int, bool) {
	best, found := 0, false
	var bestStart time.Time
	for i, c := range components {
		start, ok := c.Schedule.start()
		if !ok || start.After(now) {
			continue
		}
		if !found || start.After(bestStart) {
			best, bestStart, found = i, start, true
		}
	}
	return best, found
}

func latestBy(field func(JobComponent) *time.Time) func([]JobComponent, time.Time) (int, bool) {
	return func(components []JobComponent, _ time.Time) (int, bool) {
		best, found := 0, false
		var bestAt time.Time
		for i, c := range components {
			at := field(c)
			if at == nil || at.IsZero() {
				continue
			}
			if !found || at.After(bestAt) {
				best, bestAt, found = i, *at, true
			}
		}
		return best, found
	}
}

func first(components []JobComponent, _ time.Time) (int, bool) {
	return 0, len(components) > 0
}
