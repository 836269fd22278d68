package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(t time.Time) *time.Time { return &t }

func scheduled(id string, start time.Time) JobComponent {
	return JobComponent{HcpID: id, Snapshot: Snapshot{Schedule: &Schedule{ScheduledStart: at(start)}}}
}

func TestSelectPrimary(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		components []JobComponent
		want       string
		tier       string
	}{
		{
			name: "earliest upcoming schedule beats past schedules",
			components: []JobComponent{
				scheduled("past", now.Add(-time.Hour)),
				scheduled("far", now.Add(48*time.Hour)),
				scheduled("soon", now.Add(2*time.Hour)),
			},
			want: "soon",
			tier: "upcoming_schedule",
		},
		{
			name: "latest past schedule when nothing is upcoming",
			components: []JobComponent{
				scheduled("older", now.Add(-48*time.Hour)),
				scheduled("recent", now.Add(-time.Hour)),
			},
			want: "recent",
			tier: "recent_schedule",
		},
		{
			name: "a schedule starting now counts as past",
			components: []JobComponent{
				scheduled("now", now),
				{HcpID: "updated", Snapshot: Snapshot{UpdatedAt: at(now)}},
			},
			want: "now",
			tier: "recent_schedule",
		},
		{
			name: "latest update without schedules",
			components: []JobComponent{
				{HcpID: "a", Snapshot: Snapshot{UpdatedAt: at(now.Add(-2 * time.Hour)), CreatedAt: at(now)}},
				{HcpID: "b", Snapshot: Snapshot{UpdatedAt: at(now.Add(-time.Hour))}},
			},
			want: "b",
			tier: "latest_update",
		},
		{
			name: "latest creation without updates",
			components: []JobComponent{
				{HcpID: "a", Snapshot: Snapshot{CreatedAt: at(now.Add(-2 * time.Hour))}},
				{HcpID: "b", Snapshot: Snapshot{CreatedAt: at(now.Add(-time.Hour))}},
			},
			want: "b",
			tier: "latest_creation",
		},
		{
			name:       "first component when nothing is dated",
			components: []JobComponent{{HcpID: "a"}, {HcpID: "b"}},
			want:       "a",
			tier:       "first",
		},
		{
			name: "ties go to the earliest component",
			components: []JobComponent{
				scheduled("a", now.Add(time.Hour)),
				scheduled("b", now.Add(time.Hour)),
			},
			want: "a",
			tier: "upcoming_schedule",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx, tier, ok := selectPrimary(tc.components, now)
			assert.True(t, ok)
			assert.Equal(t, tc.want, tc.components[idx].HcpID)
			assert.Equal(t, tc.tier, tier)
		})
	}
}

func TestSelectPrimaryEmpty(t *testing.T) {
	_, ok := SelectPrimary(nil, time.Now())
	assert.False(t, ok)
}
