// Package scheduler runs recurring directory exports and delivers them by
// email and to the document archive.
package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"coopregistry/portal-backend/internal/config"
	"coopregistry/portal-backend/internal/export"
	"coopregistry/portal-backend/internal/locale"
)

// ErrUnknownSchedule is returned by RunNow for a name that was never added.
var ErrUnknownSchedule = errors.New("unknown schedule")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule is one recurring directory export
type Schedule struct {
	Name   string
	Cron   string
	Format export.Format
	Locale locale.Locale
	// Status restricts the directory to one registration status; empty
	// exports every cooperative.
	Status     string
	Recipients []string
	Archive    bool
}

// FromConfig validates configured schedules.
func FromConfig(cfgs []config.ScheduleConfig) ([]Schedule, error) {
	schedules := make([]Schedule, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for _, c := range cfgs {
		s, err := newSchedule(c)
		if err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("schedule %q is defined twice", s.Name)
		}
		seen[s.Name] = true
		schedules = append(schedules, s)
	}
	return schedules, nil
}

func newSchedule(c config.ScheduleConfig) (Schedule, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return Schedule{}, errors.New("schedule name is required")
	}
	if _, err := cronParser.Parse(c.Cron); err != nil {
		return Schedule{}, fmt.Errorf("schedule %q: invalid cron expression: %w", name, err)
	}
	f, err := export.ParseFormat(c.Format)
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule %q: %w", name, err)
	}
	l, err := locale.Parse(c.Locale)
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule %q: %w", name, err)
	}
	if len(c.Recipients) == 0 && !c.Archive {
		return Schedule{}, fmt.Errorf("schedule %q has neither recipients nor archive", name)
	}
	return Schedule{
		Name:       name,
		Cron:       c.Cron,
		Format:     f,
		Locale:     l,
		Status:     c.Status,
		Recipients: c.Recipients,
		Archive:    c.Archive,
	}, nil
}
