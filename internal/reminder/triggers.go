package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/pkg/errors"
)

const (
	dayBeforeLead  = 24 * time.Hour
	hourBeforeLead = time.Hour

	// defaultDoseTime is used when a medication has no time at all.
	defaultDoseTime = "09:00"
	doseTimeLayout  = "15:04"
)

// Trigger is one future wake-up for an appointment.
type Trigger struct {
	Kind     model.TriggerKind
	Identity model.TimerIdentity
	FireAt   time.Time
}

// DoseTime is one daily dose slot of a medication.
type DoseTime struct {
	Index  int
	Hour   int
	Minute int
}

func (d DoseTime) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// AppointmentTriggers returns the day-before and hour-before triggers that are
// strictly after now. A malformed date or time yields a MalformedInput error and
// no triggers.
func AppointmentTriggers(appt *model.Appointment, loc *time.Location, now time.Time) ([]Trigger, error) {
	if appt.ID == nil {
		return nil, nil
	}
	startsAt, err := appt.StartsAt(loc)
	if err != nil {
		return nil, errors.MalformedInput(
			fmt.Sprintf("appointment %d has invalid date/time %q %q", *appt.ID, appt.Date, appt.Time), err)
	}

	candidates := []Trigger{
		{Kind: model.TriggerAppointmentDayBefore, FireAt: startsAt.Add(-dayBeforeLead)},
		{Kind: model.TriggerAppointmentHourBefore, FireAt: startsAt.Add(-hourBeforeLead)},
	}

	triggers := make([]Trigger, 0, len(candidates))
	for _, c := range candidates {
		if !c.FireAt.After(now) {
			continue
		}
		c.Identity = AppointmentIdentity(*appt.ID, c.Kind)
		triggers = append(triggers, c)
	}
	return triggers, nil
}

// ParseDoseTimes turns a medication's time field into daily dose slots.
//
// A comma separated list gives one slot per entry. A single time is the first
// dose and, when Frequency asks for more than one, the remaining doses are
// spread evenly over the day from it. At most MaxDailyDoses slots are returned;
// the number of slots cut off is reported as dropped. Any unparseable entry
// fails the whole medication.
func ParseDoseTimes(med *model.Medication) (doses []DoseTime, dropped int, err error) {
	raw := strings.TrimSpace(med.Time)

	var entries []string
	if strings.Contains(raw, ",") {
		entries = strings.Split(raw, ",")
	} else {
		if raw == "" {
			raw = defaultDoseTime
		}
		entries = []string{raw}
	}

	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		t, perr := time.Parse(doseTimeLayout, entry)
		if perr != nil {
			return nil, 0, errors.MalformedInput(
				fmt.Sprintf("medication %q has invalid dose time %q", med.Name, entry), perr)
		}
		doses = append(doses, DoseTime{Index: i, Hour: t.Hour(), Minute: t.Minute()})
	}

	if len(entries) == 1 {
		freq := DailyFrequency(med.Frequency)
		if freq > MaxDailyDoses {
			dropped = freq - MaxDailyDoses
			freq = MaxDailyDoses
		}
		// One configured time with freq > 1 is spread over the day, not stacked at that time.
		doses = spreadDoses(doses[0], freq)
		return doses, dropped, nil
	}

	if len(doses) > MaxDailyDoses {
		dropped = len(doses) - MaxDailyDoses
		doses = doses[:MaxDailyDoses]
	}
	return doses, dropped, nil
}

// DailyFrequency reads the textual dose count, defaulting to one.
func DailyFrequency(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func spreadDoses(first DoseTime, count int) []DoseTime {
	if count <= 1 {
		return []DoseTime{first}
	}
	const minutesPerDay = 24 * 60
	step := minutesPerDay / count
	start := first.Hour*60 + first.Minute

	doses := make([]DoseTime, 0, count)
	for i := 0; i < count; i++ {
		m := (start + i*step) % minutesPerDay
		doses = append(doses, DoseTime{Index: i, Hour: m / 60, Minute: m % 60})
	}
	return doses
}
