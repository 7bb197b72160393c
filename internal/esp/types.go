package esp

import (
	"fmt"
	"strings"
	"time"
)

// AreaID identifies a status region ("eskom", "capetown") or a schedule
// area ("eskde-10-fourwaysext10cityofjohannesburggauteng").
type AreaID string

// StageChange is an upcoming stage transition.
type StageChange struct {
	Stage string    `json:"stage" yaml:"stage"`
	Start time.Time `json:"start" yaml:"start"`
}

// Status is the load-shedding status for one region.
type Status struct {
	Name         string        `json:"name" yaml:"name"`
	Stage        string        `json:"stage" yaml:"stage"`
	StageUpdated time.Time     `json:"stage_updated" yaml:"stage_updated"`
	NextStages   []StageChange `json:"next_stages,omitempty" yaml:"next_stages,omitempty"`
}

// StatusMap is the result of one status call.
type StatusMap map[AreaID]Status

// National is the key of the country-wide Eskom status.
const National AreaID = "eskom"

// Allowance is the daily API budget attached to a token.
type Allowance struct {
	Count int    `json:"count"`
	Limit int    `json:"limit"`
	Type  string `json:"type"`
}

// Remaining returns how many calls are left today (never negative).
func (a Allowance) Remaining() int {
	if a.Count >= a.Limit {
		return 0
	}
	return a.Limit - a.Count
}

// Area is one area search hit.
type Area struct {
	ID     AreaID `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

func (a Area) String() string { return fmt.Sprintf("%s - %s", a.Region, a.Name) }

// Event is a scheduled outage for an area.
type Event struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Note  string    `json:"note"`
}

// ScheduleDay lists outage slots per stage for one day. Stages[0] is stage 1.
type ScheduleDay struct {
	Date   string     `json:"date"`
	Name   string     `json:"name"`
	Stages [][]string `json:"stages"`
}

// AreaInfo is the detail view of a single area.
type AreaInfo struct {
	Name     string        `json:"name"`
	Region   string        `json:"region"`
	Events   []Event       `json:"events"`
	Schedule []ScheduleDay `json:"schedule"`
	Source   string        `json:"source,omitempty"`
}

// ---- wire formats ----

type errorBody struct {
	Error string `json:"error"`
}

type statusBody struct {
	Status map[string]struct {
		Name       string `json:"name"`
		Stage      string `json:"stage"`
		Updated    string `json:"stage_updated"`
		NextStages []struct {
			Stage string `json:"stage"`
			Start string `json:"stage_start_timestamp"`
		} `json:"next_stages"`
	} `json:"status"`
}

type allowanceBody struct {
	Allowance Allowance `json:"allowance"`
}

type areasBody struct {
	Areas []Area `json:"areas"`
}

type areaInfoBody struct {
	Events []struct {
		Start string `json:"start"`
		End   string `json:"end"`
		Note  string `json:"note"`
	} `json:"events"`
	Info struct {
		Name   string `json:"name"`
		Region string `json:"region"`
	} `json:"info"`
	Schedule struct {
		Days   []ScheduleDay `json:"days"`
		Source string        `json:"source"`
	} `json:"schedule"`
}

func (b statusBody) toStatusMap() (StatusMap, error) {
	out := make(StatusMap, len(b.Status))
	for id, raw := range b.Status {
		st := Status{Name: raw.Name, Stage: raw.Stage}
		if raw.Updated != "" {
			t, err := parseTimestamp(raw.Updated)
			if err != nil {
				return nil, err
			}
			st.StageUpdated = t
		}
		for _, ns := range raw.NextStages {
			t, err := parseTimestamp(ns.Start)
			if err != nil {
				return nil, err
			}
			st.NextStages = append(st.NextStages, StageChange{Stage: ns.Stage, Start: t})
		}
		out[AreaID(id)] = st
	}
	return out, nil
}

func (b areaInfoBody) toAreaInfo() (AreaInfo, error) {
	info := AreaInfo{
		Name:     b.Info.Name,
		Region:   b.Info.Region,
		Schedule: b.Schedule.Days,
		Source:   b.Schedule.Source,
	}
	for _, ev := range b.Events {
		start, err := parseTimestamp(ev.Start)
		if err != nil {
			return AreaInfo{}, err
		}
		end, err := parseTimestamp(ev.End)
		if err != nil {
			return AreaInfo{}, err
		}
		info.Events = append(info.Events, Event{Start: start, End: end, Note: ev.Note})
	}
	return info, nil
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	// Seen without a zone offset on older responses.
	if t, err := time.Parse("2006-01-02T15:04:05.999999", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %q", value)
}
