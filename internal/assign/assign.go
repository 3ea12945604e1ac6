// Package assign balances open cleaning jobs across housekeeping staff.
package assign

import (
	"sort"

	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/worklist"
)

// Assignment is one decision made by AutoAssign.
type Assignment struct {
	Ref      worklist.Ref `json:"ref"`
	Assignee string       `json:"assignee"`
	Points   int          `json:"points"`
}

// Load sums the points of assigned, non-inquiry entries per staff member.
func Load(entries []worklist.Entry) map[string]int {
	load := make(map[string]int)
	for _, e := range entries {
		if e.IsInquiry() {
			continue
		}
		if name := e.Task.AssigneeName(); name != "" {
			load[name] += e.Task.Points
		}
	}
	return load
}

// AutoAssign hands every open, unassigned job to the eligible staff member
// with the least load, ties going to roster order. Jobs are visited High
// priority first. Facilities without eligible staff are left alone.
//
// Running it again on its own output assigns nothing.
func AutoAssign(entries []worklist.Entry) []Assignment {
	load := Load(entries)

	type group struct {
		staff []string
		jobs  []worklist.Entry
	}
	groups := make(map[string]*group)
	var order []string
	for _, e := range entries {
		if e.IsInquiry() || e.Task.Status == model.TaskDone || e.Task.AssigneeName() != "" {
			continue
		}
		g, ok := groups[e.Ref.FacilityID]
		if !ok {
			g = &group{staff: e.EligibleStaff}
			groups[e.Ref.FacilityID] = g
			order = append(order, e.Ref.FacilityID)
		}
		g.jobs = append(g.jobs, e)
	}

	var out []Assignment
	for _, facility := range order {
		g := groups[facility]
		if len(g.staff) == 0 {
			continue
		}
		sort.SliceStable(g.jobs, func(i, j int) bool {
			return g.jobs[i].Task.Priority.Rank() < g.jobs[j].Task.Priority.Rank()
		})
		for _, job := range g.jobs {
			best := g.staff[0]
			for _, name := range g.staff[1:] {
				if load[name] < load[best] {
					best = name
				}
			}
			load[best] += job.Task.Points
			out = append(out, Assignment{Ref: job.Ref, Assignee: best, Points: job.Task.Points})
		}
	}
	return out
}
