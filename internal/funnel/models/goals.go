package models

import (
	"strings"

	"careergate/internal/upstream"
)

// GoalField identifies one editable field of FinalizedGoals.
type GoalField string

const (
	FieldEmail           GoalField = "email"
	FieldLinkedinURL     GoalField = "linkedin_url"
	FieldTargetRoles     GoalField = "target_roles"
	FieldTargetLocations GoalField = "target_locations"
	FieldSalaryGoal      GoalField = "salary_goal"
	FieldNotes           GoalField = "notes"
)

// FinalizedGoals is the editable goal sheet the user refines between ticket
// generation and checkout. Every user edit marks its field as touched;
// re-seeding from a regenerated ticket only fills fields the user has not
// touched, so edits survive regeneration.
type FinalizedGoals struct {
	Email           string
	LinkedinURL     string
	TargetRoles     []string
	TargetLocations []string
	SalaryGoal      string
	Notes           string

	touched map[GoalField]bool
}

func (g *FinalizedGoals) markTouched(field GoalField) {
	if g.touched == nil {
		g.touched = make(map[GoalField]bool)
	}
	g.touched[field] = true
}

// Touched reports whether the user has edited the given field.
func (g *FinalizedGoals) Touched(field GoalField) bool {
	return g.touched[field]
}

func (g *FinalizedGoals) SetEmail(email string) {
	g.Email = strings.TrimSpace(email)
	g.markTouched(FieldEmail)
}

func (g *FinalizedGoals) SetLinkedinURL(url string) {
	g.LinkedinURL = strings.TrimSpace(url)
	g.markTouched(FieldLinkedinURL)
}

func (g *FinalizedGoals) SetSalaryGoal(goal string) {
	g.SalaryGoal = strings.TrimSpace(goal)
	g.markTouched(FieldSalaryGoal)
}

func (g *FinalizedGoals) SetNotes(notes string) {
	g.Notes = notes
	g.markTouched(FieldNotes)
}

// AddTargetRole appends role if it is non-blank and not already present.
// Order of existing entries is preserved. A no-op add still counts as a user
// edit so a later re-seed cannot clobber the list.
func (g *FinalizedGoals) AddTargetRole(role string) {
	g.TargetRoles = addUnique(g.TargetRoles, role)
	g.markTouched(FieldTargetRoles)
}

// RemoveTargetRole deletes every exact match of role. Removing an absent
// value is a no-op.
func (g *FinalizedGoals) RemoveTargetRole(role string) {
	g.TargetRoles = removeExact(g.TargetRoles, role)
	g.markTouched(FieldTargetRoles)
}

// AddTargetLocation appends location with the same set semantics as roles.
func (g *FinalizedGoals) AddTargetLocation(location string) {
	g.TargetLocations = addUnique(g.TargetLocations, location)
	g.markTouched(FieldTargetLocations)
}

// RemoveTargetLocation deletes every exact match of location.
func (g *FinalizedGoals) RemoveTargetLocation(location string) {
	g.TargetLocations = removeExact(g.TargetLocations, location)
	g.markTouched(FieldTargetLocations)
}

// SeedFromClientInfo fills untouched fields from a generated ticket's client
// info. Seeded values do not mark fields touched: the user can still be
// overridden by the next regeneration until they edit a field themselves.
func (g *FinalizedGoals) SeedFromClientInfo(info upstream.ClientInfo) {
	if !g.Touched(FieldEmail) && info.Email != "" {
		g.Email = info.Email
	}
	if !g.Touched(FieldLinkedinURL) && info.LinkedinURL != "" {
		g.LinkedinURL = info.LinkedinURL
	}
	if !g.Touched(FieldTargetRoles) && len(info.TargetRoles) != 0 {
		g.TargetRoles = append([]string(nil), info.TargetRoles...)
	}
	if !g.Touched(FieldTargetLocations) && len(info.TargetLocations) != 0 {
		g.TargetLocations = append([]string(nil), info.TargetLocations...)
	}
	if !g.Touched(FieldSalaryGoal) && info.SuggestedSalaryRange != "" {
		g.SalaryGoal = info.SuggestedSalaryRange
	}
}

// Payload converts the goals into their wire shape. Slices are copied and
// defaulted to empty so callers can serialize without nil checks.
func (g *FinalizedGoals) Payload() upstream.GoalsPayload {
	roles := make([]string, len(g.TargetRoles))
	copy(roles, g.TargetRoles)
	locations := make([]string, len(g.TargetLocations))
	copy(locations, g.TargetLocations)

	return upstream.GoalsPayload{
		Email:           g.Email,
		LinkedinURL:     g.LinkedinURL,
		TargetRoles:     roles,
		TargetLocations: locations,
		SalaryGoal:      g.SalaryGoal,
		Notes:           g.Notes,
	}
}

func addUnique(list []string, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func removeExact(list []string, value string) []string {
	out := list[:0]
	for _, existing := range list {
		if existing != value {
			out = append(out, existing)
		}
	}
	return out
}
