package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"careergate/internal/upstream"
)

func TestTargetRoleSetSemantics(t *testing.T) {
	var goals FinalizedGoals

	goals.AddTargetRole("Senior Engineer")
	goals.AddTargetRole("Staff Engineer")
	assert.Equal(t, []string{"Senior Engineer", "Staff Engineer"}, goals.TargetRoles)

	t.Run("duplicate add is a no-op", func(t *testing.T) {
		goals.AddTargetRole("Senior Engineer")
		assert.Equal(t, []string{"Senior Engineer", "Staff Engineer"}, goals.TargetRoles)
	})

	t.Run("blank add is a no-op", func(t *testing.T) {
		goals.AddTargetRole("   ")
		goals.AddTargetRole("")
		assert.Equal(t, []string{"Senior Engineer", "Staff Engineer"}, goals.TargetRoles)
	})

	t.Run("remove filters exact matches only", func(t *testing.T) {
		goals.RemoveTargetRole("Senior Engineer")
		assert.Equal(t, []string{"Staff Engineer"}, goals.TargetRoles)

		goals.RemoveTargetRole("senior engineer")
		assert.Equal(t, []string{"Staff Engineer"}, goals.TargetRoles)
	})

	t.Run("remove of absent value is a no-op", func(t *testing.T) {
		goals.RemoveTargetRole("Principal Engineer")
		assert.Equal(t, []string{"Staff Engineer"}, goals.TargetRoles)
	})
}

func TestTargetLocationSetSemantics(t *testing.T) {
	var goals FinalizedGoals

	goals.AddTargetLocation("Berlin")
	goals.AddTargetLocation("Remote")
	goals.AddTargetLocation("Berlin")
	assert.Equal(t, []string{"Berlin", "Remote"}, goals.TargetLocations)

	goals.RemoveTargetLocation("Berlin")
	assert.Equal(t, []string{"Remote"}, goals.TargetLocations)
}

func TestSeedFillsOnlyUntouchedFields(t *testing.T) {
	var goals FinalizedGoals
	goals.SetEmail("edited@example.com")
	goals.AddTargetRole("Engineering Manager")

	goals.SeedFromClientInfo(upstream.ClientInfo{
		Email:                "seeded@example.com",
		LinkedinURL:          "https://linkedin.com/in/jordan",
		TargetRoles:          []string{"Senior Engineer"},
		TargetLocations:      []string{"Berlin"},
		SuggestedSalaryRange: "120k-150k",
	})

	assert.Equal(t, "edited@example.com", goals.Email, "user edit survives the seed")
	assert.Equal(t, []string{"Engineering Manager"}, goals.TargetRoles, "edited role list survives the seed")
	assert.Equal(t, "https://linkedin.com/in/jordan", goals.LinkedinURL)
	assert.Equal(t, []string{"Berlin"}, goals.TargetLocations)
	assert.Equal(t, "120k-150k", goals.SalaryGoal)
}

func TestSeedDoesNotMarkFieldsTouched(t *testing.T) {
	var goals FinalizedGoals
	goals.SeedFromClientInfo(upstream.ClientInfo{SuggestedSalaryRange: "100k"})
	assert.Equal(t, "100k", goals.SalaryGoal)
	assert.False(t, goals.Touched(FieldSalaryGoal))

	// A later regeneration may still revise seeded values.
	goals.SeedFromClientInfo(upstream.ClientInfo{SuggestedSalaryRange: "110k"})
	assert.Equal(t, "110k", goals.SalaryGoal)
}

func TestSeedSkipsEmptyServerValues(t *testing.T) {
	var goals FinalizedGoals
	goals.SeedFromClientInfo(upstream.ClientInfo{Email: "seeded@example.com"})
	goals.SeedFromClientInfo(upstream.ClientInfo{})
	assert.Equal(t, "seeded@example.com", goals.Email, "empty seed value must not erase an earlier one")
}

func TestPayloadCopiesSlices(t *testing.T) {
	var goals FinalizedGoals
	goals.AddTargetRole("Senior Engineer")

	payload := goals.Payload()
	payload.TargetRoles[0] = "mutated"
	assert.Equal(t, []string{"Senior Engineer"}, goals.TargetRoles)

	empty := FinalizedGoals{}
	assert.NotNil(t, empty.Payload().TargetRoles)
	assert.NotNil(t, empty.Payload().TargetLocations)
}
