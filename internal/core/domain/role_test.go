package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
		ok    bool
	}{
		{"customer", RoleCustomer, true},
		{"crew", RoleCrew, true},
		{"admin", RoleAdmin, true},
		{"guest", RoleGuest, false},
		{"Admin", RoleGuest, false},
		{"", RoleGuest, false},
		{"superuser", RoleGuest, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseRole(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_DefaultTopics(t *testing.T) {
	assert.Equal(t, []Topic{TopicOrders, TopicUpdates}, RoleCrew.DefaultTopics())
	assert.Equal(t, []Topic{TopicOrders, TopicUpdates, TopicSystem}, RoleAdmin.DefaultTopics())
	assert.Equal(t, []Topic{TopicUpdates}, RoleCustomer.DefaultTopics())
	assert.Nil(t, RoleGuest.DefaultTopics())
}

func TestRole_CanUpdateOrders(t *testing.T) {
	assert.True(t, RoleCrew.CanUpdateOrders())
	assert.True(t, RoleAdmin.CanUpdateOrders())
	assert.False(t, RoleCustomer.CanUpdateOrders())
	assert.False(t, RoleGuest.CanUpdateOrders())
}

func TestFilterValidTopics(t *testing.T) {
	t.Run("keeps request order and drops unknowns", func(t *testing.T) {
		got := FilterValidTopics([]string{"system", "gossip", "orders"})
		assert.Equal(t, []Topic{TopicSystem, TopicOrders}, got)
	})

	t.Run("empty when nothing is valid", func(t *testing.T) {
		assert.Empty(t, FilterValidTopics([]string{"gossip", ""}))
		assert.Empty(t, FilterValidTopics(nil))
	})
}
