package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/btfhub/groupchat/core"
)

func ptr(v uint) *uint {
	return &v
}

func testGroup() core.Group {
	return core.Group{
		ID:       "BTF010",
		MentorID: ptr(10),
		Members: []core.GroupMember{
			{GroupID: "BTF010", UserID: 20, Role: "leader"},
			{GroupID: "BTF010", UserID: 21, Role: "member"},
		},
	}
}

func TestCanReadGroup(t *testing.T) {
	group := testGroup()

	anonymous := core.Anonymous()
	assert.False(t, CanReadGroup(anonymous, group))

	member := core.Identity{UserID: 20, Role: core.RoleStudent, IsAuthenticated: true}
	assert.True(t, CanReadGroup(member, group))

	mentor := core.Identity{UserID: 10, Role: core.RoleMentor, IsAuthenticated: true}
	assert.True(t, CanReadGroup(mentor, group))

	admin := core.Identity{UserID: 99, Role: core.RoleAdmin, IsAuthenticated: true}
	assert.True(t, CanReadGroup(admin, group))

	supervisor := core.Identity{UserID: 98, Role: core.RoleSupervisor, IsAuthenticated: true}
	assert.True(t, CanReadGroup(supervisor, group))

	staff := core.Identity{UserID: 97, Role: core.RoleStudent, IsStaff: true, IsAuthenticated: true}
	assert.True(t, CanReadGroup(staff, group))

	outsider := core.Identity{UserID: 50, Role: core.RoleStudent, IsAuthenticated: true}
	assert.False(t, CanReadGroup(outsider, group))

	otherMentor := core.Identity{UserID: 11, Role: core.RoleMentor, IsAuthenticated: true}
	assert.False(t, CanReadGroup(otherMentor, group))
}

func TestCanModerateGroup(t *testing.T) {
	group := testGroup()

	assert.False(t, CanModerateGroup(core.Anonymous(), group))

	member := core.Identity{UserID: 20, Role: core.RoleStudent, IsAuthenticated: true}
	assert.False(t, CanModerateGroup(member, group))

	mentor := core.Identity{UserID: 10, Role: core.RoleMentor, IsAuthenticated: true}
	assert.True(t, CanModerateGroup(mentor, group))

	admin := core.Identity{UserID: 99, Role: core.RoleAdmin, IsAuthenticated: true}
	assert.True(t, CanModerateGroup(admin, group))

	staff := core.Identity{UserID: 97, Role: core.RoleStudent, IsStaff: true, IsAuthenticated: true}
	assert.True(t, CanModerateGroup(staff, group))
}

func TestCanModerateGroupWithoutMentor(t *testing.T) {
	group := testGroup()
	group.MentorID = nil

	mentor := core.Identity{UserID: 10, Role: core.RoleMentor, IsAuthenticated: true}
	assert.False(t, CanModerateGroup(mentor, group))
}
