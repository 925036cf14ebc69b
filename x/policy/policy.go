// Package policy decides group chat access for a resolved identity
package policy

import (
	"github.com/btfhub/groupchat/core"
)

// CanReadGroup reports whether the identity may read the group's chat.
// Admins, supervisors and staff see every group; otherwise the group's
// mentor and its listed members. Pure function of the given snapshot;
// callers re-evaluate it per request or connection event.
func CanReadGroup(identity core.Identity, group core.Group) bool {
	if !identity.IsAuthenticated {
		return false
	}

	if identity.Role == core.RoleAdmin || identity.Role == core.RoleSupervisor || identity.IsStaff {
		return true
	}

	if group.MentorID != nil && *group.MentorID == identity.UserID {
		return true
	}

	return group.IsMember(identity.UserID)
}

// CanModerateGroup reports whether the identity may change moderation
// or deletion state of messages in the group. Ordinary members cannot,
// even for their own messages.
func CanModerateGroup(identity core.Identity, group core.Group) bool {
	if !identity.IsAuthenticated {
		return false
	}

	if identity.Role == core.RoleAdmin || identity.Role == core.RoleSupervisor || identity.IsStaff {
		return true
	}

	return group.MentorID != nil && *group.MentorID == identity.UserID
}
