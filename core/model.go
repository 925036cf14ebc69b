// Package core is the shared foundation of the group chat service
package core

import (
	"time"
)

// Role is the platform-wide role of a user
type Role string

const (
	RoleStudent    Role = "student"
	RoleMentor     Role = "mentor"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Identity is the resolved caller of a request or connection.
// It replaces ad-hoc attribute checks on loosely typed user objects.
type Identity struct {
	UserID          uint
	Role            Role
	IsStaff         bool
	IsAuthenticated bool
}

// Anonymous returns the identity used when no valid token is presented
func Anonymous() Identity {
	return Identity{}
}

// User is a platform account. Owned by the platform's user service;
// the chat core only reads it for authorization and author display.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Email     string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	FirstName string    `json:"firstName" gorm:"type:varchar(150)"`
	LastName  string    `json:"lastName" gorm:"type:varchar(150)"`
	Role      Role      `json:"role" gorm:"type:varchar(20);default:student"`
	IsStaff   bool      `json:"isStaff" gorm:"type:boolean;default:false"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;autoCreateTime;column:cdate"`
}

// DisplayName is the full name if available, else the email
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// Group is a team of members plus an optional mentor.
// The chat core references it for authorization only.
type Group struct {
	ID       string        `json:"id" gorm:"primaryKey;type:varchar(50)"`
	Name     string        `json:"name" gorm:"type:varchar(255)"`
	Track    string        `json:"track" gorm:"type:varchar(50)"`
	Status   string        `json:"status" gorm:"type:varchar(50);default:active"`
	MentorID *uint         `json:"mentorId"`
	Mentor   *User         `json:"mentor,omitempty"`
	Members  []GroupMember `json:"members,omitempty"`
	CDate    time.Time     `json:"cdate" gorm:"->;<-:create;autoCreateTime;column:cdate"`
}

// GroupMember is a role-tagged association between a user and a group
type GroupMember struct {
	ID      uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	GroupID string    `json:"groupId" gorm:"type:varchar(50);uniqueIndex:uniq_group_member;not null"`
	UserID  uint      `json:"userId" gorm:"uniqueIndex:uniq_group_member;not null"`
	User    *User     `json:"user,omitempty"`
	Role    string    `json:"role" gorm:"type:varchar(20)"`
	CDate   time.Time `json:"cdate" gorm:"->;<-:create;autoCreateTime;column:cdate"`
}

// IsMember reports whether the user is a listed member of the group
func (g Group) IsMember(userID uint) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// ModerationStatus classifies a message independently of soft-delete
type ModerationStatus string

const (
	ModerationApproved ModerationStatus = "approved"
	ModerationPending  ModerationStatus = "pending"
	ModerationRejected ModerationStatus = "rejected"
)

// ValidModerationStatus reports whether s is a known status value
func ValidModerationStatus(s ModerationStatus) bool {
	switch s {
	case ModerationApproved, ModerationPending, ModerationRejected:
		return true
	}
	return false
}

// Message is a chat message inside a group conversation.
// group and author are immutable after creation; rows are never
// physically deleted by the chat core.
type Message struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	GroupID  string `json:"groupId" gorm:"->;<-:create;type:varchar(50);index;not null"`
	AuthorID uint   `json:"authorId" gorm:"->;<-:create;not null"`
	Author   User   `json:"author"`
	Text     string `json:"text" gorm:"type:text"`

	CDate time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp();column:cdate;index"`

	IsDeleted   bool       `json:"isDeleted" gorm:"type:boolean;default:false"`
	DeletedAt   *time.Time `json:"deletedAt" gorm:"type:timestamp with time zone"`
	DeletedByID *uint      `json:"deletedBy"`
	DeletedBy   *User      `json:"-"`

	ModerationStatus ModerationStatus `json:"moderationStatus" gorm:"type:varchar(20);default:approved"`
	ModerationNote   string           `json:"moderationNote" gorm:"type:text"`
	ModeratedAt      *time.Time       `json:"moderatedAt" gorm:"type:timestamp with time zone"`
	ModeratedByID    *uint            `json:"moderatedBy"`
	ModeratedBy      *User            `json:"-"`

	Attachments []MessageAttachment `json:"attachments"`
}

// Hidden reports whether the message content is withheld from
// ordinary viewers. Soft-delete and rejection are independent flags;
// either alone hides the content.
func (m Message) Hidden() bool {
	return m.IsDeleted || m.ModerationStatus == ModerationRejected
}

// MessageAttachment stores metadata for a file attached to a message
type MessageAttachment struct {
	ID        uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID uint   `json:"messageId" gorm:"index;not null"`
	FileURL   string `json:"file_url" gorm:"type:text;not null"`
	Filename  string `json:"filename" gorm:"type:varchar(255);not null"`
	FileSize  int64  `json:"file_size" gorm:"not null;default:0"`
	MimeType  string `json:"mime_type" gorm:"type:varchar(100);default:application/octet-stream"`
}
