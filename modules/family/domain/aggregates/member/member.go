package member

import (
	"strings"
	"time"
)

type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

// Profile holds the optional columns edited outside the importer.
type Profile struct {
	Gender    Gender
	BirthYear *int
	DeathYear *int
	IsAlive   bool
	ImageURL  string
	Email     string
	Phone     string
}

// Member is one node of the family tree.
type Member struct {
	id         int64
	fullName   string
	branchName string
	parentID   *int64
	profile    Profile
	createdAt  time.Time
}

func New(fullName, branchName string) Member {
	return Member{
		fullName:   strings.TrimSpace(fullName),
		branchName: strings.TrimSpace(branchName),
		profile:    Profile{IsAlive: true},
	}
}

func Hydrate(
	id int64,
	fullName string,
	branchName string,
	parentID *int64,
	profile Profile,
	createdAt time.Time,
) Member {
	return Member{
		id:         id,
		fullName:   strings.TrimSpace(fullName),
		branchName: strings.TrimSpace(branchName),
		parentID:   parentID,
		profile:    profile,
		createdAt:  createdAt,
	}
}

func (m Member) ID() int64            { return m.id }
func (m Member) FullName() string     { return m.fullName }
func (m Member) BranchName() string   { return m.branchName }
func (m Member) Profile() Profile     { return m.profile }
func (m Member) CreatedAt() time.Time { return m.createdAt }
func (m Member) IsZero() bool         { return m.id == 0 && m.fullName == "" }

// ParentID returns the parent's id and whether it is set.
func (m Member) ParentID() (int64, bool) {
	if m.parentID == nil {
		return 0, false
	}
	return *m.parentID, true
}

func (m Member) WithID(id int64) Member {
	m.id = id
	return m
}

func (m Member) WithParent(parentID int64) Member {
	m.parentID = &parentID
	return m
}
