package repository

import (
	"database/sql"
	"errors"
)

// OwnerKind tells which side of the user/group split owns a record.
type OwnerKind int

const (
	OwnerUser OwnerKind = iota + 1
	OwnerGroup
)

// Owner is exactly one user or one group. The zero value owns nothing and is
// rejected by every repo write.
type Owner struct {
	kind OwnerKind
	id   string
}

func UserOwner(id string) Owner  { return Owner{kind: OwnerUser, id: id} }
func GroupOwner(id string) Owner { return Owner{kind: OwnerGroup, id: id} }

func (o Owner) Kind() OwnerKind { return o.kind }
func (o Owner) ID() string      { return o.id }
func (o Owner) IsZero() bool    { return o.kind == 0 || o.id == "" }
func (o Owner) IsGroup() bool   { return o.kind == OwnerGroup }

func (o Owner) String() string {
	switch o.kind {
	case OwnerUser:
		return "user:" + o.id
	case OwnerGroup:
		return "group:" + o.id
	}
	return "none"
}

var errNoOwner = errors.New("record has no owner")

// columns splits the owner into the user_id/group_id pair stored on disk.
func (o Owner) columns() (userID, groupID sql.NullString) {
	switch o.kind {
	case OwnerUser:
		userID = sql.NullString{String: o.id, Valid: true}
	case OwnerGroup:
		groupID = sql.NullString{String: o.id, Valid: true}
	}
	return
}

// ownerWhere returns the filter clause and argument for owner scoped queries.
func ownerWhere(o Owner) (string, string) {
	if o.kind == OwnerGroup {
		return "group_id = ?", o.id
	}
	return "user_id = ?", o.id
}

func ownerFromColumns(userID, groupID sql.NullString) (Owner, error) {
	switch {
	case userID.Valid && !groupID.Valid:
		return UserOwner(userID.String), nil
	case groupID.Valid && !userID.Valid:
		return GroupOwner(groupID.String), nil
	}
	return Owner{}, errNoOwner
}
