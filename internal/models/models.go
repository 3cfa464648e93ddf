package models

import "strconv"

// UserID identifies a member in the user directory.
type UserID int64

func (u UserID) String() string { return strconv.FormatInt(int64(u), 10) }

// RecordID identifies a backup record. Assigned by the server and immutable.
type RecordID int64

func (r RecordID) String() string { return strconv.FormatInt(int64(r), 10) }

// User is an entry of the user directory.
type User struct {
	ID       UserID
	Name     string
	Nickname string
}

// Label renders the user the way the producer picker shows it: "name (nickname)".
func (u User) Label() string {
	if u.Nickname == "" {
		return u.Name
	}
	return u.Name + " (" + u.Nickname + ")"
}

// ActivityItem is one stored recording in the archive catalog.
type ActivityItem struct {
	ID           int64
	Storage      string
	Category     string
	Year         int
	Month        int
	ActivityName string
	Description  string
}
