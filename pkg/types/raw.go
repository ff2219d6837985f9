package types

import (
	"errors"
	"time"
)

// Identity is a committer identity as delivered by the upstream client.
// Login can fail when the upstream object is incomplete.
type Identity interface {
	Login() (string, error)
	String() string
}

// ErrIncompleteIdentity is returned by identities without a resolvable login.
var ErrIncompleteIdentity = errors.New("identity has no login")

// GitUser is a plain committer identity.
type GitUser struct {
	User  string `json:"login,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Login returns the account login.
func (u GitUser) Login() (string, error) {
	if u.User == "" {
		return "", ErrIncompleteIdentity
	}
	return u.User, nil
}

// String renders the identity for use when no login is available.
func (u GitUser) String() string {
	switch {
	case u.User != "":
		return u.User
	case u.Email != "":
		return u.Name + " <" + u.Email + ">"
	default:
		return u.Name
	}
}

// RawCommit is a commit record as shaped by the upstream source.
type RawCommit struct {
	SHA           string    `json:"sha"`
	Committer     Identity  `json:"-"`
	CommitterDate time.Time `json:"committer_date"`
	Message       string    `json:"message"`
}

// ReviewUser is the author of a review. A nil user marks a deleted account.
type ReviewUser struct {
	Login string `json:"login"`
}

// RawReview is a pull request review as shaped by the upstream source.
type RawReview struct {
	ID          string      `json:"id"`
	State       string      `json:"state"`
	User        *ReviewUser `json:"user"`
	SubmittedAt string      `json:"submitted_at"`
	CommitID    *string     `json:"commit_id,omitempty"`
	Body        *string     `json:"body,omitempty"`
}
