package store

import "time"

// Approval statuses carried by a collection item. An item only counts as part
// of a collection once both the contributing user and the collection have
// approved it.
const (
	ApprovalUnreviewed = "unreviewed"
	ApprovalApproved   = "approved"
	ApprovalRejected   = "rejected"
)

// Kinds for the polymorphic collection item reference.
const (
	ItemWork     = "work"
	ItemBookmark = "bookmark"
)

// Kinds for the polymorphic challenge reference.
const (
	ChallengeGiftExchange = "GiftExchange"
	ChallengePromptMeme   = "PromptMeme"
)

type Collection struct {
	ID             string
	Name           string
	Title          string
	Description    string
	Email          string
	HeaderImageURL string
	IconURL        string
	ParentID       string // empty for top-level collections
	ChallengeKind  string // empty when no challenge is attached
	ChallengeID    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CollectionPreference holds the per-collection boolean flags. Exactly one
// row exists per collection; it is created in the same transaction as the
// collection itself.
type CollectionPreference struct {
	CollectionID string
	Closed       bool
	Moderated    bool
	Unrevealed   bool
	Anonymous    bool
}

// CollectionProfile holds the notification text templates. Blank templates
// fall back to the parent collection's profile.
type CollectionProfile struct {
	CollectionID           string
	AssignmentNotification string
	GiftNotification       string
}

type CollectionParticipant struct {
	ID           string
	CollectionID string
	PseudID      string
	Role         string
	CreatedAt    time.Time
	// Joined fields from pseuds/users
	PseudName string
	UserID    string
	UserEmail string
}

type CollectionItem struct {
	ID                       string
	CollectionID             string
	ItemKind                 string
	ItemID                   string
	UserApprovalStatus       string
	CollectionApprovalStatus string
	Unrevealed               bool
	Anonymous                bool
	CreatedAt                time.Time
	// Joined field: title of the underlying work or bookmark
	ItemTitle string
}

// Pseud is a named authorial identity; a user may own several.
type Pseud struct {
	ID     string
	UserID string
	Name   string
}

type User struct {
	ID    string
	Login string
	Email string
}

type Work struct {
	ID      string
	PseudID string
	Title   string
	Posted  bool
}

type Bookmark struct {
	ID      string
	PseudID string
	Title   string
}

type Fandom struct {
	ID   string
	Name string
}

// ItemContact resolves an approved item to the contributor it should be
// notified through.
type ItemContact struct {
	ItemKind  string
	ItemTitle string
	PseudName string
	Email     string
}

// Challenge-scoped child records. These exist only while a challenge is
// attached and are destroyed when the collection saves without one.
type ChallengeSignup struct {
	ID           string
	CollectionID string
	PseudID      string
	CreatedAt    time.Time
}

type ChallengeAssignment struct {
	ID              string
	CollectionID    string
	OfferSignupID   string
	RequestSignupID string
	CreatedAt       time.Time
}

type PotentialMatch struct {
	ID              string
	CollectionID    string
	OfferSignupID   string
	RequestSignupID string
	CreatedAt       time.Time
}

type Prompt struct {
	ID           string
	CollectionID string
	SignupID     string
	Description  string
	CreatedAt    time.Time
}

// CollectionFilter narrows top-level collection listings. Fandom matches
// collections holding an approved work in the named fandom.
type CollectionFilter struct {
	Closed          *bool
	Moderated       *bool
	Fandom          string
	SortByItemCount bool
}
