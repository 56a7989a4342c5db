package activity

import (
	"time"

	"github.com/google/uuid"
)

// Kind names the content families that carry ownership. Each kind lives in
// its own table; the merge engine re-points them independently.
type Kind string

const (
	KindPost     Kind = "post"
	KindComment  Kind = "comment"
	KindReaction Kind = "reaction"
	KindMessage  Kind = "message"
	KindLogEntry Kind = "log_entry"
)

// AllKinds is the fixed re-pointing order of the merge transaction. Order
// does not affect the outcome; having one keeps audit payloads stable.
var AllKinds = []Kind{KindPost, KindComment, KindReaction, KindMessage, KindLogEntry}

// AuthorType discriminates which owner reference is live on a record.
type AuthorType string

const (
	AuthorAnonymous  AuthorType = "anonymous"
	AuthorRegistered AuthorType = "registered"
)

// Record is one piece of owned content. Exactly one of AnonymousID and
// UserID is set at a time, matching AuthorType.
type Record struct {
	ID          uuid.UUID
	Kind        Kind
	AuthorType  AuthorType
	AnonymousID *uuid.UUID
	UserID      *uuid.UUID
	Body        string
	CreatedAt   time.Time
}

// NewAnonymousRecord builds a record owned by an anonymous identity.
func NewAnonymousRecord(kind Kind, anonID uuid.UUID, body string, at time.Time) *Record {
	id := anonID
	return &Record{
		ID:          uuid.New(),
		Kind:        kind,
		AuthorType:  AuthorAnonymous,
		AnonymousID: &id,
		Body:        body,
		CreatedAt:   at,
	}
}

// NewRegisteredRecord builds a record owned by a registered account.
func NewRegisteredRecord(kind Kind, userID uuid.UUID, body string, at time.Time) *Record {
	id := userID
	return &Record{
		ID:         uuid.New(),
		Kind:       kind,
		AuthorType: AuthorRegistered,
		UserID:     &id,
		Body:       body,
		CreatedAt:  at,
	}
}

// ValidKind reports whether the kind names a known content family.
func ValidKind(kind Kind) bool {
	for _, k := range AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}
