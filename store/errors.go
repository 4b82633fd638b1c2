package store

import "errors"

// Kind classifies a store failure for translation at the API boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a domain failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// Is matches the same sentinel, or any error of the same kind when the
// target is a bare class sentinel such as ErrNotFound.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" {
		return t.Kind == e.Kind
	}
	return t == e
}

var (
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrConflict = &Error{Kind: KindConflict}

	ErrUserNotFound = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrPostNotFound = &Error{Kind: KindNotFound, Message: "Post not found"}

	ErrAlreadyFollowing = &Error{Kind: KindConflict, Message: "Already following this user"}
	ErrNotFollowing     = &Error{Kind: KindConflict, Message: "Not following this user"}
	ErrCannotFollowSelf = &Error{Kind: KindConflict, Message: "Cannot follow yourself"}
	ErrAlreadyLiked     = &Error{Kind: KindConflict, Message: "Post already liked"}
	ErrNotLiked         = &Error{Kind: KindConflict, Message: "Post not yet liked"}
	ErrEmailTaken       = &Error{Kind: KindConflict, Message: "Email already in use"}
	ErrRequestKeyReused = &Error{Kind: KindConflict, Message: "Idempotency key already used for another post"}
)

// KindOf returns the kind of err; anything that is not a *Error is internal.
func KindOf(err error) Kind {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	return KindInternal
}
