package service

import (
	"errors"
	"fmt"

	"joinus/partyboard/internal/roster"
)

var (
	ErrInvalidDeadline     = errors.New("invalid or past deadline")
	ErrInvalidCapacity     = errors.New("invalid capacity")
	ErrInvalidInput        = errors.New("invalid input")
	ErrAlreadyJoined       = roster.ErrAlreadyJoined
	ErrFull                = roster.ErrFull
	ErrRecruitmentClosed   = roster.ErrClosed
	ErrDeadlinePassed      = errors.New("recruitment deadline has passed")
	ErrNotFound            = errors.New("no open recruitment found")
	ErrRecruitmentNotFound = errors.New("recruitment not found")
	ErrAlreadyOpen         = errors.New("an open recruitment already exists")
	ErrNotCreator          = errors.New("only the creator can change this recruitment")
	ErrPersistence         = errors.New("persistence failure")

	ErrLinkNotConfigured = errors.New("riot account linking not configured")
	ErrLinkStateInvalid  = errors.New("invalid or expired link state")
	ErrLinkExchange      = errors.New("failed to exchange riot authorization code")
	ErrAccountNotLinked  = errors.New("riot account not linked")
	ErrMemberNotFound    = errors.New("member not found in guild")
)

// PersistenceError wraps a storage failure with the operation that hit it.
// It matches ErrPersistence under errors.Is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistenceErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindPersistence
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// KindOf classifies err for callers that map outcomes to transport codes.
// Not-found outcomes are conflicts in the lifecycle taxonomy; KindNotFound
// only separates them for transports that care.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrInvalidDeadline),
		errors.Is(err, ErrInvalidCapacity),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrLinkStateInvalid):
		return KindValidation
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrRecruitmentNotFound),
		errors.Is(err, ErrAccountNotLinked),
		errors.Is(err, ErrMemberNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyJoined),
		errors.Is(err, ErrFull),
		errors.Is(err, ErrRecruitmentClosed),
		errors.Is(err, ErrDeadlinePassed),
		errors.Is(err, ErrAlreadyOpen),
		errors.Is(err, ErrNotCreator):
		return KindConflict
	case errors.Is(err, ErrLinkExchange),
		errors.Is(err, ErrLinkNotConfigured):
		return KindExternal
	default:
		return KindUnknown
	}
}

var messages = []struct {
	err error
	msg string
}{
	{ErrInvalidDeadline, "The deadline format is invalid or the time has already passed."},
	{ErrInvalidCapacity, "The number of participants must be at least 1."},
	{ErrInvalidInput, "Some of the values are invalid."},
	{ErrAlreadyJoined, "You have already joined."},
	{ErrFull, "This recruitment is already full."},
	{ErrRecruitmentClosed, "This recruitment has been cancelled."},
	{ErrDeadlinePassed, "The deadline for this recruitment has passed."},
	{ErrNotFound, "You have no open recruitment."},
	{ErrRecruitmentNotFound, "The recruitment could not be found."},
	{ErrAlreadyOpen, "You already have an open recruitment. Cancel it before starting a new one."},
	{ErrNotCreator, "Only the creator can change this recruitment."},
	{ErrPersistence, "A database error occurred. Please try again later."},
	{ErrLinkNotConfigured, "Riot account linking is not available."},
	{ErrLinkStateInvalid, "This link request is invalid or has expired. Please start again."},
	{ErrLinkExchange, "Could not complete sign-in with Riot. Please try again."},
	{ErrAccountNotLinked, "No Riot account is linked."},
	{ErrMemberNotFound, "The member is not in this server."},
}

// MessageFor returns a display message for a lifecycle outcome.
func MessageFor(err error) string {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Something went wrong. Please try again later."
}

const (
	msgCreated   = "Recruitment created."
	msgJoined    = "You joined the recruitment."
	msgLeft      = "You left the recruitment."
	msgNotJoined = "You were not in this recruitment."
	msgCancelled = "Recruitment cancelled."
	msgEdited    = "Recruitment updated."
	msgAttached  = "Recruitment message attached."
	msgLinked    = "Your Riot account has been linked."
)
