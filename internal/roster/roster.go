// Package roster holds the membership rules shared by every storage backend.
// Callers run these checks inside whatever unit makes the subsequent write
// atomic (a row lock, a mutex).
package roster

import (
	"errors"

	"joinus/partyboard/internal/model"
)

var (
	ErrClosed        = errors.New("recruitment is not open")
	ErrAlreadyJoined = errors.New("member already joined")
	ErrFull          = errors.New("recruitment is full")
)

// CheckJoin reports whether memberID may be added to rec given its current
// members.
func CheckJoin(rec *model.Recruitment, members []string, memberID string) error {
	if !rec.IsOpen() {
		return ErrClosed
	}
	for _, m := range members {
		if m == memberID {
			return ErrAlreadyJoined
		}
	}
	if len(members) >= rec.MaxParticipants {
		return ErrFull
	}
	return nil
}

func CheckLeave(rec *model.Recruitment) error {
	if !rec.IsOpen() {
		return ErrClosed
	}
	return nil
}

// InitialMembers returns creator, co-members and voice members as an ordered
// set. Empty ids are dropped.
func InitialMembers(creatorID string, coMembers, voiceMembers []string) []string {
	seen := make(map[string]struct{}, 1+len(coMembers)+len(voiceMembers))
	out := make([]string, 0, 1+len(coMembers)+len(voiceMembers))
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	add(creatorID)
	for _, id := range coMembers {
		add(id)
	}
	for _, id := range voiceMembers {
		add(id)
	}
	return out
}

// Capacity is the maximum participant count for a recruitment seeded with
// initial members that still needs additional slots.
func Capacity(initial []string, additional int) int {
	return len(initial) + additional
}
