package model

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// DecodeError reports a stored row that is missing a required field or
// carries a value the domain cannot represent.
type DecodeError struct {
	Entity string
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: field %s %s", e.Entity, e.Field, e.Reason)
}

func requireSnowflake(entity, field, value string) error {
	if value == "" {
		return &DecodeError{Entity: entity, Field: field, Reason: "is empty"}
	}
	if !ValidSnowflake(value) {
		return &DecodeError{Entity: entity, Field: field, Reason: "is not a snowflake id"}
	}
	return nil
}

// ValidSnowflake reports whether s is a platform member, guild or role id.
func ValidSnowflake(s string) bool {
	if s == "" {
		return false
	}
	id, err := snowflake.ParseString(s)
	return err == nil && id > 0
}
