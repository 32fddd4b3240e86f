package models

import (
	"github.com/google/uuid"
)

// NewExecutionID generates the id attached to one controller invocation.
func NewExecutionID() string {
	return uuid.New().String()
}
