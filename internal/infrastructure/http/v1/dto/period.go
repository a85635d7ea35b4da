package dto

import (
	"time"
)

// OpenPeriodRequest opens a new accounting period.
type OpenPeriodRequest struct {
	Name      string    `json:"name" binding:"required"`
	StartDate time.Time `json:"startDate" binding:"required"`
	EndDate   time.Time `json:"endDate" binding:"required"`
}
