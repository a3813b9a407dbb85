package models

import "time"

// User is the internal identity behind an external bearer-token subject.
// Created on first authenticated request, never destroyed.
type User struct {
	ID                string     `json:"id"`
	ExternalSubject   string     `json:"externalSubject"`
	Email             string     `json:"email,omitempty"`
	AnnualLimit       int        `json:"annualLimit"`
	AnnualUsageCount  int        `json:"annualUsageCount"`
	AnnualPeriodStart *time.Time `json:"annualPeriodStart,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Usage is the quota snapshot returned by GET /usage
type Usage struct {
	AnnualLimit       int        `json:"annual_limit"`
	AnnualUsageCount  int        `json:"annual_usage_count"`
	AnnualPeriodStart *time.Time `json:"annual_period_start"`
	Remaining         int        `json:"remaining"`
}
