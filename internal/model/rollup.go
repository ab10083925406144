package model

import "time"

// BusinessDayConfig controls how a tenant's timestamps are bucketed into
// business days.  A day starts at ResetHour:ResetMinute local time in
// Timezone.
type BusinessDayConfig struct {
    ResetHour   int    `json:"reset_hour"`
    ResetMinute int    `json:"reset_minute"`
    Timezone    string `json:"timezone"`
}

// TenantSettings is the raw per-business configuration as stored.  Nil
// reset fields mean "not configured" and are defaulted by the resolver.
type TenantSettings struct {
    BusinessID  uint64
    Timezone    string
    ResetHour   *int
    ResetMinute *int
}

// ClassificationCounts is the per-bucket breakdown of a rollup.
type ClassificationCounts struct {
    Completed int `json:"completed"`
    Overflow  int `json:"overflow"`
    Partial   int `json:"partial"`
    NoShow    int `json:"noShow"`
    Cancelled int `json:"cancelled"`
}

// Add increments the counter for c.
func (cc *ClassificationCounts) Add(c Classification) {
    switch c {
    case ClassCompleted:
        cc.Completed++
    case ClassOverflow:
        cc.Overflow++
    case ClassPartial:
        cc.Partial++
    case ClassNoShow:
        cc.NoShow++
    case ClassCancelled:
        cc.Cancelled++
    }
}

// DailyRollup aggregates the reservations of one business day.  It is
// derived data and can always be rebuilt from reservations and
// attendance records.
type DailyRollup struct {
    Label             string               `json:"label"`
    Weekday           string               `json:"weekday"`
    RangeStart        time.Time            `json:"rangeStart"`
    RangeEnd          time.Time            `json:"rangeEnd"`
    TotalReservations int                  `json:"totalReservations"`
    TotalExpected     int                  `json:"totalExpected"`
    TotalActual       int                  `json:"totalActual"`
    ByClassification  ClassificationCounts `json:"byClassification"`
}
