// Package models defines health score structures for Autonoma.
package models

// Trend indicates the direction of a health factor.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// HealthFactor is one named contributor to a project's health score.
type HealthFactor struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Trend Trend  `json:"trend"`
}

// HealthScore is the derived 0-100 composite health of a project. It is
// recomputed on every read and never stored authoritatively.
type HealthScore struct {
	Overall     int            `json:"overall"`
	Timeline    int            `json:"timeline"`
	Resource    int            `json:"resource"`
	Quality     int            `json:"quality"`
	Stakeholder int            `json:"stakeholder"`
	Risk        int            `json:"risk"`
	Factors     []HealthFactor `json:"factors"`
}
