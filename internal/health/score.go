// Package health computes the derived project health score.
//
// Scoring is a pure aggregation over live task, escalation, and update
// statistics. It is deterministic for a fixed evaluation time, total (every
// division is guarded), and never stored authoritatively: callers recompute
// on read.
package health

import (
	"math"
	"time"

	"github.com/autonoma/autonoma/internal/models"
)

// Weights of the four sub-scores in the overall composite.
const (
	timelineWeight = 0.3
	resourceWeight = 0.2
	qualityWeight  = 0.25
	riskWeight     = 0.25
)

// StakeholderPlaceholder is reported for the stakeholder sub-score until
// real stakeholder feedback data exists.
const StakeholderPlaceholder = 75

// Snapshot is the live project state the score is computed from.
type Snapshot struct {
	Tasks           []models.Task
	Milestones      []models.Milestone
	Escalations     []models.Escalation
	UpdatesThisWeek int
}

// Compute derives the health score from the snapshot, evaluated at the
// current time.
func Compute(p Snapshot) models.HealthScore {
	return ComputeAt(p, time.Now())
}

// ComputeAt derives the health score from the snapshot, with task overdue
// checks evaluated against now.
func ComputeAt(p Snapshot, now time.Time) models.HealthScore {
	var overdueTasks, completedTasks, blockedTasks int
	for _, t := range p.Tasks {
		if t.DueDate != nil && t.DueDate.Before(now) && t.Status != models.TaskStatusCompleted {
			overdueTasks++
		}
		switch t.Status {
		case models.TaskStatusCompleted:
			completedTasks++
		case models.TaskStatusBlocked:
			blockedTasks++
		}
	}

	// Guarded denominator: an empty task list scores as a single on-track task.
	totalTasks := len(p.Tasks)
	denom := totalTasks
	if denom == 0 {
		denom = 1
	}

	timelineScore := math.Max(0, 100-(float64(overdueTasks)/float64(denom))*100)

	resourceScore := math.Min(100, float64(p.UpdatesThisWeek)*20)

	// With no tasks at all, quality is the bare +50 offset.
	qualityScore := 50.0
	if totalTasks > 0 {
		qualityScore = (float64(completedTasks-blockedTasks)/float64(denom))*100 + 50
	}
	qualityScore = math.Min(100, math.Max(0, qualityScore))

	var openEscalations, criticalEscalations int
	for _, e := range p.Escalations {
		if e.Status != models.EscalationStatusOpen {
			continue
		}
		openEscalations++
		if e.Severity == models.SeverityCritical {
			criticalEscalations++
		}
	}
	// An open critical escalation is counted in both terms and subtracts 30.
	riskScore := math.Max(0, 100-float64(openEscalations)*10-float64(criticalEscalations)*20)

	overall := int(math.Round(timelineWeight*timelineScore + resourceWeight*resourceScore + qualityWeight*qualityScore + riskWeight*riskScore))
	if overall < 0 {
		overall = 0
	} else if overall > 100 {
		overall = 100
	}

	timelineTrend := models.TrendStable
	if overdueTasks > 0 {
		timelineTrend = models.TrendDown
	}
	riskTrend := models.TrendStable
	if openEscalations > 0 {
		riskTrend = models.TrendDown
	}

	timeline := int(math.Round(timelineScore))
	resource := int(math.Round(resourceScore))
	quality := int(math.Round(qualityScore))
	risk := int(math.Round(riskScore))

	return models.HealthScore{
		Overall:     overall,
		Timeline:    timeline,
		Resource:    resource,
		Quality:     quality,
		Stakeholder: StakeholderPlaceholder,
		Risk:        risk,
		Factors: []models.HealthFactor{
			{Name: "Timeline", Score: timeline, Trend: timelineTrend},
			{Name: "Resources", Score: resource, Trend: models.TrendStable},
			{Name: "Quality", Score: quality, Trend: models.TrendStable},
			{Name: "Risk", Score: risk, Trend: riskTrend},
		},
	}
}
