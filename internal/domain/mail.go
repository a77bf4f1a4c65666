package domain

import "time"

const (
	NotificationPlanPublished = "plan_published"
	NotificationCrewAssigned  = "crew_assigned"
)

type NotificationMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type PlanPublishedMailData struct {
	FullName   string `json:"fullName"`
	PlanDate   string `json:"planDate"`
	EventCount int    `json:"eventCount"`
	JobCount   int    `json:"jobCount"`
}

type CrewAssignedMailData struct {
	FullName       string     `json:"fullName"`
	JobNumber      string     `json:"jobNumber"`
	JobTitle       string     `json:"jobTitle"`
	ScheduledStart *time.Time `json:"scheduledStart"`
}
