package model

import "time"

type Stage string

const (
	StageContactSync Stage = "contact_sync"
	StageLookup      Stage = "lookup"
	StageSend        Stage = "send"
	StageWriteBack   Stage = "write_back"
)

type ContactReport struct {
	Rows     int `json:"rows"`
	Accepted int `json:"accepted"`
	Marked   int `json:"marked"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

type TableReport struct {
	Table          string `json:"table"`
	Rows           int    `json:"rows"`
	AlreadySent    int    `json:"alreadySent"`
	Sent           int    `json:"sent"`
	ContactMissing int    `json:"contactMissing"`
	Failed         int    `json:"failed"`
}

type RunReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Contacts   ContactReport `json:"contacts"`
	Tables     []TableReport `json:"tables"`
	Error      string        `json:"error,omitempty"`
}

func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
