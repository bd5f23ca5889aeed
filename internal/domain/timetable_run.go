package domain

import (
	"encoding/json"
	"time"
)

type TimetableRunStatus string

const (
	TimetableRunPending   TimetableRunStatus = "pending"
	TimetableRunRunning   TimetableRunStatus = "running"
	TimetableRunCompleted TimetableRunStatus = "completed"
	TimetableRunFailed    TimetableRunStatus = "failed"
)

// OptimizerParameters 是一次排课运行的算法参数
type OptimizerParameters struct {
	PopulationSize          int     `json:"populationSize" validate:"required,min=2"`
	MaxGenerations          int     `json:"maxGenerations" validate:"required,min=1"`
	MinFitness              float64 `json:"minFitness" validate:"min=0"`
	MaxRepeat               int     `json:"maxRepeat" validate:"min=0"`
	NumberOfCrossoverPoints int     `json:"numberOfCrossoverPoints" validate:"min=1"`
	MutationSize            int     `json:"mutationSize" validate:"min=1"`
	CrossoverProbability    float64 `json:"crossoverProbability" validate:"min=0,max=100"`
	MutationProbability     float64 `json:"mutationProbability" validate:"min=0,max=100"`
	CrossoverMode           string  `json:"crossoverMode" validate:"omitempty,oneof=kpoint differential"`
	ScaleFactor             float64 `json:"scaleFactor" validate:"min=0"`
	Seed                    int64   `json:"seed"`
}

type TimetableRun struct {
	ID           int64               `json:"id"`
	Name         string              `json:"name"`
	CreatedBy    int64               `json:"createdBy"`
	NotifyEmail  string              `json:"notifyEmail"`
	Catalogue    json.RawMessage     `json:"catalogue"`
	Parameters   OptimizerParameters `json:"parameters"`
	Status       TimetableRunStatus  `json:"status"`
	BestFitness  float64             `json:"bestFitness"`
	Generations  int                 `json:"generations"`
	ErrorMessage string              `json:"errorMessage"`
	CreatedAt    time.Time           `json:"createdAt"`
	FinishedAt   *time.Time          `json:"finishedAt"`
	Version      int32               `json:"-"`
}

type TimetableReservation struct {
	ClassID   int `json:"classID"`
	Day       int `json:"day"`
	RoomID    int `json:"roomID"`
	StartTime int `json:"startTime"`
}

type TimetableResult struct {
	RunID        int64                  `json:"runID"`
	Fitness      float64                `json:"fitness"`
	Generations  int                    `json:"generations"`
	Reservations []TimetableReservation `json:"reservations"`
	Entries      []TimetableEntry       `json:"entries,omitempty"`
}

// TimetableEntry 是排课结果中便于阅读的一行，Day 和时间都从 0 开始
type TimetableEntry struct {
	ClassID   int    `json:"classID" csv:"class_id"`
	Course    string `json:"course" csv:"course"`
	Professor string `json:"professor" csv:"professor"`
	Groups    string `json:"groups" csv:"groups"`
	Room      string `json:"room" csv:"room"`
	Day       int    `json:"day" csv:"day"`
	StartTime int    `json:"startTime" csv:"start_time"`
	EndTime   int    `json:"endTime" csv:"end_time"`
}

type TimetableProgress struct {
	RunID      int64     `json:"runID"`
	Fitness    float64   `json:"fitness"`
	Generation int       `json:"generation"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TimetableJob 是投递到 timetable_queue 中的消息
type TimetableJob struct {
	RunID int64 `json:"runID"`
}

// Merge 用 override 中非零的字段覆盖 p，未提交的参数沿用 p 中的值
func (p OptimizerParameters) Merge(override OptimizerParameters) OptimizerParameters {
	if override.PopulationSize != 0 {
		p.PopulationSize = override.PopulationSize
	}
	if override.MaxGenerations != 0 {
		p.MaxGenerations = override.MaxGenerations
	}
	if override.MinFitness != 0 {
		p.MinFitness = override.MinFitness
	}
	if override.MaxRepeat != 0 {
		p.MaxRepeat = override.MaxRepeat
	}
	if override.NumberOfCrossoverPoints != 0 {
		p.NumberOfCrossoverPoints = override.NumberOfCrossoverPoints
	}
	if override.MutationSize != 0 {
		p.MutationSize = override.MutationSize
	}
	if override.CrossoverProbability != 0 {
		p.CrossoverProbability = override.CrossoverProbability
	}
	if override.MutationProbability != 0 {
		p.MutationProbability = override.MutationProbability
	}
	if override.CrossoverMode != "" {
		p.CrossoverMode = override.CrossoverMode
	}
	if override.ScaleFactor != 0 {
		p.ScaleFactor = override.ScaleFactor
	}
	if override.Seed != 0 {
		p.Seed = override.Seed
	}
	return p
}
