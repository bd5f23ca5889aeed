package domain

const (
	TimetableQueue = "timetable_queue"
	EmailQueue     = "email_queue"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type TimetableCompletedMailData struct {
	RunID       int64   `json:"runID"`
	Name        string  `json:"name"`
	Fitness     float64 `json:"fitness"`
	Generations int     `json:"generations"`
}

type TimetableFailedMailData struct {
	RunID  int64  `json:"runID"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}
