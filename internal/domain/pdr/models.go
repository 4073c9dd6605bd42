package pdr

import "time"

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

type CompanyValue struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SortOrder   int    `json:"sortOrder"`
}

type Goal struct {
	ID               string    `json:"id"`
	PDRID            string    `json:"pdrId"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	TargetOutcome    string    `json:"targetOutcome"`
	SuccessCriteria  string    `json:"successCriteria"`
	Priority         Priority  `json:"priority"`
	SortOrder        int       `json:"sortOrder"`
	EmployeeProgress string    `json:"employeeProgress"`
	EmployeeRating   *int      `json:"employeeRating,omitempty"`
	CEORating        *int      `json:"ceoRating,omitempty"`
	CEOComments      string    `json:"ceoComments,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ReviewedByCEO reports whether the CEO has rated or commented on the goal.
func (g Goal) ReviewedByCEO() bool {
	return g.CEORating != nil || g.CEOComments != ""
}

type Behavior struct {
	ID                    string    `json:"id"`
	PDRID                 string    `json:"pdrId"`
	CompanyValueID        string    `json:"companyValueId"`
	CompanyValueName      string    `json:"companyValueName,omitempty"`
	Description           string    `json:"description"`
	Examples              string    `json:"examples"`
	SortOrder             int       `json:"sortOrder"`
	EmployeeRating        *int      `json:"employeeRating,omitempty"`
	CEORating             *int      `json:"ceoRating,omitempty"`
	CEOAdjustedInitiative string    `json:"ceoAdjustedInitiative,omitempty"`
	CEOComments           string    `json:"ceoComments,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func (b Behavior) ReviewedByCEO() bool {
	return b.CEORating != nil || b.CEOComments != ""
}

type MidYearReview struct {
	ID               string     `json:"id"`
	PDRID            string     `json:"pdrId"`
	ProgressSummary  string     `json:"progressSummary"`
	EmployeeComments string     `json:"employeeComments"`
	CEOFeedback      string     `json:"ceoFeedback,omitempty"`
	CEORating        *int       `json:"ceoRating,omitempty"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
}

type EndYearReview struct {
	ID               string     `json:"id"`
	PDRID            string     `json:"pdrId"`
	Achievements     string     `json:"achievements"`
	EmployeeComments string     `json:"employeeComments"`
	CEOFeedback      string     `json:"ceoFeedback,omitempty"`
	CEORating        *int       `json:"ceoRating,omitempty"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
}

// PDR is the root aggregate: one employee's review record for one financial
// year, plus its owned goals, behaviors and stage reviews.
type PDR struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	FYLabel         string     `json:"fyLabel"`
	FYStartDate     time.Time  `json:"fyStartDate"`
	FYEndDate       time.Time  `json:"fyEndDate"`
	Status          Status     `json:"status"`
	CurrentStep     int        `json:"currentStep"`
	IsLocked        bool       `json:"isLocked"`
	LockedAt        *time.Time `json:"lockedAt,omitempty"`
	LockedBy        *string    `json:"lockedBy,omitempty"`
	MeetingBooked   bool       `json:"meetingBooked"`
	MeetingBookedAt *time.Time `json:"meetingBookedAt,omitempty"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	CalibratedAt    *time.Time `json:"calibratedAt,omitempty"`
	CalibratedBy    *string    `json:"calibratedBy,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	Goals     []Goal         `json:"goals"`
	Behaviors []Behavior     `json:"behaviors"`
	MidYear   *MidYearReview `json:"midYearReview,omitempty"`
	EndYear   *EndYearReview `json:"endYearReview,omitempty"`
}

func (p *PDR) Calibrated() bool {
	return p.CalibratedAt != nil
}

func (p *PDR) BehaviorForValue(companyValueID string) *Behavior {
	for i := range p.Behaviors {
		if p.Behaviors[i].CompanyValueID == companyValueID {
			return &p.Behaviors[i]
		}
	}
	return nil
}

func (p *PDR) GoalByID(goalID string) *Goal {
	for i := range p.Goals {
		if p.Goals[i].ID == goalID {
			return &p.Goals[i]
		}
	}
	return nil
}

func (p *PDR) BehaviorByID(behaviorID string) *Behavior {
	for i := range p.Behaviors {
		if p.Behaviors[i].ID == behaviorID {
			return &p.Behaviors[i]
		}
	}
	return nil
}
