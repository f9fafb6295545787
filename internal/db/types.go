package db

import "time"

// Participant is the full stored row, including fields the public API
// projection (C5) must exclude (IPHash, UserAgent).
type Participant struct {
	ID               int64
	ParticipantID    string
	SessionID        string
	Username         string
	Email            string
	Phone            string
	Gender           string
	Age              int
	Place            string
	NativeLanguage   string
	PriorExperience  string
	PaymentStatus    string
	ConsentGiven     bool
	ConsentTimestamp *time.Time
	IPHash           string
	UserAgent        string
	CreatedAt        time.Time
}

// NewParticipant carries the fields create_participant accepts.
type NewParticipant struct {
	ParticipantID   string
	SessionID       string
	Username        string
	Email           string
	Phone           string
	Gender          string
	Age             int
	Place           string
	NativeLanguage  string
	PriorExperience string
}

// SameDemographics reports whether p was created with fields identical to n,
// the check spec.md §4.5 uses to decide idempotent-200 vs 409-Conflict on a
// re-POSTed registration.
func (p *Participant) SameDemographics(n NewParticipant) bool {
	return p.SessionID == n.SessionID &&
		p.Username == n.Username &&
		p.Email == n.Email &&
		p.Phone == n.Phone &&
		p.Gender == n.Gender &&
		p.Age == n.Age &&
		p.Place == n.Place &&
		p.NativeLanguage == n.NativeLanguage &&
		p.PriorExperience == n.PriorExperience
}

type ConsentRecord struct {
	ID            int64
	ParticipantFK int64
	ConsentGiven  bool
	IPHash        string
	UserAgent     string
	CreatedAt     time.Time
}

type Payment struct {
	ID            int64
	ParticipantFK int64
	OrderID       string
	PaymentID     string
	Signature     string
	Amount        int64
	Currency      string
	Status        string
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
}

type Image struct {
	ID          int64
	ImageID     string
	URL         string
	Width       *int
	Height      *int
	ObjectCount *int
	Difficulty  string
	SeededFrom  string
	CreatedAt   time.Time
}

type AttentionCheck struct {
	ID              int64
	ImageFK         int64
	ExpectedKeyword string
	Strict          bool
	Active          bool
}

// NewSubmission carries every field record_submission persists.
type NewSubmission struct {
	ParticipantFK    int64
	ImageFK          int64
	SessionID        string
	Description      string
	DescriptionHash  string
	WordCount        int
	Rating           int
	Feedback         string
	TimeSpentSeconds int
	IsSurvey         bool
	IsAttention      bool
	AttentionPassed  *bool
	TooFastFlag      bool
	QualityScore     *float64
	AISuspected      bool
	IPHash           string
	UserAgent        string
}

type Submission struct {
	ID               int64
	SubmissionID     string
	ParticipantFK    int64
	ImageFK          int64
	SessionID        string
	SurveyIndex      int
	Description      string
	DescriptionHash  string
	WordCount        int
	Rating           int
	Feedback         string
	TimeSpentSeconds int
	IsSurvey         bool
	IsAttention      bool
	AttentionPassed  *bool
	TooFastFlag      bool
	QualityScore     *float64
	AISuspected      bool
	IPHash           string
	UserAgent        string
	CreatedAt        time.Time
}

type AttentionStats struct {
	ParticipantFK  int64
	TotalChecks    int
	PassedChecks   int
	FailedChecks   int
	AttentionScore float64
	IsFlagged      bool
	UpdatedAt      time.Time
}

type ParticipantStats struct {
	ParticipantFK       int64
	TotalWords          int
	TotalSubmissions    int
	SurveyRounds        int
	AttentionScore      float64
	PriorityEligible    bool
	LastRewardAttemptAt *time.Time
	UpdatedAt           time.Time
}

type RewardWinner struct {
	ID            int64
	ParticipantFK int64
	Amount        int64
	Status        string
	SelectedAt    time.Time
	PaidAt        *time.Time
}

type AuditEvent struct {
	EventType     string
	ParticipantFK *int64
	Endpoint      string
	Method        string
	StatusCode    int
	IPHash        string
	UserAgent     string
	Details       string
}

type PerformanceMetric struct {
	Endpoint       string
	ResponseTimeMs int64
	StatusCode     int
	RequestSize    int64
	ResponseSize   int64
}
