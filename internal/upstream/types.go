package upstream

import "encoding/json"

// File is an uploaded resume passed through to the backend. Validation
// happens in the funnel before a File ever reaches this package.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Improvement is one suggested resume change.
type Improvement struct {
	Category   string `json:"category"`
	Suggestion string `json:"suggestion"`
	Impact     string `json:"impact"`
}

// AnalysisResult is the structured outcome of a resume analysis. All
// optional backend fields are defaulted once at this boundary; callers can
// range over the slices without nil checks.
type AnalysisResult struct {
	OverallScore       int           `json:"overallScore"`
	CandidateName      string        `json:"candidateName"`
	PotentialTitles    []string      `json:"potentialTitles"`
	Strengths          []string      `json:"strengths"`
	Improvements       []Improvement `json:"improvements"`
	KeywordGaps        []string      `json:"keywordGaps"`
	SuggestedJobTitles []string      `json:"suggestedJobTitles"`
	TargetCompanies    []string      `json:"targetCompanies"`
	Strategy           string        `json:"strategy"`
	IndustryInsights   string        `json:"industryInsights"`
}

func (r *AnalysisResult) applyDefaults() {
	if r.PotentialTitles == nil {
		r.PotentialTitles = []string{}
	}
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.Improvements == nil {
		r.Improvements = []Improvement{}
	}
	if r.KeywordGaps == nil {
		r.KeywordGaps = []string{}
	}
	if r.SuggestedJobTitles == nil {
		r.SuggestedJobTitles = []string{}
	}
	if r.TargetCompanies == nil {
		r.TargetCompanies = []string{}
	}
}

// AnalyzeResponse is the POST /resume-analysis response.
type AnalyzeResponse struct {
	AnalysisID string         `json:"analysis_id"`
	Results    AnalysisResult `json:"results"`
}

// PersonalizationRequest is the POST .../personalization/demo-record body:
// a fixed schema list of named fields plus the data keyed by those names.
type PersonalizationRequest struct {
	Columns          []string          `json:"columns"`
	Data             map[string]string `json:"data"`
	ResumeAnalysisID string            `json:"resume_analysis_id,omitempty"`
}

type personalizationResponse struct {
	UniqueID string `json:"unique_id"`
}

// GoalsPayload is the wire shape of the user's finalized goals.
type GoalsPayload struct {
	Email           string   `json:"email"`
	LinkedinURL     string   `json:"linkedin_url"`
	TargetRoles     []string `json:"target_roles"`
	TargetLocations []string `json:"target_locations"`
	SalaryGoal      string   `json:"salary_goal"`
	Notes           string   `json:"notes"`
}

// TicketRequest is the POST /generate-ticket body.
type TicketRequest struct {
	FinalizedGoals    GoalsPayload `json:"finalized_goals"`
	ResumeAnalysisID  string       `json:"resume_analysis_id,omitempty"`
	PersonalizationID string       `json:"personalization_id,omitempty"`
}

// ClientInfo is the backend's view of the client inside a ticket.
type ClientInfo struct {
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	LinkedinURL          string   `json:"linkedin_url"`
	TargetRoles          []string `json:"target_roles"`
	TargetLocations      []string `json:"target_locations"`
	SuggestedSalaryRange string   `json:"suggested_salary_range"`
	KeyChallenges        []string `json:"key_challenges"`
}

// Ticket is the generated career strategy ticket. DeliverablePreviews stays
// opaque: careergate relays it to the front end without interpreting it.
type Ticket struct {
	StrategySummary     string                     `json:"strategy_summary"`
	ClientInfo          ClientInfo                 `json:"client_info"`
	DeliverablePreviews map[string]json.RawMessage `json:"deliverable_previews"`
}

func (t *Ticket) applyDefaults() {
	if t.ClientInfo.TargetRoles == nil {
		t.ClientInfo.TargetRoles = []string{}
	}
	if t.ClientInfo.TargetLocations == nil {
		t.ClientInfo.TargetLocations = []string{}
	}
	if t.ClientInfo.KeyChallenges == nil {
		t.ClientInfo.KeyChallenges = []string{}
	}
	if t.DeliverablePreviews == nil {
		t.DeliverablePreviews = map[string]json.RawMessage{}
	}
}

type ticketResponse struct {
	Success bool   `json:"success"`
	Ticket  Ticket `json:"ticket"`
}

// OrderRequest is the POST /career-accelerator/create-order body.
type OrderRequest struct {
	Email             string       `json:"email"`
	LinkedinURL       string       `json:"linkedin_url"`
	FinalizedGoals    GoalsPayload `json:"finalized_goals"`
	Ticket            *Ticket      `json:"ticket,omitempty"`
	ClientReferenceID string       `json:"client_reference_id"`
}

// OrderResponse is the create-order response.
type OrderResponse struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

// LeadRequest is the POST /leads body. Resume rides along as multipart when
// present.
type LeadRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Notes  string `json:"notes,omitempty"`
	Resume *File  `json:"-"`
}
