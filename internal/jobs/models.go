package jobs

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

type EmploymentType string

const (
	FullTime   EmploymentType = "full_time"
	PartTime   EmploymentType = "part_time"
	Contract   EmploymentType = "contract"
	Internship EmploymentType = "internship"
)

func (t EmploymentType) valid() bool {
	switch t {
	case FullTime, PartTime, Contract, Internship:
		return true
	}
	return false
}

type Job struct {
	ID             string         `json:"id"`
	EmployerID     string         `json:"employer_id"`
	Title          string         `json:"title"`
	Company        string         `json:"company"`
	Location       string         `json:"location"`
	Remote         bool           `json:"remote"`
	EmploymentType EmploymentType `json:"employment_type"`
	Description    string         `json:"description"`
	Skills         []string       `json:"skills,omitempty"`
	SalaryMin      int            `json:"salary_min,omitempty"`
	SalaryMax      int            `json:"salary_max,omitempty"`
	PostedAt       time.Time      `json:"posted_at"`
}

type ApplicationStatus string

const (
	StatusSubmitted ApplicationStatus = "submitted"
	StatusReviewing ApplicationStatus = "reviewing"
	StatusRejected  ApplicationStatus = "rejected"
	StatusOffered   ApplicationStatus = "offered"
)

func (s ApplicationStatus) valid() bool {
	switch s {
	case StatusSubmitted, StatusReviewing, StatusRejected, StatusOffered:
		return true
	}
	return false
}

type Application struct {
	ID          string            `json:"id"`
	JobID       string            `json:"job_id"`
	ApplicantID string            `json:"applicant_id"`
	CoverLetter string            `json:"cover_letter,omitempty"`
	ResumeURL   string            `json:"resume_url,omitempty"`
	Status      ApplicationStatus `json:"status"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

type Profile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Headline  string    `json:"headline,omitempty"`
	Location  string    `json:"location,omitempty"`
	Skills    []string  `json:"skills,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchQuery filters job listings. The zero value matches everything.
type SearchQuery struct {
	Text           string
	Location       string
	Remote         *bool
	EmploymentType EmploymentType
	Skill          string
	Limit          int
	Offset         int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

func (q SearchQuery) normalized() SearchQuery {
	q.Text = strings.ToLower(strings.TrimSpace(q.Text))
	q.Location = strings.ToLower(strings.TrimSpace(q.Location))
	q.Skill = strings.ToLower(strings.TrimSpace(q.Skill))
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Key encodes the normalized query so equal searches share a cache entry.
func (q SearchQuery) Key() string {
	q = q.normalized()
	v := url.Values{}
	v.Set("text", q.Text)
	v.Set("location", q.Location)
	v.Set("type", string(q.EmploymentType))
	v.Set("skill", q.Skill)
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	if q.Remote != nil {
		v.Set("remote", strconv.FormatBool(*q.Remote))
	}
	return v.Encode()
}

func (q SearchQuery) matches(j Job) bool {
	if q.Text != "" &&
		!strings.Contains(strings.ToLower(j.Title), q.Text) &&
		!strings.Contains(strings.ToLower(j.Company), q.Text) &&
		!strings.Contains(strings.ToLower(j.Description), q.Text) {
		return false
	}
	if q.Location != "" && !strings.Contains(strings.ToLower(j.Location), q.Location) {
		return false
	}
	if q.Remote != nil && j.Remote != *q.Remote {
		return false
	}
	if q.EmploymentType != "" && j.EmploymentType != q.EmploymentType {
		return false
	}
	if q.Skill != "" {
		found := false
		for _, s := range j.Skills {
			if strings.EqualFold(s, q.Skill) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SearchResult is one page of matching jobs.
type SearchResult struct {
	Jobs  []Job `json:"jobs"`
	Total int   `json:"total"`
}
