package store

import "time"

type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
}

type Project struct {
	ID              string
	Name            string
	Slug            string
	DefaultLanguage string
	Languages       []string
	QualityConfig   string // JSON, decoded by the app layer
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Space struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	CreatedAt   time.Time
}

type Branch struct {
	ID          string
	SpaceID     string
	Name        string
	IsDefault   bool
	CreatedFrom string // empty for root branches
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TranslationKey struct {
	ID        string
	BranchID  string
	Name      string
	CreatedAt time.Time
}

type Translation struct {
	ID        string
	KeyID     string
	Language  string
	Value     string
	Status    string // PENDING | APPROVED | REJECTED
	UpdatedAt time.Time
}

type APIKey struct {
	ID         string
	ProjectID  string
	Name       string
	SecretHash string
	CreatedBy  string
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

type ActivityEvent struct {
	ID        int64
	ProjectID string
	BranchID  string
	Type      string
	Actor     string
	Metadata  string // JSON payload
	CreatedAt time.Time
}

type LanguageStats struct {
	Total     int `json:"total"`
	Evaluated int `json:"evaluated"`
	Passing   int `json:"passing"`
	ScoreSum  int `json:"-"`
}

// Average is zero when nothing in the language has been evaluated.
func (s LanguageStats) Average() float64 {
	if s.Evaluated == 0 {
		return 0
	}
	return float64(s.ScoreSum) / float64(s.Evaluated)
}

type ScoreDistribution struct {
	Excellent int `json:"excellent"` // 90 and above
	Good      int `json:"good"`      // 80 to 89
	Poor      int `json:"needsReview"` // below 80
}

type BranchSummary struct {
	BranchID          string                   `json:"branchId"`
	TotalTranslations int                      `json:"totalTranslations"`
	Evaluated         int                      `json:"evaluated"`
	Unevaluated       int                      `json:"unevaluated"`
	Passing           int                      `json:"passing"`
	Failing           int                      `json:"failing"`
	AverageScore      float64                  `json:"averageScore"`
	Distribution      ScoreDistribution        `json:"distribution"`
	ByLanguage        map[string]LanguageStats `json:"byLanguage"`
}
