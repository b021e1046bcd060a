package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultKey         ResultType = "key"
	ResultTranslation ResultType = "translation"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	KeyName   string     `json:"keyName"`
	Snippet   string     `json:"snippet"`
	Language  string     `json:"language,omitempty"`
	BranchID  string     `json:"branchId"`
	ProjectID string     `json:"projectId"`
}

// Query describes a search request.
type Query struct {
	Text            string
	FilterType      ResultType // empty = all types
	FilterProjectID string
	FilterBranchID  string
	FilterLanguage  string
	Limit           int
	Offset          int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexKey(k KeyRecord) error
	IndexTranslation(t TranslationRecord) error
	DeleteKey(id string) error
	DeleteTranslation(id string) error
}

// KeyRecord is the data we index for a translation key.
type KeyRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BranchID  string `json:"branchId"`
	ProjectID string `json:"projectId"`
}

// TranslationRecord is the data we index for a translated value.
type TranslationRecord struct {
	ID        string `json:"id"`
	KeyName   string `json:"keyName"`
	Language  string `json:"language"`
	Value     string `json:"value"`
	Status    string `json:"status"`
	BranchID  string `json:"branchId"`
	ProjectID string `json:"projectId"`
}
