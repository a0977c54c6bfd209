package model

// Owner names one of the two independent report namespaces.
type Owner string

const (
	Personal Owner = "personal"
	Shared   Owner = "shared"
)

// Owners lists every namespace in the fixed order used for iteration.
var Owners = []Owner{Personal, Shared}

// Valid reports whether o is a known namespace.
func (o Owner) Valid() bool {
	return o == Personal || o == Shared
}

// Report is a single unit of recorded work.
type Report struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	Content    string `json:"content" yaml:"content"`
	Category   string `json:"category" yaml:"category"`
	Location   string `json:"location" yaml:"location"`
	Attendees  string `json:"attendees" yaml:"attendees"`
	StartDate  string `json:"start_date" yaml:"start_date"`
	EndDate    string `json:"end_date" yaml:"end_date"`
	ExternalID string `json:"external_id,omitempty" yaml:"external_id,omitempty"`
}

// IsPeriod reports whether r spans more than its start day.
func (r Report) IsPeriod() bool {
	return r.EndDate != "" && r.EndDate != r.StartDate
}

// Match addresses a report by its current bucket position.
// Index is only valid until the next mutation of that bucket.
type Match struct {
	Owner      Owner  `json:"owner" yaml:"owner"`
	BucketDate string `json:"bucket_date" yaml:"bucket_date"`
	Index      int    `json:"index" yaml:"index"`
	Report     Report `json:"report" yaml:"report"`
}

// Buckets maps a start date to the ordered reports stored under it.
type Buckets map[string][]Report

// Document is the top-level structure of the data file.
type Document struct {
	Personal Buckets `json:"personal" yaml:"personal"`
	Shared   Buckets `json:"shared" yaml:"shared"`
}
