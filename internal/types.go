package internal

import "strings"

type RecordSource string

const (
	SourceCSV         RecordSource = "csv"
	SourceXLSX        RecordSource = "xlsx"
	SourceHTMLTable   RecordSource = "html_table"
	SourceSynthesized RecordSource = "synthesized"
)

// ApplicantRecord is one row of the applicant import. Optional columns are
// pointers so that "column missing" and "cell empty" stay distinguishable.
type ApplicantRecord struct {
	Row                  int     `json:"row"`
	Index                string  `json:"index"`
	AcceptanceNumber     string  `json:"acceptance_number,omitempty"`
	Valid                string  `json:"valid,omitempty"`
	PassportNumber       string  `json:"passport_number"`
	ExpiryDate           string  `json:"expiry_date"`
	Surname              string  `json:"surname"`
	GivenName            string  `json:"given_name"`
	Gender               string  `json:"gender"`
	BirthDate            string  `json:"birth_date"`
	Nationality          string  `json:"nationality,omitempty"`
	PhotoFilename        string  `json:"photo_filename,omitempty"`
	TeamAcceptanceNumber string  `json:"team_acceptance_number"`
	VisaType             *string `json:"visa_type,omitempty"`
	Duration             string  `json:"duration,omitempty"`
	Category             string  `json:"category,omitempty"`
	Validity             string  `json:"validity,omitempty"`
	ChineseName          *string `json:"chinese_name,omitempty"`
}

func (r ApplicantRecord) FullName() string {
	return strings.TrimSpace(r.Surname + " " + r.GivenName)
}

// ExtractedRecord is what the document-understanding service read from one
// passport page.
type ExtractedRecord struct {
	PassportNumber string  `json:"passport_number"`
	Surname        string  `json:"surname"`
	GivenName      string  `json:"given_name"`
	Gender         string  `json:"gender"`
	BirthDate      string  `json:"birth_date"`
	ExpiryDate     string  `json:"expiry_date"`
	ChineseName    *string `json:"chinese_name,omitempty"`
	PageNumber     int     `json:"page_number"`
}

func (r ExtractedRecord) FullName() string {
	return strings.TrimSpace(r.Surname + " " + r.GivenName)
}

// AcceptanceEntry is one line of the acceptance-number list, either read from
// the authority's list or synthesized from the applicant import.
type AcceptanceEntry struct {
	AcceptanceNumber     string       `json:"acceptance_number"`
	TeamAcceptanceNumber string       `json:"team_acceptance_number"`
	PassportNumber       string       `json:"passport_number"`
	Surname              string       `json:"surname"`
	GivenName            string       `json:"given_name"`
	ChineseName          string       `json:"chinese_name,omitempty"`
	VisaType             *string      `json:"visa_type,omitempty"`
	Source               RecordSource `json:"source"`
}

type MatchReason string

const (
	ReasonExact       MatchReason = "EXACT"
	ReasonNumericRun  MatchReason = "NUMERIC_RUN"
	ReasonContainment MatchReason = "CONTAINMENT"
	ReasonNone        MatchReason = "NONE"
)

// ErrorRecord lists the discrepancies found for one applicant.
type ErrorRecord struct {
	Index          int      `json:"index"`
	PassportNumber string   `json:"passport_number"`
	Errors         []string `json:"errors"`
	PageNumber     *int     `json:"page_number,omitempty"`
	Suggestion     *string  `json:"suggestion,omitempty"`
}

// DocumentRow is an uploaded passport scan, addressed by the sha256 of its
// content.
type DocumentRow struct {
	Hash      string
	Name      string
	Path      string
	PageCount int
}

type PageText struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// CachedExtraction is a stored extraction result for one document.
type CachedExtraction struct {
	DocumentHash string            `json:"document_hash"`
	Records      []ExtractedRecord `json:"records"`
	ValidPages   []int             `json:"valid_pages"`
	CreatedAt    string            `json:"created_at"`
}

// ExtractionResult is what the extraction service returns for a document.
type ExtractionResult struct {
	Records    []ExtractedRecord `json:"records"`
	ValidPages []int             `json:"valid_pages"`
	FromCache  bool              `json:"from_cache"`
}
