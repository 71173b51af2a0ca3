package testtype

import "time"

// ReportField describes one measurement the parser is expected to extract
// for a test type.
type ReportField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Unit     string `json:"unit,omitempty"`
	Required bool   `json:"required"`
}

// TestType is the parser configuration for one kind of lab test. The external
// parser receives the test type id and loads the matching parser module and
// class; report_fields drives which measurements it looks for.
type TestType struct {
	ID           int64         `json:"id"`
	Label        string        `json:"label"`
	FileFormat   string        `json:"file_format"`
	ParserModule string        `json:"parser_module"`
	ParserClass  string        `json:"parser_class"`
	ReportFields []ReportField `json:"report_fields"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
