package models

// BloodTestResults is the optional lab section of a report analysis.
type BloodTestResults struct {
	BloodType       string   `json:"bloodType,omitempty"`
	Hemoglobin      *float64 `json:"hemoglobin,omitempty"`
	WhiteBloodCells *float64 `json:"whiteBloodCells,omitempty"`
	Platelets       *float64 `json:"platelets,omitempty"`
}

// ReportAnalysis is the structured result of a health report analysis.
type ReportAnalysis struct {
	PatientName      string            `json:"patientName"`
	Summary          string            `json:"summary"`
	ImportantTopics  []string          `json:"importantTopics"`
	Recommendations  []string          `json:"recommendations"`
	Urgency          string            `json:"urgency"`
	BloodTestResults *BloodTestResults `json:"bloodTestResults,omitempty"`
	ArchiveURL       string            `json:"archiveUrl,omitempty"`
}
