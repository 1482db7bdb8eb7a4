package normalize

import "regexp"

// Source and output column names.
const (
	ColPatientID        = "Patient ID"
	ColAge              = "Age"
	ColSexualPartners   = "Sexual Partners"
	ColFirstActivityAge = "First Sexual Activity Age"
	ColRiskLevel        = "Risk Level"
	ColHPVTestResult    = "HPV Test Result"
	ColPapSmearResult   = "Pap Smear Result"
	ColSmokingStatus    = "Smoking Status"
	ColSTDsHistory      = "STDs History"
	ColRegion           = "Region"
	ColInsuranceCovered = "Insurance Covered"
	ColRecommended      = "Recommended Action"
	ColScreeningType    = "Screening Type Last"

	// colInsuranceLegacy is the misspelled header found in older exports.
	colInsuranceLegacy = "Insrance Covered"
)

// OutputColumns is the fixed header of a normalized file, in order.
var OutputColumns = []string{
	ColPatientID, ColAge, ColSexualPartners, ColFirstActivityAge,
	ColRiskLevel, ColHPVTestResult, ColPapSmearResult, ColSmokingStatus,
	ColSTDsHistory, ColRegion, ColInsuranceCovered, ColRecommended,
	ColScreeningType,
}

// sourceColumns must be present in a raw table. Insurance is checked
// separately because it has two accepted spellings.
var sourceColumns = []string{
	ColAge, ColSexualPartners, ColFirstActivityAge,
	ColSmokingStatus, ColSTDsHistory, ColHPVTestResult, ColPapSmearResult,
	ColRegion, ColRecommended, ColScreeningType,
}

var numericColumns = []string{ColAge, ColSexualPartners, ColFirstActivityAge}

var artifactPattern = regexp.MustCompile(`^Unnamed: \d+$`)

// isArtifact reports whether a header was injected by a spreadsheet export.
func isArtifact(header string) bool {
	return header == "" || artifactPattern.MatchString(header)
}

// insuranceColumn returns the insurance header the table uses, preferring the
// correct spelling.
func insuranceColumn(has func(string) bool) (string, bool) {
	for _, name := range []string{ColInsuranceCovered, colInsuranceLegacy} {
		if has(name) {
			return name, true
		}
	}
	return "", false
}
