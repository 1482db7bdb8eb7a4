package screening

import (
	"fmt"
	"strings"
)

// RiskTier is the rule-derived cervical cancer risk category.
type RiskTier string

const (
	LowRisk      RiskTier = "Low Risk"
	ModerateRisk RiskTier = "Moderate Risk"
	HighRisk     RiskTier = "High Risk"

	// Unknown is reported for a patient with no screening events. It is never
	// produced by Classify and never stored on an event.
	Unknown RiskTier = "Unknown"
)

// Tiers lists the classifiable tiers from lowest to highest.
var Tiers = []RiskTier{LowRisk, ModerateRisk, HighRisk}

// ParseRiskTier accepts exactly one of the classifiable tier names.
func ParseRiskTier(s string) (RiskTier, error) {
	t := RiskTier(strings.TrimSpace(s))
	for _, known := range Tiers {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown risk tier %q", s)
}

// Flag is a canonical binary attribute value.
type Flag string

const (
	Yes Flag = "Y"
	No  Flag = "N"
)

// Attributes are the inputs of the classification rules.
type Attributes struct {
	Age            int
	SmokingStatus  Flag
	STDsHistory    Flag
	HPVTestResult  string
	PapSmearResult string
}

// Classify applies the rules in fixed order, each later rule overriding the
// earlier result: Low by default, Moderate for age over 50, smoking or an STD
// history, High for a positive HPV test or an abnormal Pap smear.
func Classify(a Attributes) RiskTier {
	tier := LowRisk
	if a.Age > 50 || a.SmokingStatus == Yes || a.STDsHistory == Yes {
		tier = ModerateRisk
	}
	if strings.EqualFold(strings.TrimSpace(a.HPVTestResult), "POSITIVE") ||
		strings.EqualFold(strings.TrimSpace(a.PapSmearResult), string(Yes)) {
		tier = HighRisk
	}
	return tier
}
