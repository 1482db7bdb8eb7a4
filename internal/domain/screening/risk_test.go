package screening

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   Attributes
		want RiskTier
	}{
		{"baseline low", Attributes{Age: 30, SmokingStatus: No, STDsHistory: No, HPVTestResult: "NEGATIVE", PapSmearResult: "N"}, LowRisk},
		{"age over fifty", Attributes{Age: 55, SmokingStatus: No, STDsHistory: No, HPVTestResult: "NEGATIVE", PapSmearResult: "N"}, ModerateRisk},
		{"age exactly fifty", Attributes{Age: 50, SmokingStatus: No, STDsHistory: No}, LowRisk},
		{"smoker", Attributes{Age: 20, SmokingStatus: Yes, STDsHistory: No}, ModerateRisk},
		{"std history", Attributes{Age: 20, SmokingStatus: No, STDsHistory: Yes}, ModerateRisk},
		{"hpv positive", Attributes{Age: 30, SmokingStatus: No, STDsHistory: No, HPVTestResult: "POSITIVE", PapSmearResult: "N"}, HighRisk},
		{"pap abnormal", Attributes{Age: 30, PapSmearResult: "Y"}, HighRisk},
		{"high overrides moderate", Attributes{Age: 60, SmokingStatus: Yes, STDsHistory: Yes, HPVTestResult: "POSITIVE"}, HighRisk},
		{"hpv compared case-insensitively", Attributes{Age: 30, HPVTestResult: " positive "}, HighRisk},
		{"pap compared case-insensitively", Attributes{Age: 30, PapSmearResult: "y"}, HighRisk},
		{"unexpected hpv text", Attributes{Age: 30, HPVTestResult: "INCONCLUSIVE"}, LowRisk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in); got != tt.want {
				t.Errorf("Classify(%+v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassify_NeverUnknown(t *testing.T) {
	for _, age := range []int{0, 50, 51, 99} {
		for _, f := range []Flag{Yes, No, ""} {
			got := Classify(Attributes{Age: age, SmokingStatus: f, STDsHistory: f})
			if got == Unknown || got == "" {
				t.Fatalf("Classify produced %q", got)
			}
		}
	}
}

func TestParseRiskTier(t *testing.T) {
	for _, tier := range Tiers {
		got, err := ParseRiskTier(" " + string(tier) + " ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tier {
			t.Errorf("expected %s, got %s", tier, got)
		}
	}
	for _, bad := range []string{"", "Unknown", "high risk", "Severe"} {
		if _, err := ParseRiskTier(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
