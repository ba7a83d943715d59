package domain

// UsageMetric keys a per-organization usage counter.
type UsageMetric string

const (
	MetricAssessments UsageMetric = "assessments"
)

// Feature flags checked through the license gate.
type Feature string

const (
	FeatureAPIAccess      Feature = "api_access"
	FeatureWhiteLabel     Feature = "white_label"
	FeatureCustomBranding Feature = "custom_branding"
)

const (
	AdmissionReasonAllowed      = "Allowed"
	AdmissionReasonLimitReached = "LimitReached"
	AdmissionReasonNoPlan       = "NoPlan"
)

// Admission is the license gate's answer to "may this organization start an
// assessment right now". MaxAllowed is meaningless when Unlimited is set.
type Admission struct {
	Allowed      bool
	ReasonCode   string
	CurrentUsage int
	MaxAllowed   int
	Unlimited    bool
}
