package features

// Dependency names used across the gateway
const (
	DepSearch        = "search"
	DepReputationAPI = "reputation_api"
	DepDocCompiler   = "doc_compiler"
)

// Feature names exposed by the gateway
const (
	FeatureEventSearch         = "event_search"
	FeatureCampaignCorrelation = "campaign_correlation"
	FeatureAnomalyDetection    = "anomaly_detection"
	FeatureReputation          = "reputation"
	FeatureReporting           = "reporting"
	FeatureDataDictionary      = "data_dictionary"
)

// DefaultDefinitions returns the gateway's static feature table. It is
// assembled once at startup and handed to the resolver; nothing mutates it
// afterwards.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Name:         FeatureEventSearch,
			Dependencies: []string{DepSearch},
			Criticality:  CriticalityCritical,
			Description:  "Security event queries against the search backend",
		},
		{
			Name:         FeatureCampaignCorrelation,
			Dependencies: []string{DepSearch},
			Criticality:  CriticalityImportant,
			Description:  "Correlation of events into campaigns",
		},
		{
			Name:         FeatureAnomalyDetection,
			Dependencies: []string{DepSearch},
			Criticality:  CriticalityImportant,
			Description:  "Statistical anomaly detection over event metrics",
		},
		{
			Name:         FeatureReputation,
			Dependencies: []string{DepReputationAPI},
			Criticality:  CriticalityImportant,
			Description:  "Indicator reputation lookups",
		},
		{
			Name:         FeatureReporting,
			Dependencies: []string{DepSearch, DepDocCompiler},
			Criticality:  CriticalityOptional,
			Description:  "Compiled incident reports from event data",
		},
		{
			Name:        FeatureDataDictionary,
			Criticality: CriticalityOptional,
			Description: "Field and schema documentation, served from memory",
		},
	}
}
