package core

// FrameworkID identifies one security-analysis methodology. The set of known
// frameworks is closed: registering an agent for an id outside this set is a
// configuration error, not a runtime condition.
type FrameworkID string

const (
	// FrameworkSTPASec is systems-theoretic process analysis for security.
	// It derives the system's control structure, which the other frameworks
	// reference, so it always runs first when enabled.
	FrameworkSTPASec FrameworkID = "stpa-sec"
	// FrameworkSTRIDE is Microsoft's threat categorization model.
	FrameworkSTRIDE FrameworkID = "stride"
	// FrameworkPASTA is the process for attack simulation and threat analysis.
	FrameworkPASTA FrameworkID = "pasta"
	// FrameworkDREAD is the risk-rating model.
	FrameworkDREAD FrameworkID = "dread"
	// FrameworkMAESTRO targets multi-agent and AI system threats.
	FrameworkMAESTRO FrameworkID = "maestro"
	// FrameworkLINDDUN is the privacy threat-modeling methodology.
	FrameworkLINDDUN FrameworkID = "linddun"
	// FrameworkHAZOP is hazard and operability analysis.
	FrameworkHAZOP FrameworkID = "hazop"
	// FrameworkOCTAVE is operationally critical threat, asset and
	// vulnerability evaluation.
	FrameworkOCTAVE FrameworkID = "octave"
	// FrameworkCrossIntegration correlates findings across the primary
	// frameworks and therefore runs strictly after all of them.
	FrameworkCrossIntegration FrameworkID = "cross-integration"
)

// PrimaryFrameworks is the canonical relative order of the primary frameworks
// after stpa-sec. Execution order preserves this sequence for determinism and
// reproducibility of token usage and timing metrics.
var PrimaryFrameworks = []FrameworkID{
	FrameworkSTRIDE,
	FrameworkPASTA,
	FrameworkDREAD,
	FrameworkMAESTRO,
	FrameworkLINDDUN,
	FrameworkHAZOP,
	FrameworkOCTAVE,
}

// IntegrationFrameworks run after every primary framework has been attempted.
var IntegrationFrameworks = []FrameworkID{
	FrameworkCrossIntegration,
}

// KnownFramework reports whether id belongs to the closed framework set.
func KnownFramework(id FrameworkID) bool {
	if id == FrameworkSTPASec {
		return true
	}
	for _, f := range PrimaryFrameworks {
		if f == id {
			return true
		}
	}
	for _, f := range IntegrationFrameworks {
		if f == id {
			return true
		}
	}
	return false
}

// IntegrationFramework reports whether id is a cross-framework analysis.
func IntegrationFramework(id FrameworkID) bool {
	for _, f := range IntegrationFrameworks {
		if f == id {
			return true
		}
	}
	return false
}
