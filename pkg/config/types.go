package config

// Document is the generic map form of a canonical configuration document.
// The persister merges at this level so keys outside the schema survive.
type Document map[string]interface{}

// IntegrationMetadata carries the external service identifiers and tooling
// recommendations that accompany a resolution. Field content is opaque
// payload passed through unchanged.
type IntegrationMetadata struct {
	// Services maps integration names to external service identifiers
	// (e.g. an issue tracker project key).
	Services map[string]string `json:"services,omitempty" yaml:"services,omitempty"`

	// Integrations lists detected or recommended tooling integrations.
	Integrations []string `json:"integrations,omitempty" yaml:"integrations,omitempty"`

	// Skills lists detected or recommended skills.
	Skills []string `json:"skills,omitempty" yaml:"skills,omitempty"`
}

// StackSection is the typed view of the canonical document's stack section,
// built from a finalized selection snapshot.
type StackSection struct {
	// Structure is the selected repository structure.
	Structure string `json:"structure" yaml:"structure"`

	// ProjectType is the selected project type.
	ProjectType string `json:"project_type" yaml:"project_type"`

	// Language is the selected implementation language.
	Language string `json:"language" yaml:"language"`

	// Frameworks lists the selected framework(s).
	Frameworks []string `json:"frameworks" yaml:"frameworks"`

	// PackageManager is the selected package manager.
	PackageManager string `json:"package_manager" yaml:"package_manager"`

	// Additions lists the selected stack additions.
	Additions []string `json:"additions" yaml:"additions"`
}
