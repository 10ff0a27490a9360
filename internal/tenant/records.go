package tenant

// PromptFragment is a single layered prompt component: either literal text
// (Inline) or a reference to a UTF-8 file (Path). Exactly one should be set;
// if both are empty the fragment resolves to an empty string.
type PromptFragment struct {
	Inline string `json:"inline,omitempty"`
	Path   string `json:"path,omitempty"`
}

// configRecord is the on-disk "config record" (§6.2): display metadata plus
// the full TenantConfig.
type configRecord struct {
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
	Config      TenantConfig `json:"config"`
}

// builderRecord is the on-disk "builder record" (§6.2): the layered prompt
// fragments resolved in fixed order by Registry.Load, plus fallback
// greeting/initialization text used when the sibling .txt files are absent.
type builderRecord struct {
	InitialInstructions     PromptFragment `json:"initial_instructions"`
	BaseConfiguration       PromptFragment `json:"base_configuration"`
	FunctionalConfiguration PromptFragment `json:"functional_configuration"`
	CitationConfiguration   PromptFragment `json:"citation_configuration"`

	InitialGreeting       string `json:"initial_greeting,omitempty"`
	InitializationMessage string `json:"initialization_message,omitempty"`
}
