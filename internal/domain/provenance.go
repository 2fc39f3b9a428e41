package domain

// Provenance records where a piece of customer context came from.
type Provenance string

const (
	ProvenanceStated        Provenance = "stated"
	ProvenanceDeclared      Provenance = "declared"
	ProvenanceObserved      Provenance = "observed"
	ProvenanceInferred      Provenance = "inferred"
	ProvenanceAgentInferred Provenance = "agent_inferred"
	ProvenanceAppended      Provenance = "appended"
)

// Usage tells the agent how a context value may be used in conversation.
type Usage string

const (
	UsageDirect        Usage = "direct"         // may be referenced explicitly
	UsageSoft          Usage = "soft"           // reference gently
	UsageInfluenceOnly Usage = "influence_only" // never mention, only curate
)

var provenanceUsage = map[Provenance]Usage{
	ProvenanceStated:        UsageDirect,
	ProvenanceDeclared:      UsageDirect,
	ProvenanceObserved:      UsageDirect,
	ProvenanceInferred:      UsageSoft,
	ProvenanceAgentInferred: UsageSoft,
	ProvenanceAppended:      UsageInfluenceOnly,
}

// Provenances lists every known provenance in table order.
var Provenances = []Provenance{
	ProvenanceStated, ProvenanceDeclared, ProvenanceObserved,
	ProvenanceInferred, ProvenanceAgentInferred, ProvenanceAppended,
}

// UsageFor returns the usage permission for a provenance. Unknown
// provenances get the most restrictive usage.
func UsageFor(p Provenance) Usage {
	if u, ok := provenanceUsage[p]; ok {
		return u
	}
	return UsageInfluenceOnly
}

// TaggedContextField is a single context value with its provenance. Usage
// is always derived; construct with Tag.
type TaggedContextField struct {
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
	Usage      Usage      `json:"usage"`
}

// Tag builds a TaggedContextField with usage derived from provenance.
func Tag(value string, p Provenance) TaggedContextField {
	return TaggedContextField{Value: value, Provenance: p, Usage: UsageFor(p)}
}
