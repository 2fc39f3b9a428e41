package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestUsageForIsFixedTable(t *testing.T) {
	want := map[Provenance]Usage{
		ProvenanceStated:        UsageDirect,
		ProvenanceDeclared:      UsageDirect,
		ProvenanceObserved:      UsageDirect,
		ProvenanceInferred:      UsageSoft,
		ProvenanceAgentInferred: UsageSoft,
		ProvenanceAppended:      UsageInfluenceOnly,
	}
	require.Len(t, Provenances, len(want))
	for _, p := range Provenances {
		t.Run(string(p), func(t *testing.T) {
			assert.Equal(t, want[p], UsageFor(p))
			// the same provenance always maps the same way, whatever the value
			assert.Equal(t, want[p], Tag("x", p).Usage)
			assert.Equal(t, want[p], Tag("", p).Usage)
		})
	}
	assert.Equal(t, UsageInfluenceOnly, UsageFor("rumor"))
}

func TestTierDefaultsToAnonymous(t *testing.T) {
	var nilProfile *CustomerProfile
	assert.Equal(t, TierAnonymous, nilProfile.Tier())
	assert.Equal(t, TierAnonymous, (&CustomerProfile{}).Tier())
	p := &CustomerProfile{MerkuryIdentity: &MerkuryIdentity{IdentityTier: TierKnown}}
	assert.Equal(t, TierKnown, p.Tier())
}

func TestFieldValueAcceptsScalarOrList(t *testing.T) {
	var f struct {
		A FieldValue `json:"a" yaml:"a"`
		B FieldValue `json:"b" yaml:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"single-family","b":["kitchen","deck"]}`), &f))
	assert.Equal(t, "single-family", f.A.String())
	assert.Equal(t, "kitchen, deck", f.B.String())

	out, err := json.Marshal(f.A)
	require.NoError(t, err)
	assert.JSONEq(t, `"single-family"`, string(out))

	require.NoError(t, yaml.Unmarshal([]byte("a: condo\nb: [a, b]\n"), &f))
	assert.Equal(t, FieldValue{"condo"}, f.A)
	assert.Equal(t, FieldValue{"a", "b"}, f.B)
}

func TestDirectiveJSONShape(t *testing.T) {
	d := UIDirective{
		Action: ActionChangeScene,
		Payload: &UIDirectivePayload{
			SceneContext: &SceneContext{Setting: SettingKitchen, GenerateBackground: Bool(false)},
		},
	}
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"CHANGE_SCENE","payload":{"sceneContext":{"setting":"kitchen","generateBackground":false}}}`, string(out))

	var nilDirective *UIDirective
	assert.Nil(t, nilDirective.Products())
}
