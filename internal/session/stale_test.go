package session

import "testing"

func TestParseTmuxNameRoundTrip(t *testing.T) {
	name := TmuxName("demo", "builder-ab12cd34")
	project, agent, err := ParseTmuxName(name)
	if err != nil {
		t.Fatalf("ParseTmuxName: %v", err)
	}
	if project != "demo" || agent != "builder-ab12cd34" {
		t.Errorf("got (%q, %q)", project, agent)
	}
}

func TestParseTmuxNameRejectsMissingPrefix(t *testing.T) {
	if _, _, err := ParseTmuxName("other-demo-agent"); err == nil {
		t.Error("expected error for missing prefix")
	}
}

func TestParseCapabilityGroupAcceptsPlural(t *testing.T) {
	c, ok := ParseCapabilityGroup("@builders")
	if !ok || c != CapabilityBuilder {
		t.Errorf("ParseCapabilityGroup(@builders) = %v, %v", c, ok)
	}
	c, ok = ParseCapabilityGroup("@builder")
	if !ok || c != CapabilityBuilder {
		t.Errorf("ParseCapabilityGroup(@builder) = %v, %v", c, ok)
	}
}

func TestParseCapabilityGroupRejectsAllAndUnknown(t *testing.T) {
	if _, ok := ParseCapabilityGroup(AllAddress); ok {
		t.Error("@all should not parse as a capability group")
	}
	if _, ok := ParseCapabilityGroup("@nope"); ok {
		t.Error("unknown capability should not parse")
	}
}

func TestMintAgentNameIsUniqueAndPrefixed(t *testing.T) {
	a, err := MintAgentName(CapabilityScout)
	if err != nil {
		t.Fatalf("MintAgentName: %v", err)
	}
	b, err := MintAgentName(CapabilityScout)
	if err != nil {
		t.Fatalf("MintAgentName: %v", err)
	}
	if a == b {
		t.Error("expected distinct minted names")
	}
	wantPrefix := string(CapabilityScout) + "-"
	if len(a) <= len(wantPrefix) || a[:len(wantPrefix)] != wantPrefix {
		t.Errorf("name %q missing capability prefix %q", a, wantPrefix)
	}
}
