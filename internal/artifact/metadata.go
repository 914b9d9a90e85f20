package artifact

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// Phase is the kind of document the agent is currently authoring for a session.
type Phase string

const (
	PhaseNone               Phase = ""
	PhaseTask               Phase = "task"
	PhaseImplementationPlan Phase = "implementation_plan"
	PhaseWalkthrough        Phase = "walkthrough"
)

// typeMarker prefixes every artifactType value written by the agent.
const typeMarker = "ARTIFACT_TYPE_"

// DefaultSuffixes are the file name endings that identify metadata files.
var DefaultSuffixes = []string{".metadata.json", ".metadata"}

// Metadata is the document written next to each artifact.
type Metadata struct {
	ArtifactType string `json:"artifactType"`
	Summary      string `json:"summary,omitempty"`
	Version      string `json:"version,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// Phase returns the recognized phase named by the artifactType field.
func (m Metadata) Phase() (Phase, bool) {
	value, found := strings.CutPrefix(strings.TrimSpace(m.ArtifactType), typeMarker)
	if !found || value == "" {
		return PhaseNone, false
	}

	switch p := Phase(strings.ToLower(value)); p {
	case PhaseTask, PhaseImplementationPlan, PhaseWalkthrough:
		return p, true
	default:
		return PhaseNone, false
	}
}

// ParseMetadata decodes a metadata document. It fails only on malformed JSON.
func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// ParsePhase extracts the artifact phase from raw metadata content.
// Anything that cannot be recognized yields ok == false.
func ParsePhase(data []byte) (Phase, bool) {
	m, err := ParseMetadata(data)
	if err != nil {
		return PhaseNone, false
	}
	return m.Phase()
}

// IsMetadataFile reports whether the base name of path ends with one of suffixes.
func IsMetadataFile(path string, suffixes []string) bool {
	base := filepath.Base(path)
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(base, s) && len(base) > len(s) {
			return true
		}
	}
	return false
}
