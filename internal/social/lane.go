package social

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source kinds a lane can draw from.
const (
	SourceBlog      = "blog"
	SourceChangelog = "changelog"
	SourceMixed     = "mixed"
)

const maxRecalledHooks = 8

const antiRepetitionDirective = "This is an additional round. Avoid repeating the angles, hooks and examples used earlier in this batch; take clearly different perspectives."

// Source is one piece of material a lane writes about.
type Source struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	URL     string `json:"url,omitempty"`
}

// LanePlan is the per-run configuration of one lane.
type LanePlan struct {
	Lane           string
	Sources        []Source
	Instructions   string
	Variation      string
	FallbackThemes []string
	Platforms      []string
	Language       string
	// Round is 0 for the first round and increases for each extra round.
	Round int
}

// WithAntiRepetition returns a copy of p for an extra round. Its variation
// strategy asks for new angles and lists hooks already produced.
func (p LanePlan) WithAntiRepetition(previousHooks []string) LanePlan {
	next := p
	next.Sources = append([]Source(nil), p.Sources...)
	next.FallbackThemes = append([]string(nil), p.FallbackThemes...)
	next.Platforms = append([]string(nil), p.Platforms...)
	next.Round = p.Round + 1

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Variation))
	if sb.Len() > 0 {
		sb.WriteString("\n\n")
	}
	sb.WriteString(antiRepetitionDirective)
	hooks := previousHooks
	if len(hooks) > maxRecalledHooks {
		hooks = hooks[len(hooks)-maxRecalledHooks:]
	}
	if len(hooks) > 0 {
		sb.WriteString("\nHooks already used:")
		for _, h := range hooks {
			fmt.Fprintf(&sb, "\n- %s", strings.TrimSpace(h))
		}
	}
	next.Variation = sb.String()
	return next
}

// LaneDefinition is the static description of a lane.
type LaneDefinition struct {
	Name           string   `yaml:"name"`
	Sources        string   `yaml:"sources"`
	Instructions   string   `yaml:"instructions"`
	Variation      string   `yaml:"variation"`
	FallbackThemes []string `yaml:"fallbackThemes"`
	// MaxSources caps how many items the lane receives. Zero means no cap.
	MaxSources int `yaml:"maxSources"`
}

type laneFile struct {
	Lanes []LaneDefinition `yaml:"lanes"`
}

//go:embed lanes.yaml
var defaultLanes []byte

// LoadLaneDefinitions reads lane definitions from path, or the built-in set
// when path is empty.
func LoadLaneDefinitions(path string) ([]LaneDefinition, error) {
	raw := defaultLanes
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("social: read lanes file: %w", err)
		}
		raw = b
	}
	return ParseLaneDefinitions(raw)
}

// ParseLaneDefinitions decodes and validates a lanes document.
func ParseLaneDefinitions(raw []byte) ([]LaneDefinition, error) {
	var f laneFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("social: decode lanes: %w", err)
	}
	if len(f.Lanes) == 0 {
		return nil, fmt.Errorf("social: no lanes defined")
	}
	seen := map[string]struct{}{}
	for i, l := range f.Lanes {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			return nil, fmt.Errorf("social: lane %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("social: duplicate lane %q", name)
		}
		seen[name] = struct{}{}
		switch l.Sources {
		case SourceBlog, SourceChangelog, SourceMixed:
		default:
			return nil, fmt.Errorf("social: lane %q has unknown sources %q", name, l.Sources)
		}
		f.Lanes[i].Name = name
	}
	return f.Lanes, nil
}
