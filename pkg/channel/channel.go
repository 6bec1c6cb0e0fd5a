// Package channel maps CUDA toolkit versions to PyTorch wheel channels.
//
// The mapping is a best-effort compatibility heuristic: versions outside the
// known ranges fall back to the nearest known channel, which is not
// guaranteed to work on the machine.
package channel

import (
	"fmt"
	"regexp"

	"k8s.io/apimachinery/pkg/util/version"
)

// Tag identifies a PyTorch wheel index.
type Tag string

const (
	TagCPU   Tag = "cpu"
	TagCU118 Tag = "cu118"
	TagCU121 Tag = "cu121"
	TagCU124 Tag = "cu124"

	// TagNewest is used for versions newer than (or unknown to) the table.
	TagNewest = TagCU124
	// TagOldest is used for 11.x versions that are not in the table.
	TagOldest = TagCU118
)

// IsCPU returns true if the tag selects CPU-only wheels.
func (t Tag) IsCPU() bool {
	return t == TagCPU
}

const (
	// DefaultIndexBaseURL is the PyTorch wheel index root.
	DefaultIndexBaseURL = "https://download.pytorch.org/whl"
)

// IndexURL returns the package index location for the tag.
func IndexURL(tag Tag) string {
	if tag.IsCPU() || tag == "" {
		return DefaultIndexBaseURL + "/cpu"
	}
	return fmt.Sprintf("%s/%s", DefaultIndexBaseURL, tag)
}

// Selection is the result of mapping a version to a tag.
type Selection struct {
	// Version is the normalized "major.minor" version, empty for CPU.
	Version string `json:"version,omitempty"`
	Tag     Tag    `json:"tag"`
	// Warning is set when a fallback rule chose the tag.
	Warning string `json:"warning,omitempty"`
}

// versionRange matches versions in [min, max).
type versionRange struct {
	min *version.Version
	max *version.Version
	tag Tag
}

func (r versionRange) contains(v *version.Version) bool {
	return v.AtLeast(r.min) && v.LessThan(r.max)
}

// Ordered; the first matching range wins.
var table = []versionRange{
	{min: version.MustParseGeneric("11.6"), max: version.MustParseGeneric("11.9"), tag: TagCU118},
	{min: version.MustParseGeneric("12.0"), max: version.MustParseGeneric("12.2"), tag: TagCU121},
	{min: version.MustParseGeneric("12.2"), max: version.MustParseGeneric("12.7"), tag: TagCU124},
}

var majorMinorRegex = regexp.MustCompile(`^\s*v?(\d+)\.(\d+)`)

// MajorMinor extracts the "major.minor" prefix, e.g., "12.1.105" -> "12.1".
// Returns false if the string does not start with a "major.minor" version.
func MajorMinor(s string) (string, bool) {
	m := majorMinorRegex.FindStringSubmatch(s)
	if len(m) != 3 {
		return "", false
	}
	return m[1] + "." + m[2], true
}

// Select maps a CUDA version string to a channel tag.
// An empty version selects the CPU channel.
func Select(cudaVersion string) Selection {
	if cudaVersion == "" {
		return Selection{Tag: TagCPU}
	}

	mm, ok := MajorMinor(cudaVersion)
	if !ok {
		return unrecognized(cudaVersion)
	}

	// the regex admits components apimachinery rejects (e.g., "012", overflow)
	v, err := version.ParseGeneric(mm)
	if err != nil {
		return unrecognized(cudaVersion)
	}
	for _, r := range table {
		if r.contains(v) {
			return Selection{Version: mm, Tag: r.tag}
		}
	}

	if v.Major() == 11 {
		return Selection{
			Version: mm,
			Tag:     TagOldest,
			Warning: fmt.Sprintf("CUDA %s is old and not explicitly supported, using channel %s", mm, TagOldest),
		}
	}
	return Selection{
		Version: mm,
		Tag:     TagNewest,
		Warning: fmt.Sprintf("CUDA %s is not supported, attempting channel %s anyway", mm, TagNewest),
	}
}

func unrecognized(cudaVersion string) Selection {
	return Selection{
		Version: cudaVersion,
		Tag:     TagNewest,
		Warning: fmt.Sprintf("unrecognized CUDA version %q, attempting the newest supported channel %s", cudaVersion, TagNewest),
	}
}
