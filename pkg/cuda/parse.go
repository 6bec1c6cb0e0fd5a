package cuda

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"k8s.io/apimachinery/pkg/util/version"

	"github.com/leptonai/torchup/pkg/channel"
)

var (
	// e.g.,
	// nvcc: NVIDIA (R) Cuda compiler driver
	// Cuda compilation tools, release 12.1, V12.1.105
	nvccReleaseRegex = regexp.MustCompile(`release\s+(\d+\.\d+)`)

	// e.g.,
	// | NVIDIA-SMI 535.98                 Driver Version: 535.98       CUDA Version: 12.2     |
	smiCUDAVersionRegex = regexp.MustCompile(`CUDA Version:\s*(\d+\.\d+)`)

	// e.g.,
	// CUDA Version 11.8.89
	versionTxtRegex = regexp.MustCompile(`CUDA Version\s+(\d+\.\d+)`)

	// e.g.,
	// 	libcudart.so.12.1 (libc6,x86-64) => /usr/local/cuda/lib64/libcudart.so.12.1
	ldconfigCudartRegex = regexp.MustCompile(`libcudart\.so\.(\d+\.\d+)`)
)

// Path of the toolkit version inside "version.json".
// e.g., {"cuda": {"name": "CUDA SDK", "version": "12.2.20230823"}}
const versionJSONPath = "$.cuda.version"

// ParseNVCCOutput extracts the toolkit version from "nvcc --version".
func ParseNVCCOutput(b []byte) (string, bool) {
	return firstSubmatch(nvccReleaseRegex, b)
}

// ParseSMIOutput extracts the CUDA version reported in the "nvidia-smi" header,
// which is the highest version the installed driver supports.
func ParseSMIOutput(b []byte) (string, bool) {
	return firstSubmatch(smiCUDAVersionRegex, b)
}

// ParseVersionTxt extracts the version from the toolkit's "version.txt" file.
func ParseVersionTxt(b []byte) (string, bool) {
	return firstSubmatch(versionTxtRegex, b)
}

// ParseVersionJSON extracts the "major.minor" version from the toolkit's "version.json" file.
// Returns an empty string and no error if the version key is missing.
func ParseVersionJSON(b []byte) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return "", fmt.Errorf("failed to decode version.json: %w", err)
	}

	v, err := jsonpath.Get(versionJSONPath, doc)
	if err != nil {
		if strings.Contains(err.Error(), "unknown key") {
			return "", nil
		}
		return "", err
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected type %T for %s", v, versionJSONPath)
	}
	mm, ok := channel.MajorMinor(s)
	if !ok {
		return "", fmt.Errorf("malformed version %q in version.json", s)
	}
	return mm, nil
}

// ParseLdconfigOutput returns the highest "major.minor" libcudart version
// listed by "ldconfig -p".
// Major-only sonames (e.g., "libcudart.so.12") carry no minor version
// and are ignored.
func ParseLdconfigOutput(b []byte) (string, bool) {
	var highest *version.Version
	for _, m := range ldconfigCudartRegex.FindAllSubmatch(b, -1) {
		v, err := version.ParseGeneric(string(m[1]))
		if err != nil {
			continue
		}
		if highest == nil || highest.LessThan(v) {
			highest = v
		}
	}
	if highest == nil {
		return "", false
	}
	return fmt.Sprintf("%d.%d", highest.Major(), highest.Minor()), true
}

func firstSubmatch(re *regexp.Regexp, b []byte) (string, bool) {
	m := re.FindSubmatch(b)
	if len(m) != 2 {
		return "", false
	}
	return string(m[1]), true
}
