package install

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/leptonai/torchup/pkg/config"
	"github.com/leptonai/torchup/pkg/log"
)

// ParseConfig builds the configuration from the parsed flags.
// A value flag given without a value arrives here as the empty string.
func ParseConfig(cliContext *cli.Context) (*config.Config, error) {
	cfg := config.Default()

	cfg.UseUV = cliContext.Bool("uv")
	cfg.System = cliContext.Bool("system")
	cfg.CPUOnly = cliContext.Bool("cpu")
	cfg.DryRun = cliContext.Bool("dry-run")

	if cliContext.IsSet("venv") {
		cfg.CreateVenv = true
		cfg.VenvPath = strings.TrimSpace(cliContext.String("venv"))
		if cfg.VenvPath == "" {
			cfg.VenvPath = config.DefaultVenvPath
		}
		expanded, err := homedir.Expand(cfg.VenvPath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand venv path %q: %w", cfg.VenvPath, err)
		}
		cfg.VenvPath = expanded
	}

	if cliContext.IsSet("cuda") {
		cfg.CUDAOverride = strings.TrimSpace(cliContext.String("cuda"))
		if cfg.CUDAOverride == "" {
			log.Logger.Warnw("--cuda given without a version, detecting the CUDA version instead")
		}
	}

	for _, pkg := range []*config.Package{&cfg.Torch, &cfg.TorchVision, &cfg.TorchAudio} {
		if cliContext.IsSet(pkg.Name) {
			pkg.Version = strings.TrimSpace(cliContext.String(pkg.Name))
			if pkg.Version == "" {
				log.Logger.Warnw("version flag given without a value, installing the latest version", "package", pkg.Name)
			}
		}
		if cliContext.Bool("no-" + pkg.Name) {
			pkg.Install = false
		}
	}
	if cliContext.Bool("only-torch") {
		cfg.TorchVision.Install = false
		cfg.TorchAudio.Install = false
	}

	cfg.LogLevel = cliContext.String("log-level")
	cfg.LogFile = cliContext.String("log-file")
	cfg.OutputFormat = cliContext.String("output-format")
	cfg.ProbeTimeout = metav1.Duration{Duration: cliContext.Duration("probe-timeout")}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
