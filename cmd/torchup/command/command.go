// Package command defines the torchup command-line interface.
package command

import (
	"github.com/urfave/cli"

	cmdinstall "github.com/leptonai/torchup/cmd/torchup/install"
	"github.com/leptonai/torchup/pkg/config"
	"github.com/leptonai/torchup/version"
)

const usage = `
# to install torch, torchvision and torchaudio into a new virtual environment
torchup --venv

# to preview the install command for CUDA 12.1 without running it
torchup --cuda 12.1 --dry-run

# to install a pinned CPU-only torch with uv
torchup --uv --cpu --only-torch --torch 2.4.0 --venv ~/envs/torch
`

func App() *cli.App {
	app := cli.NewApp()

	app.Name = "torchup"
	app.Version = version.Version
	app.Usage = usage
	app.Description = "installs a PyTorch build matched to the host CUDA toolkit"

	app.Action = cmdinstall.Command
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "uv",
			Usage: "install with 'uv pip' instead of pip (uv must be installed)",
		},
		&cli.BoolFlag{
			Name:  "system",
			Usage: "allow installing into the system interpreter when no environment is active",
		},
		&cli.StringFlag{
			Name:  "venv",
			Usage: "create (if absent) and install into a virtual environment at the path (default: " + config.DefaultVenvPath + " when no path is given)",
		},
		&cli.StringFlag{
			Name:  "cuda",
			Usage: "use the CUDA version instead of detecting it (e.g., 12.1)",
		},
		&cli.BoolFlag{
			Name:  "cpu",
			Usage: "install the CPU-only build regardless of the CUDA version",
		},

		&cli.StringFlag{
			Name:  config.PackageTorch,
			Usage: "pin the torch version (e.g., 2.4.0)",
		},
		&cli.StringFlag{
			Name:  config.PackageTorchVision,
			Usage: "pin the torchvision version",
		},
		&cli.StringFlag{
			Name:  config.PackageTorchAudio,
			Usage: "pin the torchaudio version",
		},
		&cli.BoolFlag{
			Name:  "no-torch",
			Usage: "do not install torch",
		},
		&cli.BoolFlag{
			Name:  "no-torchvision",
			Usage: "do not install torchvision",
		},
		&cli.BoolFlag{
			Name:  "no-torchaudio",
			Usage: "do not install torchaudio",
		},
		&cli.BoolFlag{
			Name:  "only-torch",
			Usage: "install torch only (same as --no-torchvision --no-torchaudio)",
		},

		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "print the install command without running it",
		},
		&cli.DurationFlag{
			Name:  "probe-timeout",
			Usage: "set the timeout for each CUDA detection probe",
			Value: config.DefaultProbeTimeout,
		},

		&cli.StringFlag{
			Name:  "log-level,l",
			Usage: "set the logging level [debug, info, warn, error, fatal, panic, dpanic]",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "set the log file path (set empty to stderr), install history is written next to it",
		},
		&cli.StringFlag{
			Name:  "output-format,o",
			Usage: "set the output format [plain, json, yaml]",
			Value: "plain",
		},
	}

	return app
}
