// Package install implements the torchup install action.
package install

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"

	cmdcommon "github.com/leptonai/torchup/cmd/torchup/common"
	"github.com/leptonai/torchup/pkg/channel"
	"github.com/leptonai/torchup/pkg/config"
	"github.com/leptonai/torchup/pkg/cuda"
	"github.com/leptonai/torchup/pkg/file"
	"github.com/leptonai/torchup/pkg/host"
	pkginstaller "github.com/leptonai/torchup/pkg/installer"
	"github.com/leptonai/torchup/pkg/log"
	"github.com/leptonai/torchup/pkg/pyenv"
	"github.com/leptonai/torchup/pkg/validation"
)

func Command(cliContext *cli.Context) error {
	if cliContext.NArg() > 0 {
		return fmt.Errorf("unexpected arguments %q (all options are flags, see --help)", []string(cliContext.Args()))
	}

	zapLvl, err := log.ParseLogLevel(cliContext.String("log-level"))
	if err != nil {
		return err
	}
	logFile := cliContext.String("log-file")
	log.Logger = log.CreateLogger(zapLvl, logFile, cliContext.App.ErrWriter)
	defer func() {
		_ = log.Logger.Sync()
	}()

	log.Logger.Debugw("starting install command")

	cfg, err := ParseConfig(cliContext)
	if err != nil {
		return err
	}

	outputFormat, err := cmdcommon.ParseOutputFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}

	records := log.NewNopRecordLogger()
	if logFile != "" {
		records = log.NewRecordLogger(log.CreateRecordFilepath(logFile))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer cancel()

	out := cliContext.App.Writer
	if out == nil {
		out = os.Stdout
	}
	return newRunner(cfg, outputFormat, out, records).run(ctx)
}

// runner drives one invocation, from detection to verification.
type runner struct {
	cfg          *config.Config
	outputFormat string
	out          io.Writer
	records      log.RecordLogger

	// receives the installer output
	installOut *os.File

	locateExecutable func(string) (string, error)
	probes           []cuda.Probe
	platformSupport  func() bool
	loadHost         func(context.Context) host.Info
	resolveOpts      []pyenv.OpOption
	checkDisk        func(context.Context, string, channel.Tag) (validation.DiskRequirements, error)
	install          func(context.Context, *pkginstaller.Plan, *os.File) error
	verify           func(context.Context, *pyenv.Target) (*pkginstaller.Verification, error)
}

func newRunner(cfg *config.Config, outputFormat string, out io.Writer, records log.RecordLogger) *runner {
	r := &runner{
		cfg:          cfg,
		outputFormat: outputFormat,
		out:          out,
		records:      records,

		installOut: os.Stdout,

		locateExecutable: file.LocateExecutable,
		platformSupport:  cuda.PlatformSupported,
		loadHost:         host.Load,
		checkDisk:        validation.GetDiskRequirements,
		install:          pkginstaller.Run,
		verify: func(ctx context.Context, target *pyenv.Target) (*pkginstaller.Verification, error) {
			return pkginstaller.Verify(ctx, target, pyenv.RunPython)
		},
	}
	if outputFormat != cmdcommon.OutputFormatPlain {
		// keep stdout parseable
		r.installOut = os.Stderr
	}
	return r
}

func (r *runner) run(ctx context.Context) error {
	cfg := r.cfg

	report := &pkginstaller.Report{
		RunID:  uuid.New().String(),
		Host:   r.loadHost(ctx),
		DryRun: cfg.DryRun,
	}
	log.Logger.Debugw("host", "host", report.Host.String(), "runID", report.RunID)

	uvPath := ""
	if cfg.UseUV {
		p, err := r.locateExecutable("uv")
		if err != nil {
			return pkginstaller.ErrUVNotFound
		}
		uvPath = p
	}

	sel := channel.Select(r.cudaVersion(ctx, report))
	if sel.Warning != "" {
		log.Logger.Warnw(sel.Warning)
	}
	log.Logger.Infow("selected channel", "tag", sel.Tag, "cudaVersion", sel.Version)

	opts := append([]pyenv.OpOption{pyenv.WithUV(uvPath)}, r.resolveOpts...)
	target, err := pyenv.Resolve(ctx, cfg, opts...)
	if err != nil {
		return err
	}

	plan, err := pkginstaller.Build(cfg, sel, target, uvPath)
	if err != nil {
		return err
	}
	report.Plan = plan

	if req, err := r.checkDisk(ctx, diskPath(target), sel.Tag); err != nil {
		log.Logger.Warnw("failed to check free disk space", "error", err)
	} else {
		report.Disk = &req
		if err := req.Check(); err != nil {
			log.Logger.Warnw("install may fail", "error", err)
		}
	}

	recordOpts := []log.RecordOption{
		log.WithRunID(report.RunID),
		log.WithCommand(plan.String()),
		log.WithChannel(string(sel.Tag)),
		log.WithTarget(target.String()),
	}
	r.records.Record(append(recordOpts, log.WithStage(log.StagePlanned))...)

	if r.outputFormat == cmdcommon.OutputFormatPlain {
		fmt.Fprintln(r.out, plan.String())
	}
	if cfg.DryRun {
		log.Logger.Infow("dry-run, not running the install command")
		return r.writeReport(report)
	}

	report.StartedAt = time.Now()
	if err := r.install(ctx, plan, r.installOut); err != nil {
		r.records.Record(append(recordOpts, log.WithStage(log.StageFailed), log.WithData(err.Error()))...)
		return err
	}
	report.SetElapsed(time.Now())
	r.records.Record(append(recordOpts, log.WithStage(log.StageInstalled), log.WithData(report.Elapsed))...)

	v, err := r.verify(ctx, target)
	report.Verification = v
	if err != nil {
		r.records.Record(append(recordOpts, log.WithStage(log.StageFailed), log.WithData(err.Error()))...)
		return err
	}
	r.records.Record(append(recordOpts, log.WithStage(log.StageVerified), log.WithData(v))...)

	if r.outputFormat == cmdcommon.OutputFormatPlain {
		fmt.Fprintf(r.out, "%s successfully installed %s\n", cmdcommon.CheckMark, v.TorchVersion)
	}
	return r.writeReport(report)
}

// cudaVersion returns the CUDA version to select the channel with,
// empty for the CPU build.
func (r *runner) cudaVersion(ctx context.Context, report *pkginstaller.Report) string {
	cfg := r.cfg
	switch {
	case cfg.CPUOnly:
		if cfg.CUDAOverride != "" {
			log.Logger.Warnw("--cpu takes precedence over --cuda", "cuda", cfg.CUDAOverride)
		}
		return ""

	case cfg.CUDAOverride != "":
		log.Logger.Infow("using cuda version override", "version", cfg.CUDAOverride)
		return cfg.CUDAOverride

	case !r.platformSupport():
		log.Logger.Warnw("cuda builds are not available on this platform, installing the cpu build", "os", runtime.GOOS)
		return ""
	}

	probes := r.probes
	if probes == nil {
		probes = cuda.DefaultProbes()
	}
	res, attempts := cuda.Detect(ctx, probes, cfg.ProbeTimeout.Duration)
	report.Detected = res
	report.Attempts = attempts
	if res == nil {
		log.Logger.Warnw("no cuda version detected, installing the cpu build")
		return ""
	}
	return res.Version
}

// diskPath returns where the packages land, the root file system for the system interpreter.
func diskPath(target *pyenv.Target) string {
	if target.Path != "" {
		return target.Path
	}
	return "/"
}

func (r *runner) writeReport(report *pkginstaller.Report) error {
	switch r.outputFormat {
	case cmdcommon.OutputFormatPlain:
		if !report.DryRun {
			report.RenderTable(r.out)
		}
		return nil
	default:
		return cmdcommon.Write(r.out, r.outputFormat, report)
	}
}
