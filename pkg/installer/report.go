package installer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/leptonai/torchup/pkg/cuda"
	"github.com/leptonai/torchup/pkg/host"
	"github.com/leptonai/torchup/pkg/validation"
)

// Report summarizes one run, from detection to verification.
type Report struct {
	RunID string    `json:"run_id"`
	Host  host.Info `json:"host"`

	// Detected is nil when detection was skipped or found nothing.
	Detected *cuda.Result   `json:"detected,omitempty"`
	Attempts []cuda.Attempt `json:"attempts,omitempty"`

	Plan   *Plan `json:"plan"`
	DryRun bool  `json:"dry_run"`

	// Disk is nil when the free space could not be read.
	Disk *validation.DiskRequirements `json:"disk,omitempty"`

	StartedAt time.Time `json:"started_at"`
	// Elapsed is the humanized install duration, empty in dry-run.
	Elapsed string `json:"elapsed,omitempty"`

	Verification *Verification `json:"verification,omitempty"`
}

// SetElapsed records the install duration relative to StartedAt.
func (r *Report) SetElapsed(now time.Time) {
	r.Elapsed = strings.TrimSpace(humanize.RelTime(r.StartedAt, now, "", ""))
}

func (r *Report) RenderTable(wr io.Writer) {
	if r == nil {
		return
	}

	table := tablewriter.NewWriter(wr)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)

	table.Append([]string{"Host", r.Host.String()})
	for _, a := range r.Attempts {
		table.Append([]string{"Probe " + a.Probe, attemptString(a)})
	}

	if r.Plan != nil {
		ch := string(r.Plan.Channel.Tag)
		if r.Plan.Channel.Version != "" {
			ch = fmt.Sprintf("%s (CUDA %s)", ch, r.Plan.Channel.Version)
		}
		table.Append([]string{"Channel", ch})
		table.Append([]string{"Index URL", r.Plan.IndexURL})
		table.Append([]string{"Environment", r.Plan.Target.String()})
		table.Append([]string{"Packages", strings.Join(r.Plan.Packages, " ")})
		table.Append([]string{"Command", r.Plan.String()})
	}
	if r.Disk != nil {
		table.Append([]string{"Free Disk", fmt.Sprintf("%s at %s", r.Disk.FormatFreeHumanized(), r.Disk.Path)})
	}
	if r.DryRun {
		table.Append([]string{"Dry Run", "true"})
	}
	if r.Elapsed != "" {
		table.Append([]string{"Install Time", r.Elapsed})
	}

	if v := r.Verification; v != nil {
		table.Append([]string{"Torch Version", v.TorchVersion})
		table.Append([]string{"CUDA Available", fmt.Sprintf("%v", v.CUDAAvailable)})
		if v.CUDAAvailable {
			table.Append([]string{"CUDA Runtime", v.CUDAVersion})
			table.Append([]string{"Devices", fmt.Sprintf("%d x %s", v.DeviceCount, v.DeviceName)})
		}
	}

	table.Render()
}

func attemptString(a cuda.Attempt) string {
	switch {
	case a.Skipped:
		return "skipped"
	case a.Version != "":
		return a.Version
	case a.Reason != "":
		return "not found: " + a.Reason
	}
	return "not found"
}
