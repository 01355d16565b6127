package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// Resources is a point-in-time view of the host the runner schedules shots on.
type Resources struct {
	LogicalCPUs     int     `yaml:"logical_cpus"`
	PhysicalCPUs    int     `yaml:"physical_cpus"`
	TotalMemory     uint64  `yaml:"total_memory"`
	AvailableMemory uint64  `yaml:"available_memory"`
	MemoryUsed      float64 `yaml:"memory_used_percent"`
}

// Snapshot reads CPU and memory figures. Fields that cannot be read are left at zero,
// except LogicalCPUs, which falls back to runtime.NumCPU.
func Snapshot() Resources {
	r := Resources{LogicalCPUs: runtime.NumCPU()}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		r.LogicalCPUs = n
	}
	if n, err := cpu.Counts(false); err == nil {
		r.PhysicalCPUs = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		r.TotalMemory = vm.Total
		r.AvailableMemory = vm.Available
		r.MemoryUsed = vm.UsedPercent
	}
	return r
}

// RecommendedWorkers picks how many shots to process at once. A positive request wins.
// Otherwise one worker per logical CPU, capped so that perWorkerBytes of working set per
// worker fits in half of the available memory.
func RecommendedWorkers(requested int, perWorkerBytes uint64) int {
	if requested > 0 {
		return requested
	}
	return workersFor(Snapshot(), perWorkerBytes)
}

func workersFor(r Resources, perWorkerBytes uint64) int {
	workers := r.LogicalCPUs
	if perWorkerBytes > 0 && r.AvailableMemory > 0 {
		byMemory := int((r.AvailableMemory / 2) / perWorkerBytes)
		if byMemory < workers {
			workers = byMemory
		}
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// InitResourceLimits raises the open-file limit so that wide frame dumps and parallel
// encoders do not run out of descriptors.
func InitResourceLimits(logger *logrus.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.WithError(err).Warn("could not read open-file limit")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.WithError(err).Warn("could not raise open-file limit")
		return
	}
	logger.WithField("nofile", rLimit.Cur).Debug("open-file limit raised")
}

// PlanExtensions are the file types FindLatestPlan considers.
var PlanExtensions = []string{".yaml", ".yml", ".toml"}

// FindLatestPlan returns the most recently modified plan file in dir.
func FindLatestPlan(dir string) (string, error) {
	return findLatest(dir, PlanExtensions, "plan")
}

// FindLatestKeyframe returns the most recently modified keyframe image or PDF in dir.
func FindLatestKeyframe(dir string) (string, error) {
	return findLatest(dir, []string{".png", ".jpg", ".jpeg", ".webp", ".pdf"}, "keyframe")
}

func findLatest(dir string, extensions []string, kind string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExtension(f.Name(), extensions) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files found in %s", kind, dir)
	}

	return latestFile, nil
}

func hasExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// GetBestH264Encoder returns the first hardware H.264 encoder ffmpeg reports, falling back
// to libx264.
func GetBestH264Encoder(ctx context.Context) string {
	// VideoToolbox on macOS, then NVENC, then software.
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}
