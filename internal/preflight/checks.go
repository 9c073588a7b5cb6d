package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"splicer/internal/config"
	"splicer/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external programs named by the configuration.
// The denoise tools are only checked when steps.noiser is set without a
// track condition.
func CheckSystemDeps(engine *config.Engine) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     engine.FFmpegBinary(),
			Description: "Required for every audio and video stage",
		},
		{
			Name:        "FFprobe",
			Command:     engine.FFprobeBinary(),
			Description: "Required for demux and clip frame-rate detection",
		},
	}
	if noiser, ok := engine.Noiser(""); ok {
		requirements = append(requirements, deps.Requirement{
			Name:        "Denoiser",
			Command:     engine.DenoiseBinary(noiser),
			Description: "Noise reduction via steps.noiser=" + noiser,
		})
		requirements = append(requirements, deps.Requirement{
			Name:        "Noise learner",
			Command:     engine.FindNoiseBinary(),
			Description: "Learns noise profiles when steps.noiserlearn is set",
			Optional:    !engine.Bool("steps.noiserlearn", ""),
		})
	}
	return deps.CheckBinaries(requirements)
}

// CheckConfiguration reports the outcome of Engine.Validate.
func CheckConfiguration(engine *config.Engine) Result {
	const name = "Configuration"
	if err := engine.Validate(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	sources := engine.Sources()
	if len(sources) == 0 {
		return Result{Name: name, Passed: true, Detail: "embedded defaults"}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(sources, ", ")}
}
