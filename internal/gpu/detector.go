// Package gpu performs a best-effort acceleration preflight for the
// gpu-nvidia and gpu-amd profiles. NVML and toolkit detection never gate
// launch: the container engine is the actual enforcer of GPU availability
// at container start. HostSupportsAMD is the one check launch rejects a
// profile on.
package gpu

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/local-ai-packaged/orchestrator/internal/logging"
)

// Detector probes for an NVIDIA GPU and driver via NVML.
type Detector struct {
	nvml   NVMLInterface
	logger *logging.Logger
}

// NewDetector creates a detector backed by the real NVML loader.
func NewDetector(logger *logging.Logger) *Detector {
	return &Detector{
		nvml:   NewRealNVML(),
		logger: logger,
	}
}

// NewDetectorWithNVML creates a detector with a custom NVML interface (for testing).
func NewDetectorWithNVML(nvmlInterface NVMLInterface, logger *logging.Logger) *Detector {
	return &Detector{
		nvml:   nvmlInterface,
		logger: logger,
	}
}

// DetectGPUs performs GPU detection and returns a report. Any NVML failure
// is captured in the report rather than returned as an error — detection
// is diagnostic, not a precondition for launch.
func (d *Detector) DetectGPUs() GPUReport {
	d.logger.Info("gpu.detect.start", "Starting GPU detection", nil)

	report := GPUReport{
		GPUs: make([]GPUInfo, 0),
	}

	ret := d.nvml.Init()
	if ret != nvml.SUCCESS {
		report.NVMLOk = false
		report.ErrorMessage = fmt.Sprintf("failed to initialize NVML: %s", nvml.ErrorString(ret))
		d.logger.Warn("gpu.nvml.init.failed", "NVML initialization failed", map[string]interface{}{
			"error": report.ErrorMessage,
		})
		return report
	}
	defer d.nvml.Shutdown()

	report.NVMLOk = true

	if driverVersion, ret := d.nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		report.DriverVersion = driverVersion
	} else {
		d.logger.Warn("gpu.driver.version.failed", "Failed to get driver version", map[string]interface{}{
			"error": nvml.ErrorString(ret),
		})
	}

	if cudaVersion, ret := d.nvml.SystemGetCudaDriverVersion(); ret == nvml.SUCCESS {
		report.CUDAVersion = cudaVersion
	} else {
		d.logger.Warn("gpu.cuda.version.failed", "Failed to get CUDA version", map[string]interface{}{
			"error": nvml.ErrorString(ret),
		})
	}

	count, ret := d.nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		report.ErrorMessage = fmt.Sprintf("failed to get device count: %s", nvml.ErrorString(ret))
		d.logger.Warn("gpu.device.count.failed", "Failed to get GPU count", map[string]interface{}{
			"error": report.ErrorMessage,
		})
		return report
	}

	d.logger.Info("gpu.device.count", "Found GPU devices", map[string]interface{}{
		"count": count,
	})

	for i := 0; i < count; i++ {
		device, ret := d.nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			d.logger.Warn("gpu.device.handle.failed", "Failed to get device handle", map[string]interface{}{
				"index": i,
				"error": nvml.ErrorString(ret),
			})
			continue
		}

		info := GPUInfo{Index: i}
		if name, ret := device.GetName(); ret == nvml.SUCCESS {
			info.Name = name
		}
		if uuid, ret := device.GetUUID(); ret == nvml.SUCCESS {
			info.UUID = uuid
		}
		if mem, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
			info.MemoryMB = mem.Total / (1024 * 1024)
		}

		report.GPUs = append(report.GPUs, info)
		d.logger.Info("gpu.device.detected", "GPU device detected", map[string]interface{}{
			"index":     i,
			"name":      info.Name,
			"uuid":      info.UUID,
			"memory_mb": info.MemoryMB,
		})
	}

	return report
}

// SaveReport saves the GPU report to a JSON file.
func (d *Detector) SaveReport(report GPUReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	d.logger.Info("gpu.report.saved", "GPU report saved", map[string]interface{}{
		"path": path,
	})

	return nil
}

// HostSupportsAMD reports whether the current host is a Linux-family host,
// the only family the gpu-amd profile supports. Isolated here per the
// platform-detection guidance: no other package branches on GOOS.
func HostSupportsAMD() bool {
	return runtime.GOOS == "linux"
}
