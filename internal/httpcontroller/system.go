package httpcontroller

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/eegstream/eegstream-go/internal/acqcore/devices"
	"github.com/eegstream/eegstream-go/internal/logger"
)

const systemInfoKey = "system_info"

// SystemInfo represents process and host resource usage
type SystemInfo struct {
	OS            string    `json:"os"`
	Architecture  string    `json:"architecture"`
	NumCPU        int       `json:"num_cpu"`
	GoVersion     string    `json:"go_version"`
	Goroutines    int       `json:"goroutines"`
	AppStart      time.Time `json:"app_start_time"`
	AppUptime     int64     `json:"app_uptime_seconds"`
	ProcessMemMB  float64   `json:"process_memory_mb"`
	ProcessCPU    float64   `json:"process_cpu_percent"`
	MemoryTotal   uint64    `json:"memory_total"`
	MemoryUsed    uint64    `json:"memory_used"`
	MemoryPercent float64   `json:"memory_usage_percent"`
}

// DevicesResponse lists supported device types and capture hardware
type DevicesResponse struct {
	Types        []string                `json:"types"`
	Capture      []devices.CaptureDevice `json:"capture"`
	CaptureError string                  `json:"capture_error,omitempty"`
}

// GetSystemInfo handles GET /api/v1/system. Results are cached briefly since
// CPU sampling is comparatively slow.
func (s *Server) GetSystemInfo(c echo.Context) error {
	if cached, ok := s.cache.Get(systemInfoKey); ok {
		return c.JSON(http.StatusOK, cached)
	}

	info := SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
		Goroutines:   runtime.NumGoroutine(),
		AppStart:     s.started,
		AppUptime:    int64(time.Since(s.started).Seconds()),
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := p.MemoryInfo(); err == nil {
			info.ProcessMemMB = float64(memInfo.RSS) / 1024 / 1024
		}
		if cpuPercent, err := p.CPUPercent(); err == nil {
			info.ProcessCPU = cpuPercent
		}
	} else {
		s.logger.Debug("failed to inspect own process", logger.Error(err))
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotal = vm.Total
		info.MemoryUsed = vm.Used
		info.MemoryPercent = vm.UsedPercent
	}

	s.cache.Set(systemInfoKey, info, cache.DefaultExpiration)
	return c.JSON(http.StatusOK, info)
}

// GetDevices handles GET /api/v1/devices. Enumeration failures are reported
// in the body since headless hosts often have no audio backend.
func (s *Server) GetDevices(c echo.Context) error {
	resp := DevicesResponse{Types: devices.Types(), Capture: []devices.CaptureDevice{}}
	capture, err := s.deps.ListCaptureDevices()
	if err != nil {
		resp.CaptureError = err.Error()
	} else if capture != nil {
		resp.Capture = capture
	}
	return c.JSON(http.StatusOK, resp)
}
