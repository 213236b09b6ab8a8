package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"subpilot/internal/config"
	"subpilot/internal/services"
	"subpilot/internal/services/subtitler"
)

const serviceCheckTimeout = 10 * time.Second

// CheckService verifies the transcription service answers its system-info
// endpoint and reports the device and model count it advertises.
func CheckService(ctx context.Context, cfg *config.Config) Result {
	const name = "Transcription service"

	client, err := subtitler.NewClient(subtitler.Config{
		BaseURL:        cfg.Service.BaseURL,
		RequestTimeout: cfg.RequestTimeout(),
	})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
	defer cancel()

	caps, err := client.Capabilities(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeServiceError(cfg.Service.BaseURL, err)}
	}
	device := caps.Device
	if device == "" {
		device = "unknown device"
	}
	if caps.CUDAAvailable && caps.GPUName != "" {
		device = caps.GPUName
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%s, %d models, %d languages)", cfg.Service.BaseURL, device, len(caps.Models), len(caps.SupportedLanguages)),
	}
}

// CheckNotifications reports whether ntfy notifications are configured. It
// never fails; notifications are optional.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"

	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Optional: true, Detail: "Disabled"}
	}
	return Result{Name: name, Optional: true, Passed: true, Detail: topic}
}

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

// summarizeServiceError produces a human-readable summary for service check failures.
func summarizeServiceError(baseURL string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s (timed out)", baseURL)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("%s (timed out)", baseURL)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("%s (unreachable: %v)", baseURL, opErr.Err)
	}
	if errors.Is(err, services.ErrNotFound) {
		return fmt.Sprintf("%s (system-info endpoint missing; is this a subtitle service?)", baseURL)
	}
	return fmt.Sprintf("%s (%v)", baseURL, err)
}
