package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/config"
	"github.com/thatsimonsguy/sprinkler-controller/internal/gpio"
	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
)

// BootScript renders a bash script that drives every zone pin to its
// inactive level, so valves stay closed between power-on and the daemon.
func BootScript(zones []model.Zone, activeHigh bool) string {
	var lines []string
	lines = append(lines, "#!/bin/bash", "", "# Sprinkler GPIO pin configuration at boot", "")

	for _, z := range zones {
		pin := model.GPIOPin{Number: z.Pin, ActiveHigh: activeHigh}
		drive := "dl"
		if gpio.Level(pin, false) {
			drive = "dh"
		}
		lines = append(lines, fmt.Sprintf("# %s", z.Name))
		lines = append(lines, fmt.Sprintf("pinctrl set %d op pn %s", pin.Number, drive))
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n") + "\n"
}

func WriteStartupScript(path string, zones []model.Zone, activeHigh bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating boot script directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(BootScript(zones, activeHigh)), 0755); err != nil {
		return fmt.Errorf("writing boot script: %w", err)
	}
	log.Info().Str("path", path).Int("zones", len(zones)).Msg("Boot script written")
	return nil
}

func GPIOServiceUnit(cfg config.InstallConfig) string {
	return fmt.Sprintf(`[Unit]
Description=Close sprinkler valves at boot
After=network.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=multi-user.target
`, cfg.BootScriptPath)
}

func MainServiceUnit(cfg config.InstallConfig) string {
	gpioUnitName := filepath.Base(cfg.GPIOServicePath)

	return fmt.Sprintf(`[Unit]
Description=Sprinkler controller daemon
After=%s
Requires=%s

[Service]
Type=simple
User=%s
WorkingDirectory=%s
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, gpioUnitName, gpioUnitName, cfg.User, cfg.WorkingDir, cfg.ExecStart)
}

func InstallStartupService(cfg config.InstallConfig) error {
	return writeUnit(cfg.GPIOServicePath, GPIOServiceUnit(cfg))
}

func InstallSprinklerService(cfg config.InstallConfig) error {
	return writeUnit(cfg.MainServicePath, MainServiceUnit(cfg))
}

func writeUnit(path, contents string) error {
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		return fmt.Errorf("writing unit %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("systemd unit written")
	return nil
}

// runScript is swapped out in tests.
var runScript = func(path string) error {
	cmd := exec.Command("/bin/bash", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func RunStartupScript(path string) error {
	return runScript(path)
}
