package pinctrl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotInstalled is returned when the pinctrl binary cannot be found on PATH.
var ErrNotInstalled = errors.New("pinctrl: binary not found")

type PinState struct {
	Pin     int
	Mode    string // e.g., "ip", "op", "no"
	Pull    string // e.g., "pu", "pd", "pn"
	Drive   string // e.g., "dh", "dl", ""
	Level   string // e.g., "hi", "lo", "--"
	Comment string // full comment, typically includes // GPIO#
}

// Runner executes the pinctrl binary and returns its combined output.
type Runner func(args ...string) ([]byte, error)

var pinLineRegex = regexp.MustCompile(`^\s*(\d+):\s+(\S+)\s+(.*?)\s+\|\s+(\S+)\s+//\s+(.*GPIO(\d+).*)$`)

// Tool wraps the pinctrl command line utility.
type Tool struct {
	run Runner
}

func New() *Tool {
	return &Tool{run: execRunner}
}

// NewWithRunner builds a Tool whose commands go through run instead of exec.
func NewWithRunner(run Runner) *Tool {
	return &Tool{run: run}
}

func execRunner(args ...string) ([]byte, error) {
	path, err := exec.LookPath("pinctrl")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return exec.Command(path, args...).CombinedOutput()
}

// ReadAllPins returns the parsed result of `pinctrl get`, mapping each GPIO pin number to its PinState
func (t *Tool) ReadAllPins() (map[int]PinState, error) {
	out, err := t.run("get")
	if err != nil {
		return nil, fmt.Errorf("failed to execute pinctrl get: %w", err)
	}
	return parseGetOutput(bytes.NewReader(out))
}

// ReadLevel performs a fast read of the logic level of a pin using `pinctrl lev <pin>`
func (t *Tool) ReadLevel(pin int) (bool, error) {
	out, err := t.run("lev", strconv.Itoa(pin))
	if err != nil {
		return false, fmt.Errorf("failed to read level for pin %d: %w", pin, err)
	}
	return parseLevelOutput(string(out))
}

// SetPin applies one or more pinctrl set options to the specified GPIO pin
// Example: SetPin(10, "op", "pn", "dh") sets pin 10 as output, no pull, drive high
func (t *Tool) SetPin(pin int, opts ...string) error {
	args := append([]string{"set", strconv.Itoa(pin)}, opts...)
	out, err := t.run(args...)
	if err != nil {
		return fmt.Errorf("pinctrl set failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// DriveOutput configures pin as a push-pull output at the given level.
func (t *Tool) DriveOutput(pin int, high bool) error {
	drive := "dl"
	if high {
		drive = "dh"
	}
	return t.SetPin(pin, "op", "pn", drive)
}

func parseLevelOutput(output string) (bool, error) {
	trimmed := strings.TrimSpace(output)
	switch trimmed {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected output from pinctrl lev: %q", trimmed)
	}
}

func parseGetOutput(r io.Reader) (map[int]PinState, error) {
	result := make(map[int]PinState)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		matches := pinLineRegex.FindStringSubmatch(scanner.Text())
		if len(matches) != 7 {
			continue
		}

		index, _ := strconv.Atoi(matches[1])
		state := PinState{
			Pin:     index,
			Mode:    matches[2],
			Level:   matches[4],
			Comment: matches[5],
		}

		for _, opt := range strings.Fields(matches[3]) {
			if state.Pull == "" && (opt == "pu" || opt == "pd" || opt == "pn") {
				state.Pull = opt
			} else if state.Drive == "" && (opt == "dh" || opt == "dl") {
				state.Drive = opt
			}
		}

		result[state.Pin] = state
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning pinctrl output: %w", err)
	}
	return result, nil
}
