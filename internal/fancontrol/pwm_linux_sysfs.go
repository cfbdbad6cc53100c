//go:build linux

package fancontrol

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// sysfsPWM drives one hardware PWM channel via /sys/class/pwm.
//
// On a Raspberry Pi this needs `dtoverlay=pwm` or `dtoverlay=pwm-2chan` in
// config.txt so the channel shows up under a pwmchip.
type sysfsPWM struct {
	chipPath string // /sys/class/pwm/pwmchipN
	pwmPath  string // /sys/class/pwm/pwmchipN/pwmM
	channel  int

	periodNS uint64
	enabled  bool
}

var pwmSysfsBase = "/sys/class/pwm"

// defaultPeriodNS is used when SetFrequencyHz was never called (25 kHz, the
// usual 4-wire fan PWM frequency).
const defaultPeriodNS = 1_000_000_000 / 25_000

func openSysfsPWM(chip, channel int) (pwmDriver, error) {
	if channel < 0 {
		return nil, fmt.Errorf("fancontrol: invalid pwm channel %d", channel)
	}

	var chipPath string
	if chip >= 0 {
		chipPath = filepath.Join(pwmSysfsBase, fmt.Sprintf("pwmchip%d", chip))
		n, err := readInt(filepath.Join(chipPath, "npwm"))
		if err != nil {
			return nil, fmt.Errorf("fancontrol: pwmchip%d: %w", chip, err)
		}
		if channel >= n {
			return nil, fmt.Errorf("fancontrol: pwmchip%d has %d channels, want channel %d", chip, n, channel)
		}
	} else {
		p, err := findPWMChip(channel)
		if err != nil {
			return nil, err
		}
		chipPath = p
	}

	d := &sysfsPWM{
		chipPath: chipPath,
		channel:  channel,
		pwmPath:  filepath.Join(chipPath, fmt.Sprintf("pwm%d", channel)),
	}
	if err := d.ensureExported(); err != nil {
		return nil, err
	}
	// Start disabled; SetFrequencyHz enables the channel once a period is set.
	if err := d.writeBool("enable", false); err == nil {
		d.enabled = false
	}
	return d, nil
}

// findPWMChip returns the first pwmchip (lowest index) that has at least
// channel+1 channels.
func findPWMChip(channel int) (string, error) {
	base := pwmSysfsBase
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("fancontrol: read %s: %w", base, err)
	}

	// pwmchipN entries are usually symlinks, so don't filter on IsDir.
	type cand struct {
		name string
		idx  int
	}
	var cands []cand
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "pwmchip") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(name, "pwmchip"))
		if err != nil {
			continue
		}
		cands = append(cands, cand{name: name, idx: idx})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].idx < cands[j].idx })

	for _, c := range cands {
		chip := filepath.Join(base, c.name)
		n, err := readInt(filepath.Join(chip, "npwm"))
		if err != nil || n <= channel {
			continue
		}
		return chip, nil
	}
	return "", fmt.Errorf("fancontrol: no pwmchip with channel %d found under %s (is the pwm overlay enabled?)", channel, base)
}

func (d *sysfsPWM) ensureExported() error {
	if _, err := os.Stat(d.pwmPath); err == nil {
		return nil
	}
	if err := writeSysfs(filepath.Join(d.chipPath, "export"), strconv.Itoa(d.channel)); err != nil {
		// Someone else may have exported it in the meantime.
		if _, statErr := os.Stat(d.pwmPath); statErr == nil {
			return nil
		}
		return fmt.Errorf("fancontrol: export pwm: %w", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(d.pwmPath); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(d.pwmPath); err != nil {
		return fmt.Errorf("fancontrol: pwm path not created after export: %w", err)
	}
	return nil
}

// Close leaves the channel enabled at full duty.
func (d *sysfsPWM) Close() error {
	return d.SetDutyPercent(100)
}

func (d *sysfsPWM) SetFrequencyHz(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("fancontrol: invalid frequency %d", hz)
	}
	periodNS := uint64(1_000_000_000 / hz)
	if periodNS == 0 {
		periodNS = 1
	}

	// The kernel rejects period < duty_cycle, so zero the duty first and
	// disable while reprogramming.
	_ = d.writeBool("enable", false)
	d.enabled = false
	_ = d.writeUint("duty_cycle", 0)

	if err := d.writeUint("period", periodNS); err != nil {
		return err
	}
	d.periodNS = periodNS

	if err := d.writeBool("enable", true); err != nil {
		return err
	}
	d.enabled = true
	return nil
}

func (d *sysfsPWM) SetDutyPercent(p float64) error {
	if d.periodNS == 0 {
		d.periodNS = defaultPeriodNS
		if err := d.writeUint("period", d.periodNS); err != nil {
			return err
		}
	}
	if err := d.writeUint("duty_cycle", DutyToLevel(p, d.periodNS)); err != nil {
		return err
	}
	if !d.enabled {
		_ = d.writeBool("enable", true)
		d.enabled = true
	}
	return nil
}

func (d *sysfsPWM) writeUint(name string, v uint64) error {
	return writeSysfs(filepath.Join(d.pwmPath, name), strconv.FormatUint(v, 10))
}

func (d *sysfsPWM) writeBool(name string, v bool) error {
	val := "0"
	if v {
		val = "1"
	}
	return writeSysfs(filepath.Join(d.pwmPath, name), val)
}

// writeSysfs writes value to an existing sysfs attribute.
//
// Attributes are opened O_WRONLY without O_TRUNC/O_CREATE; some reject the
// extra flags. Right after export udev may still be fixing permissions on the
// new nodes, so EACCES/EPERM/ENOENT are retried for a short while.
func writeSysfs(path string, value string) error {
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := writeSysfsOnce(path, value)
		if err == nil {
			return nil
		}
		if time.Now().Before(deadline) && isRetryableSysfsErr(err) {
			time.Sleep(25 * time.Millisecond)
			continue
		}
		return err
	}
}

func writeSysfsOnce(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(value)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		return errors.Join(werr, cerr)
	}
	return nil
}

func isRetryableSysfsErr(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.ENOENT)
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, fmt.Errorf("%s: empty", path)
	}
	return strconv.Atoi(s)
}
