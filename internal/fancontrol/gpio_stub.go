//go:build !linux

package fancontrol

import "fmt"

func openGPIO(pin int) (pwmDriver, error) {
	return nil, fmt.Errorf("fancontrol: gpio unsupported on this platform")
}
