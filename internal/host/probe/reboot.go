package probe

import (
	"fmt"
	"os"
)

// RebootRequired reports whether the reboot sentinel exists. The flag is
// advisory; nothing here clears it.
func RebootRequired(sentinel string) (bool, error) {
	_, err := os.Stat(sentinel)
	if err == nil {
		return true, nil
	}
	if isNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("check reboot sentinel %s: %w", sentinel, err)
}
