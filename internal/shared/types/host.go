package types

// Kernel flavors as reported for installed kernels and catalog entries
const (
	FlavorLTS     = "lts"
	FlavorRT      = "rt"
	FlavorZen     = "zen"
	FlavorDefault = "default"
	FlavorMain    = "main"
	FlavorOther   = "other"
)

// InstalledKernel is a kernel that has a module tree on the host
type InstalledKernel struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Flavor  string `json:"flavor"`
}

// InstallableKernel is a kernel package offered by a repository
type InstallableKernel struct {
	PackageName string `json:"package_name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Flavor      string `json:"flavor"`
	Repository  string `json:"repository"`
	Installed   bool   `json:"installed"`
}

// KernelInfo is a point-in-time kernel snapshot
type KernelInfo struct {
	RunningKernel      string              `json:"running_kernel"`
	InstalledKernels   []InstalledKernel   `json:"installed_kernels"`
	InstallableKernels []InstallableKernel `json:"installable_kernels"`
	Warnings           []string            `json:"warnings,omitempty"`
}

// Locale category keys in the order they are applied and persisted
const (
	KeyLang       = "LANG"
	KeyLCCollate  = "LC_COLLATE"
	KeyLCCtype    = "LC_CTYPE"
	KeyLCMessages = "LC_MESSAGES"
	KeyLCMonetary = "LC_MONETARY"
	KeyLCNumeric  = "LC_NUMERIC"
	KeyLCTime     = "LC_TIME"
)

// LocaleKeys lists every recognized locale category key in canonical order.
var LocaleKeys = []string{
	KeyLang, KeyLCCollate, KeyLCCtype, KeyLCMessages, KeyLCMonetary, KeyLCNumeric, KeyLCTime,
}

// LocaleConfiguration holds the persisted locale category values.
// An empty field means the category is unset.
type LocaleConfiguration struct {
	Lang       string `json:"lang"`
	LCCollate  string `json:"lc_collate"`
	LCCtype    string `json:"lc_ctype"`
	LCMessages string `json:"lc_messages"`
	LCMonetary string `json:"lc_monetary"`
	LCNumeric  string `json:"lc_numeric"`
	LCTime     string `json:"lc_time"`
}

// LocaleCategory is a single KEY=value locale assignment
type LocaleCategory struct {
	Key   string
	Value string
}

// Categories returns the non-empty categories in canonical order
func (c LocaleConfiguration) Categories() []LocaleCategory {
	out := make([]LocaleCategory, 0, len(LocaleKeys))
	for _, key := range LocaleKeys {
		if v := c.Get(key); v != "" {
			out = append(out, LocaleCategory{Key: key, Value: v})
		}
	}
	return out
}

// Get returns the value stored for a category key
func (c LocaleConfiguration) Get(key string) string {
	switch key {
	case KeyLang:
		return c.Lang
	case KeyLCCollate:
		return c.LCCollate
	case KeyLCCtype:
		return c.LCCtype
	case KeyLCMessages:
		return c.LCMessages
	case KeyLCMonetary:
		return c.LCMonetary
	case KeyLCNumeric:
		return c.LCNumeric
	case KeyLCTime:
		return c.LCTime
	}
	return ""
}

// Set stores a value for a category key. Unknown keys are ignored and
// reported as false.
func (c *LocaleConfiguration) Set(key, value string) bool {
	switch key {
	case KeyLang:
		c.Lang = value
	case KeyLCCollate:
		c.LCCollate = value
	case KeyLCCtype:
		c.LCCtype = value
	case KeyLCMessages:
		c.LCMessages = value
	case KeyLCMonetary:
		c.LCMonetary = value
	case KeyLCNumeric:
		c.LCNumeric = value
	case KeyLCTime:
		c.LCTime = value
	default:
		return false
	}
	return true
}

// LocaleStatus is a point-in-time locale snapshot
type LocaleStatus struct {
	Current          LocaleConfiguration `json:"current"`
	AvailableLocales []string            `json:"available_locales"`
	GeneratedLocales []string            `json:"generated_locales"`
	RebootRequired   bool                `json:"reboot_required"`
}

// FailureKind classifies how a privileged action ended
type FailureKind string

const (
	KindNone         FailureKind = "none"
	KindAuthDenied   FailureKind = "auth_denied"
	KindExitFailure  FailureKind = "exit_failure"
	KindSpawnFailure FailureKind = "spawn_failure"
	KindAborted      FailureKind = "aborted"
)

// MutationOutcome is the result of a state-changing action.
// Message is non-empty whenever Succeeded is false.
type MutationOutcome struct {
	Succeeded bool        `json:"success"`
	Message   string      `json:"message"`
	Kind      FailureKind `json:"kind"`
	ExitCode  int         `json:"exit_code"`
}
