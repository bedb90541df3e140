package domain

// ConfigSettings tells the config files reader how to interpret one attached
// repository: which main-config setting lists its files, which top-level key
// prefix declares an object, and which nested field carries the object name.
type ConfigSettings struct {
	PathSetting  string
	ObjectPrefix string
	NameField    string
}

// UpdateSettings drives the periodic updater: the cadence of the update
// worker and the backoff window applied to failed loads.
type UpdateSettings struct {
	CheckPeriodSec    uint64
	BackoffInitialSec uint64
	BackoffMaxSec     uint64
}

// DefaultUpdateSettings returns the stock update cadence.
func DefaultUpdateSettings() UpdateSettings {
	return UpdateSettings{
		CheckPeriodSec:    5,
		BackoffInitialSec: 5,
		BackoffMaxSec:     10,
	}
}
