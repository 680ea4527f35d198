package climate

const (
	DefaultDisplayWait = 20
	DefaultReviewWait  = 10
	DefaultCopyNWRTo   = "pending"
	DefaultOfficeName  = "National Weather Service"
	DefaultTimezone    = "GMT"
)

// GlobalConfig is the snapshot of global settings a session runs with. It is
// persisted with the session so a rehydrated session sees the same values.
type GlobalConfig struct {
	DisplayWait      int    `json:"display_wait"`
	ReviewWait       int    `json:"review_wait"`
	AllowAutoSend    bool   `json:"allow_auto_send"`
	AllowDisseminate bool   `json:"allow_disseminate"`
	CopyNWRTo        string `json:"copy_nwr_to"`
	OfficeName       string `json:"office_name"`
	Timezone         string `json:"timezone"`
	AutoAM           bool   `json:"auto_am"`
	AutoIM           bool   `json:"auto_im"`
	AutoPM           bool   `json:"auto_pm"`
	AutoCLM          bool   `json:"auto_clm"`
	AutoCLS          bool   `json:"auto_cls"`
	AutoCLA          bool   `json:"auto_cla"`
	AutoF6           bool   `json:"auto_f6"`
}

// DefaultGlobalConfig returns the settings used when nothing is configured.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		DisplayWait:   DefaultDisplayWait,
		ReviewWait:    DefaultReviewWait,
		AllowAutoSend: true,
		CopyNWRTo:     DefaultCopyNWRTo,
		OfficeName:    DefaultOfficeName,
		Timezone:      DefaultTimezone,
		AutoAM:        true,
		AutoIM:        true,
		AutoPM:        true,
		AutoCLM:       true,
		AutoCLS:       true,
		AutoCLA:       true,
		AutoF6:        true,
	}
}

// DisplayWaitMinutes returns the display window length, replacing a
// negative setting with the default.
func (g GlobalConfig) DisplayWaitMinutes() int {
	if g.DisplayWait < 0 {
		return DefaultDisplayWait
	}
	return g.DisplayWait
}

// ReviewWaitMinutes returns the review window length, replacing a negative
// setting with the default.
func (g GlobalConfig) ReviewWaitMinutes() int {
	if g.ReviewWait < 0 {
		return DefaultReviewWait
	}
	return g.ReviewWait
}

// AutoEnabled reports whether unattended runs are enabled for a product type.
func (g GlobalConfig) AutoEnabled(p PeriodType) bool {
	switch p {
	case PeriodMornRad, PeriodMornNWWS:
		return g.AutoAM
	case PeriodInterRad, PeriodInterNWWS:
		return g.AutoIM
	case PeriodEvenRad, PeriodEvenNWWS:
		return g.AutoPM
	case PeriodMonthlyRad, PeriodMonthlyNWWS:
		return g.AutoCLM
	case PeriodSeasonalRad, PeriodSeasonalNWWS:
		return g.AutoCLS
	case PeriodAnnualRad, PeriodAnnualNWWS:
		return g.AutoCLA
	}
	return false
}
