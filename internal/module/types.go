package module

// BatterySample is the reading behind the last successful battery render.
type BatterySample struct {
	Timestamp     int64  `json:"timestamp"`
	VoltageUV     int64  `json:"voltage_uv"`
	ChargeUAH     int64  `json:"charge_uah"`
	ChargeFullUAH int64  `json:"charge_full_uah"`
	CapacityPct   int    `json:"capacity_pct"`
	Status        string `json:"status"`
}

// BacklightSample is the reading behind the last successful backlight render.
type BacklightSample struct {
	Timestamp     int64  `json:"timestamp"`
	Device        string `json:"device"`
	Brightness    int64  `json:"brightness"`
	MaxBrightness int64  `json:"max_brightness"`
	Percent       int    `json:"percent"`
}
