package metrics

// ModeLabel is the inverter work mode shown on the dashboard.
type ModeLabel string

const (
	ModeUnknown   ModeLabel = "UNKNOWN"
	ModeSelfUse   ModeLabel = "SELF_USE"
	ModeCharge    ModeLabel = "CHARGE"
	ModeDischarge ModeLabel = "DISCHARGE"
	ModeHold      ModeLabel = "HOLD"
	ModeNormal    ModeLabel = "NORMAL"
)

var modeLabels = map[int]ModeLabel{
	0: ModeUnknown,
	1: ModeSelfUse,
	2: ModeCharge,
	3: ModeDischarge,
	4: ModeHold,
	5: ModeNormal,
}

// ModeFromCode maps the inverter mode code to its label. Codes outside the
// known set resolve to NORMAL, not UNKNOWN.
func ModeFromCode(code int) ModeLabel {
	if label, ok := modeLabels[code]; ok {
		return label
	}
	return ModeNormal
}

// DisplayName is the label as printed on screen ("SELF USE").
func (m ModeLabel) DisplayName() string {
	if m == ModeSelfUse {
		return "SELF USE"
	}
	return string(m)
}
