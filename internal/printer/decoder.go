package printer

import "filament-monitor-backend/internal/sdcp"

// Apply copies the fields present in a status document onto st. Keys missing
// from the document leave st untouched. It reports false when doc carries no
// Status section.
func Apply(doc sdcp.Document, st *State) bool {
	status, ok := doc.Object("Status")
	if !ok {
		return false
	}

	if arr, ok := status.Array("CurrentStatus"); ok && len(arr) > 0 {
		if v, ok := arr[0].(float64); ok {
			st.MachineStatus = int(v)
		}
	}

	setFloat(status, "TempOfHotbed", &st.BedTemp)
	setFloat(status, "TempOfNozzle", &st.NozzleTemp)
	setFloat(status, "TempOfBox", &st.ChamberTemp)
	setFloat(status, "TempTargetHotbed", &st.BedTargetTemp)
	setFloat(status, "TempTargetNozzle", &st.NozzleTargetTemp)
	setFloat(status, "ZOffset", &st.ZOffset)

	// The key really is spelled CurrenCoord on the wire.
	if v, ok := status.String("CurrenCoord"); ok {
		st.CurrentCoord = v
	}

	if fans, ok := status.Object("CurrentFanSpeed"); ok {
		setInt(fans, "ModelFan", &st.ModelFan)
		setInt(fans, "AuxiliaryFan", &st.AuxFan)
		setInt(fans, "BoxFan", &st.BoxFan)
	}

	if info, ok := status.Object("PrintInfo"); ok {
		applyPrintInfo(info, st)
	}

	if light, ok := status.Object("LightStatus"); ok {
		if v, ok := light.Int("SecondLight"); ok {
			st.LightOn = v == 1
		}
		if rgb, ok := light.Array("RgbLight"); ok && len(rgb) == 3 {
			for i, c := range rgb {
				if f, ok := c.(float64); ok {
					st.RGBLight[i] = int(f)
				}
			}
		}
	}

	return true
}

// applyPrintInfo treats PrintInfo as one unit: sub-fields it omits fall back
// to their defaults instead of keeping stale values from an earlier job.
func applyPrintInfo(info sdcp.Document, st *State) {
	st.PrintStatus = intOr(info, "Status", StatusUnknown)
	st.CurrentLayer = intOr(info, "CurrentLayer", 0)
	st.TotalLayers = intOr(info, "TotalLayer", 0)
	st.CurrentTicks = intOr(info, "CurrentTicks", 0)
	st.TotalTicks = intOr(info, "TotalTicks", 0)
	st.Progress = intOr(info, "Progress", 0)
	st.PrintSpeed = intOr(info, "PrintSpeedPct", defaultPrintSpeed)
	st.Filename, _ = info.String("Filename")
}

func setFloat(d sdcp.Document, key string, dst *float64) {
	if v, ok := d.Float(key); ok {
		*dst = v
	}
}

func setInt(d sdcp.Document, key string, dst *int) {
	if v, ok := d.Int(key); ok {
		*dst = v
	}
}

func intOr(d sdcp.Document, key string, def int) int {
	if v, ok := d.Int(key); ok {
		return v
	}
	return def
}
