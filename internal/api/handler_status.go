package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"filament-monitor-backend/internal/printer"
)

type statusGroup struct {
	State         int     `json:"state"`
	StateText     string  `json:"stateText"`
	Phase         string  `json:"phase"`
	MachineStatus int     `json:"machineStatus"`
	Position      string  `json:"position"`
	ZOffset       float64 `json:"zOffset"`
	LightOn       bool    `json:"lightOn"`
	RGBLight      [3]int  `json:"rgbLight"`
	BedTemp       float64 `json:"bedTemp"`
	BedTarget     float64 `json:"bedTarget"`
	NozzleTemp    float64 `json:"nozzleTemp"`
	NozzleTarget  float64 `json:"nozzleTarget"`
	ChamberTemp   float64 `json:"chamberTemp"`
	Connected     bool    `json:"connected"`
}

type printGroup struct {
	Progress     int    `json:"progress"`
	Filename     string `json:"filename"`
	Layer        int    `json:"layer"`
	TotalLayers  int    `json:"totalLayers"`
	CurrentTicks int    `json:"currentTicks"`
	TotalTicks   int    `json:"totalTicks"`
	Speed        int    `json:"speed"`
}

type fanGroup struct {
	Model int `json:"model"`
	Aux   int `json:"aux"`
	Box   int `json:"box"`
}

type sensorGroup struct {
	Status     string `json:"status"`
	Error      bool   `json:"error"`
	LastMotion int64  `json:"lastMotion"`
	PulseCount uint32 `json:"pulseCount"`
	AutoPause  bool   `json:"autoPause"`
	PauseDelay uint32 `json:"pauseDelay"`
	NoFilament bool   `json:"noFilament"`
}

// StatusResponse is the GET /api/status document.
type StatusResponse struct {
	Status statusGroup `json:"status"`
	Print  printGroup  `json:"print"`
	Fans   fanGroup    `json:"fans"`
	Sensor sensorGroup `json:"sensor"`
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	st := h.Printer.Snapshot()
	sensor := h.Sensor.Snapshot()

	c.JSON(http.StatusOK, StatusResponse{
		Status: statusGroup{
			State:         st.PrintStatus,
			StateText:     printer.StatusText(st.PrintStatus),
			Phase:         string(st.Phase()),
			MachineStatus: st.MachineStatus,
			Position:      st.CurrentCoord,
			ZOffset:       st.ZOffset,
			LightOn:       st.LightOn,
			RGBLight:      st.RGBLight,
			BedTemp:       st.BedTemp,
			BedTarget:     st.BedTargetTemp,
			NozzleTemp:    st.NozzleTemp,
			NozzleTarget:  st.NozzleTargetTemp,
			ChamberTemp:   st.ChamberTemp,
			Connected:     h.Link != nil && h.Link.Connected(),
		},
		Print: printGroup{
			Progress:     st.Progress,
			Filename:     st.Filename,
			Layer:        st.CurrentLayer,
			TotalLayers:  st.TotalLayers,
			CurrentTicks: st.CurrentTicks,
			TotalTicks:   st.TotalTicks,
			Speed:        st.PrintSpeed,
		},
		Fans: fanGroup{
			Model: st.ModelFan,
			Aux:   st.AuxFan,
			Box:   st.BoxFan,
		},
		Sensor: sensorGroup{
			Status:     string(sensor.Status),
			Error:      sensor.ErrorDetected,
			LastMotion: sensor.SinceLastPulse,
			PulseCount: sensor.PulseCount,
			AutoPause:  sensor.AutoPause,
			PauseDelay: sensor.MotionTimeoutMs,
			NoFilament: !sensor.FilamentPresent,
		},
	})
}
