package printer

// State is the canonical view of the printer built from status documents.
type State struct {
	MachineStatus int `json:"machineStatus"`
	PrintStatus   int `json:"printStatus"`

	BedTemp          float64 `json:"bedTemp"`
	NozzleTemp       float64 `json:"nozzleTemp"`
	ChamberTemp      float64 `json:"chamberTemp"`
	BedTargetTemp    float64 `json:"bedTargetTemp"`
	NozzleTargetTemp float64 `json:"nozzleTargetTemp"`

	CurrentCoord string  `json:"currentCoord"`
	ZOffset      float64 `json:"zOffset"`

	ModelFan int `json:"modelFan"`
	AuxFan   int `json:"auxFan"`
	BoxFan   int `json:"boxFan"`

	Progress     int    `json:"progress"`
	CurrentLayer int    `json:"currentLayer"`
	TotalLayers  int    `json:"totalLayers"`
	CurrentTicks int    `json:"currentTicks"`
	TotalTicks   int    `json:"totalTicks"`
	PrintSpeed   int    `json:"printSpeed"`
	Filename     string `json:"filename"`

	LightOn  bool   `json:"lightOn"`
	RGBLight [3]int `json:"rgbLight"`
}

// NewState returns the startup state with sentinel status codes.
func NewState() State {
	return State{
		MachineStatus: StatusUnknown,
		PrintStatus:   StatusUnknown,
		PrintSpeed:    defaultPrintSpeed,
	}
}

// Phase classifies the current print status.
func (s State) Phase() Phase {
	return Classify(s.PrintStatus)
}

const defaultPrintSpeed = 100
