// Package control turns print intents into printer commands.
package control

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"filament-monitor-backend/internal/printer"
	"filament-monitor-backend/internal/sdcp"
)

var (
	ErrUnknownAction   = errors.New("control: unknown action")
	ErrMissingFilename = errors.New("control: filename is required")
)

// Sender writes one command to the printer. session.Session implements it.
type Sender interface {
	Send(opcode int, payload map[string]any) error
}

// StateReader exposes the latest printer state.
type StateReader interface {
	Snapshot() printer.State
}

// Sensor is the part of the filament detector the dispatcher drives.
type Sensor interface {
	Reset()
	ToggleAutoPause() (bool, error)
	SetMotionTimeout(ms uint32) error
	MotionTimeout() uint32
}

// Dispatcher is stateless: every call builds one command and sends it without
// waiting for the acknowledgment.
type Dispatcher struct {
	sender Sender
	state  StateReader
	sensor Sensor
	log    *zap.Logger
}

func NewDispatcher(sender Sender, state StateReader, sensor Sensor, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, state: state, sensor: sensor, log: logger}
}

// StartPrint starts a file from the printer's local storage and resets the sensor.
func (d *Dispatcher) StartPrint(filename string) error {
	name := strings.TrimPrefix(filename, "/local/")
	if name == "" {
		return ErrMissingFilename
	}
	err := d.send(sdcp.CmdStartPrint, map[string]any{
		"Filename":           "/local/" + name,
		"StartLayer":         0,
		"Calibration_switch": 0,
		"PrintPlatformType":  0,
		"Tlp_Switch":         0,
	})
	d.sensor.Reset()
	return err
}

func (d *Dispatcher) PausePrint() error {
	return d.send(sdcp.CmdPausePrint, nil)
}

func (d *Dispatcher) CancelPrint() error {
	return d.send(sdcp.CmdCancelPrint, nil)
}

// ResumePrint resumes and resets the sensor so the pause gap is not read as a jam.
func (d *Dispatcher) ResumePrint() error {
	err := d.send(sdcp.CmdResumePrint, nil)
	d.sensor.Reset()
	return err
}

// ToggleLight inverts the last reported light state.
func (d *Dispatcher) ToggleLight() error {
	on := d.state.Snapshot().LightOn
	return d.send(sdcp.CmdLight, map[string]any{
		"LightStatus": map[string]any{
			"SecondLight": !on,
			"RgbLight":    []int{0, 0, 0},
		},
	})
}

func (d *Dispatcher) send(opcode int, payload map[string]any) error {
	if err := d.sender.Send(opcode, payload); err != nil {
		d.log.Warn("Printer command not sent", zap.Int("cmd", opcode), zap.Error(err))
		return fmt.Errorf("command %d: %w", opcode, err)
	}
	return nil
}
