package filament

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Settings keys, kept in the "filament" namespace of the key/value store.
const (
	settingsNamespace = "filament"
	keyMotionTimeout  = "motionTimeout"
	keyAutoPause      = "autoPause"
)

// DefaultMotionTimeoutMs is the jam threshold used until one is saved.
const DefaultMotionTimeoutMs uint32 = 3000

// SettingsStore persists the two sensor settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, namespace, key string) (string, bool, error)
	SetSetting(ctx context.Context, namespace, key, value string) error
}

// LoadSettings reads auto-pause and motion timeout. Missing or unparsable
// values keep the defaults.
func (d *Detector) LoadSettings(ctx context.Context) error {
	if d.settings == nil {
		return nil
	}

	if v, ok, err := d.settings.GetSetting(ctx, settingsNamespace, keyMotionTimeout); err != nil {
		return fmt.Errorf("load motion timeout: %w", err)
	} else if ok {
		if ms, err := strconv.ParseUint(v, 10, 32); err == nil {
			d.motionTimeout.Store(uint32(ms))
		} else {
			d.log.Warn("Ignoring invalid stored motion timeout", zap.String("value", v))
		}
	}

	if v, ok, err := d.settings.GetSetting(ctx, settingsNamespace, keyAutoPause); err != nil {
		return fmt.Errorf("load auto-pause: %w", err)
	} else if ok {
		if b, err := strconv.ParseBool(v); err == nil {
			d.autoPause.Store(b)
		} else {
			d.log.Warn("Ignoring invalid stored auto-pause flag", zap.String("value", v))
		}
	}

	d.log.Info("Sensor settings loaded",
		zap.Uint32("motion_timeout_ms", d.motionTimeout.Load()),
		zap.Bool("auto_pause", d.autoPause.Load()),
	)
	return nil
}

// SetAutoPauseEnabled changes and persists the auto-pause flag.
func (d *Detector) SetAutoPauseEnabled(enabled bool) error {
	d.autoPause.Store(enabled)
	d.log.Info("Auto-pause changed", zap.Bool("enabled", enabled))
	return d.save()
}

// ToggleAutoPause flips the auto-pause flag, persists it, and returns the new value.
func (d *Detector) ToggleAutoPause() (bool, error) {
	for {
		old := d.autoPause.Load()
		if d.autoPause.CompareAndSwap(old, !old) {
			d.log.Info("Auto-pause toggled", zap.Bool("enabled", !old))
			return !old, d.save()
		}
	}
}

// SetMotionTimeout changes and persists the jam threshold in milliseconds.
func (d *Detector) SetMotionTimeout(ms uint32) error {
	d.motionTimeout.Store(ms)
	d.log.Info("Motion timeout changed", zap.Uint32("motion_timeout_ms", ms))
	return d.save()
}

func (d *Detector) save() error {
	if d.settings == nil {
		return nil
	}
	ctx := context.Background()
	if err := d.settings.SetSetting(ctx, settingsNamespace, keyMotionTimeout, strconv.FormatUint(uint64(d.motionTimeout.Load()), 10)); err != nil {
		return fmt.Errorf("save motion timeout: %w", err)
	}
	if err := d.settings.SetSetting(ctx, settingsNamespace, keyAutoPause, strconv.FormatBool(d.autoPause.Load())); err != nil {
		return fmt.Errorf("save auto-pause: %w", err)
	}
	return nil
}
