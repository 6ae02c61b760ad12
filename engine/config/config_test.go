package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvUsesDocumentedDefaultsWhenUnset(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, 30, cfg.CaptureIntervalSec)
	assert.Equal(t, "./aegis.db", cfg.StoreDSN)
	assert.Equal(t, "./storage", cfg.LocalStorageDir)
	assert.Equal(t, 24, cfg.CameraFailureResetHours)
	assert.Equal(t, DefaultMutable(), cfg.Mutable)
}

func TestFromEnvOverridesRestartRequiredFields(t *testing.T) {
	t.Setenv("CAPTURE_INTERVAL_SEC", "45")
	t.Setenv("STORE_DSN", "/data/aegis.db")
	t.Setenv("AI_API_KEY", "secret-key")
	t.Setenv("LOCAL_STORAGE_DIR", "/data/frames")
	t.Setenv("RTSP_TEMPLATE", "rtsp://cam-{id}/stream")
	t.Setenv("LOCAL_AI_ENDPOINT", "http://local-ai:9000/detect")
	t.Setenv("CLOUD_AI_ENDPOINT", "https://cloud-ai.example/detect")
	t.Setenv("USRP_TX_DATA_FILE", "/usr/bin/uhd_tx")
	t.Setenv("USRP_UHD_IMAGES_DIR", "/usr/share/uhd/images")
	t.Setenv("USRP_LD_PRELOAD", "/lib/libfoo.so")
	t.Setenv("CAMERA_FAILURE_RESET_HOURS", "6")

	cfg := FromEnv()
	assert.Equal(t, 45, cfg.CaptureIntervalSec)
	assert.Equal(t, "/data/aegis.db", cfg.StoreDSN)
	assert.Equal(t, "secret-key", cfg.AIAPIKey)
	assert.Equal(t, "/data/frames", cfg.LocalStorageDir)
	assert.Equal(t, "rtsp://cam-{id}/stream", cfg.RTSPTemplate)
	assert.Equal(t, "http://local-ai:9000/detect", cfg.LocalAIEndpoint)
	assert.Equal(t, "https://cloud-ai.example/detect", cfg.CloudAIEndpoint)
	assert.Equal(t, "/usr/bin/uhd_tx", cfg.USRPModulatorPath)
	assert.Equal(t, "/usr/share/uhd/images", cfg.USRPImagesDir)
	assert.Equal(t, "/lib/libfoo.so", cfg.USRPLDPreload)
	assert.Equal(t, 6, cfg.CameraFailureResetHours)
}

func TestFromEnvOverridesMutableKnobs(t *testing.T) {
	t.Setenv("USRP_PADDING_LENGTH", "100")
	t.Setenv("USRP_PADDING_LENGTH_EXTRA", "40000")
	t.Setenv("USRP_TRANSMISSION_TIMEOUT_MS", "45000")
	t.Setenv("LOCAL_AI_TIMEOUT_MS", "5000")
	t.Setenv("CLOUD_AI_TIMEOUT_MS", "9000")
	t.Setenv("CAMERA_FAILURE_THRESHOLD", "5")

	cfg := FromEnv()
	assert.Equal(t, 100, cfg.Mutable.RadioPadLead)
	assert.Equal(t, 40000, cfg.Mutable.RadioPadTrail)
	assert.Equal(t, 45*time.Second, cfg.Mutable.RadioTimeout)
	assert.Equal(t, 5*time.Second, cfg.Mutable.LocalDetectorTimeout)
	assert.Equal(t, 9*time.Second, cfg.Mutable.CloudDetectorTimeout)
	assert.Equal(t, 5, cfg.Mutable.CameraFailureThreshold)
}

func TestEnvIntFallsBackToDefaultOnMalformedValue(t *testing.T) {
	t.Setenv("CAPTURE_INTERVAL_SEC", "not-a-number")
	cfg := FromEnv()
	assert.Equal(t, 30, cfg.CaptureIntervalSec)
}

func TestApplyOverlayOnlySetsNonNilFields(t *testing.T) {
	base := DefaultMutable()
	firePenalty := 99.0
	threshold := 7

	got := applyOverlay(base, overlay{FirePenalty: &firePenalty, CameraFailureThreshold: &threshold})

	assert.Equal(t, 99.0, got.Weight.FirePenalty)
	assert.Equal(t, 7, got.CameraFailureThreshold)
	assert.Equal(t, base.Weight.SmokePenalty, got.Weight.SmokePenalty, "unset fields keep the base value")
	assert.Equal(t, base.RadioPadLead, got.RadioPadLead)
}

func TestApplyOverlayConvertsMillisecondFieldsToDurations(t *testing.T) {
	base := DefaultMutable()
	ms := 1500
	got := applyOverlay(base, overlay{LocalDetectorTimeoutMs: &ms, RadioKillGraceMs: &ms})

	assert.Equal(t, 1500*time.Millisecond, got.LocalDetectorTimeout)
	assert.Equal(t, 1500*time.Millisecond, got.RadioKillGrace)
}

func TestApplyOverlayWithZeroValueOverlayIsANoop(t *testing.T) {
	base := DefaultMutable()
	got := applyOverlay(base, overlay{})
	assert.Equal(t, base, got)
}
