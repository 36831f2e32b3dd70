package lifecycle

import (
	"errors"
	"testing"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// TestValidate_Allowed проверяет допустимые переходы.
func TestValidate_Allowed(t *testing.T) {
	tests := []struct {
		from, to model.UploadStatus
	}{
		{model.UploadPending, model.UploadUploading},
		{model.UploadPending, model.UploadCompleted},
		{model.UploadPending, model.UploadError},
		{model.UploadUploading, model.UploadUploading},
		{model.UploadUploading, model.UploadCompleted},
		{model.UploadUploading, model.UploadError},
	}

	for _, tt := range tests {
		if err := Validate(tt.from, tt.to); err != nil {
			t.Errorf("%s → %s: неожиданная ошибка: %v", tt.from, tt.to, err)
		}
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s): ожидалось true", tt.from, tt.to)
		}
	}
}

// TestValidate_Terminal проверяет, что из конечных статусов переходов нет.
func TestValidate_Terminal(t *testing.T) {
	terminal := []model.UploadStatus{model.UploadCompleted, model.UploadError}
	targets := []model.UploadStatus{
		model.UploadPending, model.UploadUploading, model.UploadCompleted, model.UploadError,
	}

	for _, from := range terminal {
		if !IsTerminal(from) {
			t.Errorf("IsTerminal(%s): ожидалось true", from)
		}
		for _, to := range targets {
			err := Validate(from, to)
			var te *TransitionError
			if !errors.As(err, &te) {
				t.Fatalf("%s → %s: ожидалась TransitionError, получено %v", from, to, err)
			}
			if te.Code != CodeTerminalState {
				t.Errorf("%s → %s: ожидался код %s, получен %q", from, to, CodeTerminalState, te.Code)
			}
		}
	}
}

// TestValidate_Invalid проверяет запрещённые и неизвестные переходы.
func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		from, to model.UploadStatus
	}{
		{model.UploadUploading, model.UploadPending},
		{model.UploadPending, model.UploadPending},
		{model.UploadStatus("paused"), model.UploadUploading},
		{model.UploadPending, model.UploadStatus("")},
	}

	for _, tt := range tests {
		err := Validate(tt.from, tt.to)
		var te *TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("%s → %s: ожидалась TransitionError, получено %v", tt.from, tt.to, err)
		}
		if te.Code != CodeInvalidTransition {
			t.Errorf("%s → %s: ожидался код %s, получен %q", tt.from, tt.to, CodeInvalidTransition, te.Code)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "uploading", "completed", "error"} {
		st, err := ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q): неожиданная ошибка: %v", s, err)
		}
		if string(st) != s {
			t.Errorf("ParseStatus(%q): получено %q", s, st)
		}
	}
	if _, err := ParseStatus("cancelled"); err == nil {
		t.Error("ParseStatus(\"cancelled\"): ожидалась ошибка")
	}
}
