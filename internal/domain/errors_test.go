package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

func TestErrorCodeOf(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want domain.ErrorCode
	}{
		{
			name: "coded error",
			err:  domain.NewError(domain.CodeTimeout, "enrichment timed out"),
			want: domain.CodeTimeout,
		},
		{
			name: "wrapped coded error",
			err:  fmt.Errorf("process record: %w", domain.NewError(domain.CodeProviderRateLimit, "429")),
			want: domain.CodeProviderRateLimit,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: domain.CodeUnknown,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.CodeOf(tc.err); got != tc.want {
				t.Errorf("CodeOf() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestErrorWithProvider(t *testing.T) {
	err := domain.NewError(domain.CodeAuthentication, "invalid api key").WithProvider("hunter")

	if err.Provider != "hunter" {
		t.Errorf("Provider = %s, want hunter", err.Provider)
	}
	if err.Error() != "hunter: authentication_error: invalid api key" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestAsError(t *testing.T) {
	coded := domain.NewError(domain.CodeValidation, "missing domain")
	if got := domain.AsError(fmt.Errorf("wrap: %w", coded)); got != coded {
		t.Errorf("AsError should preserve coded errors, got %+v", got)
	}

	plain := domain.AsError(errors.New("boom"))
	if plain.Code != domain.CodeUnknown {
		t.Errorf("plain errors map to unknown, got %s", plain.Code)
	}

	if domain.AsError(nil) != nil {
		t.Error("AsError(nil) should be nil")
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	if domain.JobStatusQueued.IsTerminal() || domain.JobStatusProcessing.IsTerminal() {
		t.Error("queued/processing must not be terminal")
	}
	if !domain.JobStatusCompleted.IsTerminal() || !domain.JobStatusFailed.IsTerminal() {
		t.Error("completed/failed must be terminal")
	}
}
