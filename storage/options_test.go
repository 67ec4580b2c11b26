package storage

import (
	"errors"
	"testing"
	"time"
)

func TestParseSetOptions(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		args       []string
		wantErr    error
		wantNX     bool
		wantXX     bool
		wantKeep   bool
		wantExpiry time.Duration
	}{
		{name: "none", args: nil},
		{name: "nx", args: []string{"nx"}, wantNX: true},
		{name: "xx keepttl", args: []string{"XX", "KEEPTTL"}, wantXX: true, wantKeep: true},
		{name: "ex", args: []string{"EX", "10"}, wantExpiry: 10 * time.Second},
		{name: "px", args: []string{"px", "1500"}, wantExpiry: 1500 * time.Millisecond},
		{name: "px zero", args: []string{"PX", "0"}, wantErr: ErrInvalidExpire},
		{name: "ex negative", args: []string{"EX", "-1"}, wantErr: ErrInvalidExpire},
		{name: "ex overflow", args: []string{"EX", "9223372036854775807"}, wantErr: ErrInvalidExpire},
		{name: "ex not a number", args: []string{"EX", "ten"}, wantErr: ErrNotInteger},
		{name: "ex missing value", args: []string{"EX"}, wantErr: ErrSyntax},
		{name: "ex twice", args: []string{"EX", "1", "PX", "1"}, wantErr: ErrSyntax},
		{name: "nx and xx", args: []string{"NX", "XX"}, wantErr: ErrSyntax},
		{name: "keepttl and ex", args: []string{"KEEPTTL", "EX", "1"}, wantErr: ErrSyntax},
		{name: "unknown", args: []string{"BOGUS"}, wantErr: ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseSetOptions(tt.args, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseSetOptions() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSetOptions() error = %v", err)
			}
			if opts.NX != tt.wantNX || opts.XX != tt.wantXX || opts.KeepTTL != tt.wantKeep {
				t.Errorf("ParseSetOptions() = %+v", opts)
			}
			switch {
			case tt.wantExpiry == 0 && opts.Expiry != nil:
				t.Errorf("ParseSetOptions() expiry = %v, want none", *opts.Expiry)
			case tt.wantExpiry != 0 && (opts.Expiry == nil || opts.Expiry.Sub(now) != tt.wantExpiry):
				t.Errorf("ParseSetOptions() expiry = %v, want now+%v", opts.Expiry, tt.wantExpiry)
			}
		})
	}
}
