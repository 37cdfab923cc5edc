package model

import (
	"errors"
	"testing"
)

func TestStatusFromFlags(t *testing.T) {
	cases := []struct {
		name      string
		isDraft   bool
		isPending bool
		want      SubmissionStatus
		wantErr   error
	}{
		{name: "draft", isDraft: true, want: SubmissionDraft},
		{name: "pending", isPending: true, want: SubmissionPending},
		{name: "final", want: SubmissionFinal},
		{name: "draft and pending", isDraft: true, isPending: true, wantErr: ErrInvalidStatusFlags},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := StatusFromFlags(tc.isDraft, tc.isPending)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("StatusFromFlags() error = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("StatusFromFlags() = %q, want %q", got, tc.want)
			}
			if err == nil {
				d, p := got.Flags()
				if d != tc.isDraft || p != tc.isPending {
					t.Fatalf("Flags() = (%v, %v), want (%v, %v)", d, p, tc.isDraft, tc.isPending)
				}
			}
		})
	}
}
