package service

import (
	"math"
	"testing"
	"time"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
)

func TestRecencyWeight(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		halfLife time.Duration
		want     float64
	}{
		{"fresh", 0, time.Hour, 1.0},
		{"one half-life", time.Hour, time.Hour, 0.5},
		{"two half-lives", 2 * time.Hour, time.Hour, 0.25},
		{"decay disabled", 10 * time.Hour, 0, 1.0},
		{"clock skew", -time.Minute, time.Hour, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecencyWeight(tt.elapsed, tt.halfLife)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RecencyWeight(%v, %v) = %v, want %v", tt.elapsed, tt.halfLife, got, tt.want)
			}
		})
	}
}

func TestUpdateConfidence(t *testing.T) {
	t.Run("success from prior", func(t *testing.T) {
		got := UpdateConfidence(NeutralConfidence, domain.OutcomeSuccess, 0, time.Hour, 0.3)
		if math.Abs(got-0.65) > 1e-9 {
			t.Errorf("confidence = %v, want 0.65", got)
		}
	})

	t.Run("failure from prior", func(t *testing.T) {
		got := UpdateConfidence(NeutralConfidence, domain.OutcomeFailure, 0, time.Hour, 0.3)
		if math.Abs(got-0.35) > 1e-9 {
			t.Errorf("confidence = %v, want 0.35", got)
		}
	})

	t.Run("partial pulls toward the middle", func(t *testing.T) {
		got := UpdateConfidence(0.9, domain.OutcomePartial, 0, time.Hour, 0.3)
		if got >= 0.9 || got <= 0.5 {
			t.Errorf("confidence = %v, want in (0.5, 0.9)", got)
		}
	})

	t.Run("stale history weighs less", func(t *testing.T) {
		fresh := UpdateConfidence(0.9, domain.OutcomeFailure, 0, time.Hour, 0.3)
		stale := UpdateConfidence(0.9, domain.OutcomeFailure, 5*time.Hour, time.Hour, 0.3)
		if stale >= fresh {
			t.Errorf("stale update %v should move further toward failure than fresh %v", stale, fresh)
		}
	})

	t.Run("bounded", func(t *testing.T) {
		conf := 0.5
		for i := 0; i < 200; i++ {
			conf = UpdateConfidence(conf, domain.OutcomeSuccess, time.Duration(i)*time.Minute, time.Hour, 0.9)
			if conf < 0 || conf > 1 {
				t.Fatalf("confidence %v left [0,1] at step %d", conf, i)
			}
		}
	})
}
