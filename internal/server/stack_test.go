package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
)

func TestSessionPurgeAge(t *testing.T) {
	tests := []struct {
		name       string
		ttl        time.Duration
		jobTimeout time.Duration
		want       time.Duration
	}{
		{"job timeout dominates", 5 * time.Minute, 10 * time.Minute, 15 * time.Minute},
		{"ttl dominates", 30 * time.Minute, 10 * time.Minute, time.Hour},
		{"unset job timeout uses default", 5 * time.Minute, 0, constants.DefaultJobTimeout + 5*time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &common.Config{
				Queue:   common.QueueConfig{JobTimeout: tt.jobTimeout},
				Session: common.SessionConfig{TTL: tt.ttl},
			}
			got := SessionPurgeAge(cfg)
			assert.Equal(t, tt.want, got)
			assert.Greater(t, got, max(tt.jobTimeout, tt.ttl), "a running job's session must survive cleanup")
		})
	}
}
