package aireview

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/joescharf/crit/internal/models"
)

// Config holds AI reviewer configuration. Any change to it produces a
// different Fingerprint, which invalidates the whole result cache.
type Config struct {
	Weights                map[models.FindingCategory]float64
	MinConfidence          float64
	MaxFindingsPerCategory int
	CacheSize              int
	BatchDelay             time.Duration
}

// DefaultConfig returns the default reviewer config, reading from viper
// when available.
func DefaultConfig() Config {
	minConf := viper.GetFloat64("review.min_confidence")
	if minConf <= 0 {
		minConf = 0.3
	}

	maxPerCat := viper.GetInt("review.max_findings_per_category")
	if maxPerCat <= 0 {
		maxPerCat = 10
	}

	cacheSize := viper.GetInt("review.cache_size")
	if cacheSize <= 0 {
		cacheSize = 256
	}

	delay := viper.GetInt("review.batch_delay_ms")
	if delay <= 0 {
		delay = 1000
	}

	return Config{
		Weights:                defaultWeights(),
		MinConfidence:          minConf,
		MaxFindingsPerCategory: maxPerCat,
		CacheSize:              cacheSize,
		BatchDelay:             time.Duration(delay) * time.Millisecond,
	}
}

func defaultWeights() map[models.FindingCategory]float64 {
	return map[models.FindingCategory]float64{
		models.CategoryLogic:        0.30,
		models.CategorySecurity:     0.25,
		models.CategoryPerformance:  0.15,
		models.CategoryArchitecture: 0.15,
		models.CategoryReadability:  0.15,
	}
}

// Fingerprint returns a stable hash of the configuration, used as a
// cache key component so a config change misses the entire cache.
// Only fields that change review output are hashed: CacheSize and
// BatchDelay affect delivery, not results, so resizing the cache or
// retuning the batch pacing must not invalidate cached reviews.
func (c Config) Fingerprint() string {
	payload, _ := json.Marshal(struct {
		Weights       map[models.FindingCategory]float64 `json:"weights"`
		MinConfidence float64                            `json:"min_confidence"`
		MaxPerCat     int                                `json:"max_per_cat"`
	}{c.Weights, c.MinConfidence, c.MaxFindingsPerCategory})
	return fmt.Sprintf("%x", sha256.Sum256(payload))
}
