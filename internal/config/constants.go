package config

import (
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts"
)

// Application constants
const (
	AppName    = "low-altitude-index-engine"
	AppVersion = contracts.Version

	// Rate limiting
	DefaultRateLimit = 20 // requests per second
	DefaultBurstSize = 40

	// Engine
	DefaultMaxConcurrency = 8
	DefaultReducerTimeout = 3 * time.Second
	DefaultCacheTTL       = 10 * time.Minute
	DefaultCacheSize      = 512
)
