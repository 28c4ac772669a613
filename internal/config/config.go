package config

import (
	"log"
	"time"
)

// StoreConfig captures the tunables required to open a manifest store.
type StoreConfig struct {
	DBPath        string
	RequireSigned bool
	Logger        *log.Logger
	Now           func() time.Time
}
