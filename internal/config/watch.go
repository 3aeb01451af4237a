package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-reads the config file whenever it changes on disk. Valid configs
// are passed to onChange; invalid ones are passed to onError and otherwise
// ignored, so a half-saved file never replaces a working config. Watch does
// nothing when no config file is in use.
func Watch(onChange func(cfg *Config, path string), onError func(error)) bool {
	if viper.ConfigFileUsed() == "" {
		return false
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg, e.Name)
	})
	viper.WatchConfig()
	return true
}
