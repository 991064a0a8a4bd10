package appconfig

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"pkt.systems/pslog"
)

// Watch reloads the config file on every write and passes valid results to
// onChange. Invalid edits are logged and skipped. Changes after ctx is done
// are ignored.
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		path = defaultPath
	}
	log := pslog.Ctx(ctx).With("config", path)
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(event fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			log.Warn("config reload failed", "err", err)
			return
		}
		log.Info("config reloaded", "op", event.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()
	log.Debug("config watch started")
	return nil
}
