package configx

import (
	"github.com/clinia/xbulk/loggerx"
	"github.com/spf13/pflag"
)

type OptionModifier func(p *Provider)

func WithConfigFiles(files ...string) OptionModifier {
	return func(p *Provider) {
		p.files = append(p.files, files...)
	}
}

// WithImmutables lists keys a reloaded file may not change.
func WithImmutables(immutables ...string) OptionModifier {
	return func(p *Provider) {
		p.immutables = append(p.immutables, immutables...)
	}
}

func WithFlags(flags *pflag.FlagSet) OptionModifier {
	return func(p *Provider) {
		p.flags = flags
	}
}

func WithLogger(l *loggerx.Logger) OptionModifier {
	return func(p *Provider) {
		p.l = l
	}
}

// WithEnvPrefix only loads environment variables starting with prefix, such as "BULKX_".
func WithEnvPrefix(prefix string) OptionModifier {
	return func(p *Provider) {
		p.envPrefix = prefix
	}
}

func SkipValidation() OptionModifier {
	return func(p *Provider) {
		p.skipValidation = true
	}
}

// EnableFileWatching reloads the configuration when one of the files changes.
func EnableFileWatching() OptionModifier {
	return func(p *Provider) {
		p.disableFileWatching = false
	}
}

func DisableEnvLoading() OptionModifier {
	return func(p *Provider) {
		p.disableEnvLoading = true
	}
}

func WithValue(key string, value any) OptionModifier {
	return func(p *Provider) {
		p.forcedValues = append(p.forcedValues, tuple{Key: key, Value: value})
	}
}

func WithValues(values map[string]any) OptionModifier {
	return func(p *Provider) {
		for key, value := range values {
			p.forcedValues = append(p.forcedValues, tuple{Key: key, Value: value})
		}
	}
}

// WithBaseValues sets values right above the schema defaults.
func WithBaseValues(values map[string]any) OptionModifier {
	return func(p *Provider) {
		for key, value := range values {
			p.baseValues = append(p.baseValues, tuple{Key: key, Value: value})
		}
	}
}

// AttachWatcher is called after every reload with the error that prevented it, if any.
func AttachWatcher(watcher func(ev ChangeEvent, err error)) OptionModifier {
	return func(p *Provider) {
		p.onChanges = append(p.onChanges, watcher)
	}
}
