package configx

import (
	"context"
	"path/filepath"

	"github.com/clinia/xbulk/errorx"
	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

// ChangeEvent names the file whose change triggered a reload.
type ChangeEvent struct {
	File string
	Op   fsnotify.Op
}

// watch reloads the configuration whenever one of the files is written, created or
// renamed over. Directories are watched so that editors replacing files are seen.
func (p *Provider) watch(ctx context.Context) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errorx.InternalErrorf("unable to watch config files: %s", err.Error()).WithOriginalError(err)
	}

	files := lo.Map(p.files, func(f string, _ int) string { return filepath.Clean(f) })
	for _, dir := range lo.Uniq(lo.Map(files, func(f string, _ int) string { return filepath.Dir(f) })) {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, errorx.InternalErrorf("unable to watch [%s]: %s", dir, err.Error()).WithOriginalError(err)
		}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !lo.Contains(files, filepath.Clean(ev.Name)) || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				p.reload(ctx, ChangeEvent{File: ev.Name, Op: ev.Op})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if p.l != nil {
					p.l.WithError(err).Error(ctx, "an error occurred while watching config files", attribute.StringSlice("files", files))
				}
			}
		}
	}()

	return func() {
		close(done)
		_ = w.Close()
		<-stopped
	}, nil
}
