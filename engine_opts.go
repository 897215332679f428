package signoff

import "time"

type EngineOption func(engine *Engine)

func WithUserDirectory(directory UserDirectory) EngineOption {
	return func(engine *Engine) {
		engine.directory = directory
	}
}

func WithFileRegistry(files FileRegistry) EngineOption {
	return func(engine *Engine) {
		engine.files = files
	}
}

func WithFolderTree(folders FolderTree) EngineOption {
	return func(engine *Engine) {
		engine.folders = folders
	}
}

func WithNotifier(notifier Notifier) EngineOption {
	return func(engine *Engine) {
		engine.notifier = notifier
	}
}

func WithCancelPolicy(policy CancelPolicy) EngineOption {
	return func(engine *Engine) {
		engine.cancelPolicy = policy
	}
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(engine *Engine) {
		engine.now = now
	}
}
