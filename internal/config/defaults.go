package config

const (
	defaultDataDir           = "~/.local/share/remix"
	defaultOutputDir         = "~/Music/Remix"
	defaultModel             = "remixnet_6s"
	defaultFetchTimeout      = 3600
	defaultSepWindow         = 4096
	defaultSepHop            = 1024
	defaultChunkSeconds      = 10
	defaultOverlapSeconds    = 1
	defaultComponents        = 3
	defaultDecomposeWindow   = 2048
	defaultDecomposeHop      = 512
	defaultBackgroundTop     = "#2C2F38"
	defaultBackgroundBottom  = "#12151B"
	defaultWave              = "#E8EEF6"
	defaultCornerRatio       = 0.2
	defaultServeBind         = "127.0.0.1:3000"
	defaultMaxBodyMB         = 100
	defaultSessionTTLMinutes = 30
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		// ModelsDir and LogDir are left empty so normalize derives them
		// from whatever DataDir resolves to.
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
		},
		Models: Models{
			Default:         defaultModel,
			VerifyDownloads: true,
			FetchTimeout:    defaultFetchTimeout,
		},
		Separation: Separation{
			Window:         defaultSepWindow,
			Hop:            defaultSepHop,
			ChunkSeconds:   defaultChunkSeconds,
			OverlapSeconds: defaultOverlapSeconds,
		},
		Decompose: Decompose{
			Components: defaultComponents,
			Window:     defaultDecomposeWindow,
			Hop:        defaultDecomposeHop,
		},
		Icon: Icon{
			BackgroundTop:    defaultBackgroundTop,
			BackgroundBottom: defaultBackgroundBottom,
			Wave:             defaultWave,
			CornerRatio:      defaultCornerRatio,
		},
		Serve: Serve{
			Bind:              defaultServeBind,
			MaxBodyMB:         defaultMaxBodyMB,
			SessionTTLMinutes: defaultSessionTTLMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
