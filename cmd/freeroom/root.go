package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"freeroom/internal/config"
	appLog "freeroom/internal/log"
	"freeroom/internal/refresh"
	"freeroom/internal/render"
	"freeroom/internal/snapshot"
)

// app carries state shared by every subcommand once the config is loaded.
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "freeroom",
		Short: "Find free rooms on campus",
		Long: `freeroom combines the room-booking system with the course schedule
to tell which rooms are free right now, and for how long.

Run "freeroom update" once a day to download events, then "freeroom find".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath(), "Path to config file")

	root.AddCommand(
		newUpdateCmd(a),
		newFindCmd(a),
		newTimelineCmd(a),
		newExportCmd(a),
		newRoomsCmd(a),
		newLoginCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", a.configPath, err)
	}
	a.cfg = cfg

	appLog.Configure(appLog.Options{
		Level:      appLog.ParseLevel(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	appLog.Debug("effective config",
		"config_path", a.configPath,
		"timezone", cfg.Timezone,
		"data_dir", cfg.DataDir,
		"soc_file", cfg.SOCFile,
		"registrar_file", cfg.RegistrarFile,
		"ics_count", len(cfg.CourseICS),
	)
	return nil
}

func (a *app) store() *snapshot.Store {
	return refresh.StoreFromConfig(a.cfg)
}

func (a *app) display() render.Options {
	return render.OptionsFromConfig(a.cfg.Display)
}
