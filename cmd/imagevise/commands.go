package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leeforge/imagevise/config"
	"github.com/leeforge/imagevise/json"
	"github.com/leeforge/imagevise/logging"
	"github.com/leeforge/imagevise/media/operator"
	"github.com/leeforge/imagevise/media/pipeline"
	"github.com/leeforge/imagevise/media/request"
	"github.com/leeforge/imagevise/server"
)

type rootOptions struct {
	configDir string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "imagevise",
		Short:         "Signed on-the-fly image transformations over HTTP",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configDir, "config", "c", "", "directory holding config.yaml (defaults to $CONFIG_PATH or ./config)")

	cmd.AddCommand(
		newServeCommand(opts),
		newSignCommand(opts),
		newOperatorsCommand(),
	)
	return cmd
}

func (o *rootOptions) configOptions() config.ConfigOptions {
	opts := config.DefaultConfigOptions()
	if o.configDir != "" {
		opts.BasePath = o.configDir
	}
	return opts
}

func newServeCommand(root *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the render server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := config.Load(root.configOptions())
			if err != nil {
				return err
			}

			logger := logging.Init(cfg.Log)
			defer logging.Sync()
			logger.Info("config.loaded", zap.Strings("files", loader.Files()))

			srv, err := server.New(cfg, server.WithLogger(logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watch {
				err := config.WatchApp(ctx, loader, func(next *config.AppConfig) {
					if err := srv.Reload(ctx, next); err != nil {
						logger.Error("config.apply_failed", zap.Error(err))
					}
				})
				if err != nil {
					return err
				}
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reload render settings when config files change")
	return cmd
}

type signOptions struct {
	secret   string
	pipeline string
	query    bool
}

func newSignCommand(root *rootOptions) *cobra.Command {
	opts := &signOptions{}
	cmd := &cobra.Command{
		Use:   "sign <src_url>",
		Short: "Print the signed path for an image and a pipeline",
		Example: `  imagevise sign https://images.example.com/a.jpg \
    --pipeline '[["geom",{"geometry_string":"512x512"}],["expire_after",{"seconds":600}]]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := opts.secret
			if secret == "" {
				cfg, _, err := config.Load(root.configOptions())
				if err != nil {
					return err
				}
				if len(cfg.Render.SecretKeys) == 0 {
					return fmt.Errorf("no --secret given and render.secret-keys is empty")
				}
				secret = cfg.Render.SecretKeys[0]
			}

			token, err := sign(args[0], opts.pipeline, secret, operator.NewDefaultRegistry())
			if err != nil {
				return err
			}
			if opts.query {
				fmt.Fprintln(cmd.OutOrStdout(), "?"+token.Query())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), token.Path())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.secret, "secret", "", "signing secret (defaults to the first render.secret-keys entry)")
	cmd.Flags().StringVarP(&opts.pipeline, "pipeline", "p", "", `pipeline as JSON: [["name",{params}],...]`)
	cmd.Flags().BoolVar(&opts.query, "query", false, "print q and sig as a query string")
	_ = cmd.MarkFlagRequired("pipeline")
	return cmd
}

func sign(src, rawPipeline, secret string, reg *operator.Registry) (request.Token, error) {
	var steps []pipeline.Step
	if err := json.Unmarshal([]byte(rawPipeline), &steps); err != nil {
		return request.Token{}, fmt.Errorf("invalid --pipeline: %w", err)
	}
	p, err := pipeline.FromParams(reg, steps)
	if err != nil {
		return request.Token{}, err
	}
	if p.IsEmpty() {
		return request.Token{}, fmt.Errorf("the pipeline has no operators")
	}
	req, err := request.New(src, p)
	if err != nil {
		return request.Token{}, err
	}
	return req.EncodeAndSign(secret)
}

func newOperatorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List the registered pipeline operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := operator.NewDefaultRegistry()
			for _, name := range reg.Names() {
				entry, err := reg.Resolve(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", name, entry.Kind)
			}
			return nil
		},
	}
}
