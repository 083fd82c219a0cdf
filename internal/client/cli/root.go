package cli

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/myhealthdata/internal/buildinfo"
	"github.com/dmitrijs2005/myhealthdata/internal/client/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const annotationNoApp = "phr/no-app"

type runtime struct {
	factory    Factory
	v          *viper.Viper
	configFile string
	app        *App
}

// NewRootCmd builds the phr command tree. factory is called once, before
// the first command that needs the local store or the backend.
func NewRootCmd(factory Factory) (*cobra.Command, func() error) {
	rt := &runtime{factory: factory, v: viper.New()}

	root := &cobra.Command{
		Use:               "phr",
		Short:             "Personal health records with cloud mirroring and sharing",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rt.setup,
	}
	root.PersistentFlags().StringVar(&rt.configFile, "config", "", "config file (yaml, json or toml)")
	cobra.CheckErr(config.BindFlags(rt.v, root.PersistentFlags()))

	root.AddCommand(
		newRecordsCmd(rt),
		newCloudCmd(rt),
		newFetchCmd(rt),
		newWatchCmd(rt),
		newShareCmd(rt),
		newAcceptCmd(rt),
		newParticipantsCmd(rt),
		newAccountCmd(rt),
		newDiagCmd(rt),
		newSuppressionCmd(rt),
		newVersionCmd(),
	)

	return root, rt.close
}

func (rt *runtime) setup(cmd *cobra.Command, _ []string) error {
	if !needsApp(cmd) || rt.app != nil {
		return nil
	}
	cfg, err := config.Load(rt.v, rt.configFile)
	if err != nil {
		return err
	}
	app, err := rt.factory(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	app.out = cmd.OutOrStdout()
	app.in = bufio.NewReader(cmd.InOrStdin())
	rt.app = app
	return nil
}

func (rt *runtime) close() error {
	if rt.app == nil {
		return nil
	}
	err := rt.app.Close()
	rt.app = nil
	return err
}

func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoApp] != "" {
			return false
		}
		switch c.Name() {
		case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd, "completion":
			return false
		}
	}
	return true
}

// withTimeout bounds a one-shot command by the configured request timeout.
func (rt *runtime) withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), rt.app.cfg.RequestTimeout)
}

// Execute runs the CLI with args and releases the App afterwards.
func Execute(ctx context.Context, factory Factory, args []string, out io.Writer, in io.Reader) error {
	root, closeApp := NewRootCmd(factory)
	root.SetArgs(args)
	if out != nil {
		root.SetOut(out)
		root.SetErr(out)
	}
	if in != nil {
		root.SetIn(in)
	}
	err := root.ExecuteContext(ctx)
	return errors.Join(err, closeApp())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}
