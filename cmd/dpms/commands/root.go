package commands

import (
	"context"
	"errors"
	"io"
	"os"

	"dpmserver/pkg/app"
	"dpmserver/pkg/config"
	"dpmserver/pkg/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// annotationReadOnly 标记不修改注册表的子命令
const annotationReadOnly = "dpms/read-only"

func readOnly() map[string]string {
	return map[string]string{annotationReadOnly: "true"}
}

func isReadOnly(cmd *cobra.Command) bool {
	return cmd.Annotations[annotationReadOnly] == "true"
}

// rootOptions 持有一次进程调用的状态
// App 在 PersistentPreRunE 中构建，传给每个子命令，不放全局变量
type rootOptions struct {
	cfgFile string
	stderr  io.Writer
	app     *app.App
}

// App 返回已初始化的应用实例
func (o *rootOptions) App() (*app.App, error) {
	if o.app == nil {
		return nil, errors.New("app not initialized")
	}
	return o.app, nil
}

// newRootCommand 组装完整的命令树
func newRootCommand(stderr io.Writer) (*cobra.Command, *rootOptions) {
	opts := &rootOptions{stderr: stderr}

	rootCmd := &cobra.Command{
		Use:           "dpms",
		Short:         "DPM Server: package repository manager",
		Long:          `Build, hash and publish packages under Repo/, and keep RepoInfo.json in sync with the built archives.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		// PersistentPreRunE 会在所有子命令执行前运行
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 1. 配置
			used, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}

			// 2. Logger
			logger := logging.New(opts.stderr, viper.GetString(config.KeyLogLevel))
			if used != "" {
				logger.Debug("using config file", "path", used)
			}

			// 3. 加载注册表 (必要时重建)
			a, err := app.NewApp(cmd.Context(), cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			opts.app = a
			return nil
		},
		// 只有子命令成功时才会运行：注册表在这里写回
		// 只读命令 (verify/show/list) 不写回
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if isReadOnly(cmd) {
				return nil
			}
			a, err := opts.App()
			if err != nil {
				return err
			}
			return a.Commit(cmd.Context())
		},
	}

	// 全局参数，绑定到 Viper，yaml / 环境变量 / flag 都可以覆盖
	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.dpm/config.yaml)")
	rootCmd.PersistentFlags().String("root", ".", "directory containing Repo/ and RepoInfo.json")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag(config.KeyRoot, rootCmd.PersistentFlags().Lookup("root"))
	_ = viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(
		newHashCmd(opts),
		newBuildCmd(opts),
		newInitCmd(opts),
		newFixCmd(opts),
		newVerifyCmd(opts),
		newShowCmd(opts),
		newListCmd(opts),
	)

	return rootCmd, opts
}

// Execute 是入口
func Execute() error {
	return execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd, opts := newRootCommand(stderr)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	defer func() {
		if opts.app != nil {
			opts.app.Close()
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}
