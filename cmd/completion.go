package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for emrtd.

Bash:
  $ source <(emrtd completion bash)

  # To load completions for each session, execute once:
  $ emrtd completion bash > /etc/bash_completion.d/emrtd

Zsh:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  $ emrtd completion zsh > "${fpath[1]}/_emrtd"

Fish:
  $ emrtd completion fish | source
  $ emrtd completion fish > ~/.config/fish/completions/emrtd.fish

PowerShell:
  PS> emrtd completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
