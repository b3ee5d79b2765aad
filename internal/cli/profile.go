package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rileyhilliard/vmhop/internal/config"
	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/profile"
	"github.com/rileyhilliard/vmhop/internal/ui"
	"github.com/rileyhilliard/vmhop/pkg/sshutil"
	"github.com/spf13/cobra"
)

// ProfileAddOptions holds options for the profile add command.
type ProfileAddOptions struct {
	Name          string
	Address       string
	Username      string
	NoPassword    bool // Save the profile without a credential
	PasswordStdin bool // Read the password from stdin instead of prompting
}

// ProfileUpdateOptions holds options for the profile update command.
// Empty fields keep their current value.
type ProfileUpdateOptions struct {
	Name          string
	NewName       string
	Address       string
	Username      string
	Password      bool // Ask for a new password
	PasswordStdin bool
	DropSecret    bool // Don't carry the password over on rename
}

var (
	profileAddOpts    ProfileAddOptions
	profileUpdateOpts ProfileUpdateOptions
	profileRemoveYes  bool
)

// newPrompter picks huh forms on a terminal and plain line reads otherwise.
// Tests replace it.
var newPrompter = func(fromStdin bool) ui.Prompter {
	if !fromStdin && ui.IsTerminal(os.Stdin) {
		return ui.HuhPrompter{}
	}
	return ui.NewReaderPrompter(os.Stdin)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage server profiles",
	Long: `Add, list, update, and remove server profiles.

A profile is a name, a server address, and a username. Its password is kept
in the OS keychain or the encrypted secrets file, never in the profile.

Examples:
  vmhop profile list
  vmhop profile add lab --address 10.0.0.5 --user admin
  vmhop profile update lab --name lab-old
  vmhop profile remove lab`,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a server profile",
	Long: `Add a profile and store its password.

The password is prompted for without echo. Pipe it in with --password-stdin
for scripts.

Examples:
  vmhop profile add lab --address 10.0.0.5 --user admin
  echo "$PASS" | vmhop profile add lab --address 10.0.0.5 --user admin --password-stdin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := profileAddOpts
		opts.Name = args[0]
		return withApp(cmd, func(ctx context.Context, app *App) error {
			return profileAdd(ctx, cmd.OutOrStdout(), app, newPrompter(opts.PasswordStdin), opts)
		})
	},
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List server profiles",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *App) error {
			return profileList(ctx, cmd.OutOrStdout(), app)
		})
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:               "remove <name>",
	Aliases:           []string{"rm"},
	Short:             "Remove a server profile and its password",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *App) error {
			return profileRemove(ctx, cmd.OutOrStdout(), app, newPrompter(false), args[0], profileRemoveYes)
		})
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Change a profile's name, address, username, or password",
	Long: `Update a profile in place.

Renaming moves the stored password to the new name unless --drop-password
is given.

Examples:
  vmhop profile update lab --address vcenter.lab.local
  vmhop profile update lab --name lab-old
  vmhop profile update lab --password`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := profileUpdateOpts
		opts.Name = args[0]
		return withApp(cmd, func(ctx context.Context, app *App) error {
			return profileUpdate(ctx, cmd.OutOrStdout(), app, newPrompter(opts.PasswordStdin), opts)
		})
	},
}

func init() {
	profileAddCmd.Flags().StringVar(&profileAddOpts.Address, "address", "", "server address (host, IP, or SSH config alias)")
	profileAddCmd.Flags().StringVarP(&profileAddOpts.Username, "user", "u", "", "username to log in as")
	profileAddCmd.Flags().BoolVar(&profileAddOpts.NoPassword, "no-password", false, "save the profile without a password")
	profileAddCmd.Flags().BoolVar(&profileAddOpts.PasswordStdin, "password-stdin", false, "read the password from stdin")
	_ = profileAddCmd.MarkFlagRequired("address")
	_ = profileAddCmd.RegisterFlagCompletionFunc("address", completeSSHHosts)
	profileAddCmd.MarkFlagsMutuallyExclusive("no-password", "password-stdin")

	profileUpdateCmd.Flags().StringVar(&profileUpdateOpts.NewName, "name", "", "new profile name")
	profileUpdateCmd.Flags().StringVar(&profileUpdateOpts.Address, "address", "", "new server address")
	profileUpdateCmd.Flags().StringVarP(&profileUpdateOpts.Username, "user", "u", "", "new username")
	profileUpdateCmd.Flags().BoolVar(&profileUpdateOpts.Password, "password", false, "set a new password")
	profileUpdateCmd.Flags().BoolVar(&profileUpdateOpts.PasswordStdin, "password-stdin", false, "read the new password from stdin")
	profileUpdateCmd.Flags().BoolVar(&profileUpdateOpts.DropSecret, "drop-password", false, "don't move the password when renaming")
	_ = profileUpdateCmd.RegisterFlagCompletionFunc("address", completeSSHHosts)

	profileRemoveCmd.Flags().BoolVarP(&profileRemoveYes, "yes", "y", false, "skip the confirmation prompt")

	profileCmd.AddCommand(profileAddCmd, profileListCmd, profileRemoveCmd, profileUpdateCmd)
	rootCmd.AddCommand(profileCmd)
}

// withApp opens the App for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := openAppFunc(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			app.Log.Debug("close: %v", cerr)
		}
	}()
	return fn(ctx, app)
}

// profileAdd saves a new profile and its password.
func profileAdd(ctx context.Context, out io.Writer, app *App, prompt ui.Prompter, opts ProfileAddOptions) error {
	p := profile.Profile{
		Name:          strings.TrimSpace(opts.Name),
		ServerAddress: strings.TrimSpace(opts.Address),
		Username:      strings.TrimSpace(opts.Username),
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if _, exists := findProfile(app, p.Name); exists {
		return errors.New(errors.ErrProfile,
			fmt.Sprintf("Profile '%s' already exists", p.Name),
			"Pick another name, or use 'vmhop profile update' to change it.")
	}

	var password string
	if !opts.NoPassword {
		var err error
		password, err = prompt.Secret(fmt.Sprintf("Password for %s:", p))
		if err != nil {
			return err
		}
	}

	if err := app.Orch.AddProfile(ctx, p, password); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Added profile '%s'\n", ui.SymbolSuccess, p.Name)
	if opts.NoPassword {
		fmt.Fprintln(out, ui.MutedStyle().Render("  No password stored. Set one with 'vmhop profile update "+p.Name+" --password'."))
	}
	return nil
}

// profileList prints the profile table.
func profileList(ctx context.Context, out io.Writer, app *App) error {
	profiles := app.Orch.ServerProfiles()
	rows := make([]ui.ProfileRow, len(profiles))
	for i, p := range profiles {
		rows[i] = ui.ProfileRow{
			Name:      p.Name,
			Address:   p.ServerAddress,
			Username:  p.Username,
			HasSecret: hasSecret(ctx, app, p.Name),
		}
		if p.LastConnected != nil {
			rows[i].LastConnected = p.LastConnected.Local().Format("2006-01-02 15:04")
		}
	}
	fmt.Fprint(out, ui.RenderProfileTable(rows))
	return nil
}

// profileRemove deletes a profile after confirmation.
func profileRemove(ctx context.Context, out io.Writer, app *App, prompt ui.Prompter, name string, yes bool) error {
	p, ok := findProfile(app, name)
	if !ok {
		return profileNotFound(name)
	}

	if !yes {
		confirmed, err := prompt.Confirm(fmt.Sprintf("Remove profile '%s' and its password?", p.Name))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := app.Orch.RemoveProfile(ctx, p.Name); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Removed profile '%s'\n", ui.SymbolSuccess, p.Name)
	return nil
}

// profileUpdate applies the changed fields, moving the password on rename,
// then stores a new password when asked to.
func profileUpdate(ctx context.Context, out io.Writer, app *App, prompt ui.Prompter, opts ProfileUpdateOptions) error {
	old, ok := findProfile(app, opts.Name)
	if !ok {
		return profileNotFound(opts.Name)
	}

	updated := old.Clone()
	if v := strings.TrimSpace(opts.NewName); v != "" {
		updated.Name = v
	}
	if v := strings.TrimSpace(opts.Address); v != "" {
		updated.ServerAddress = v
	}
	if opts.Username != "" {
		updated.Username = strings.TrimSpace(opts.Username)
	}

	askPassword := opts.Password || opts.PasswordStdin
	if sameFields(old, updated) && !askPassword {
		fmt.Fprintln(out, "Nothing to change.")
		return nil
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	if !profile.SameName(old.Name, updated.Name) {
		if _, taken := findProfile(app, updated.Name); taken {
			return errors.New(errors.ErrProfile,
				fmt.Sprintf("Profile '%s' already exists", updated.Name),
				"Pick another name, or remove the other profile first.")
		}
	}

	var password string
	if askPassword {
		var err error
		password, err = prompt.Secret(fmt.Sprintf("New password for %s:", updated))
		if err != nil {
			return err
		}
	}

	if !app.Orch.UpdateProfile(ctx, old.Name, updated, !opts.DropSecret) {
		return errors.New(errors.ErrProfile,
			fmt.Sprintf("Could not update profile '%s'", old.Name),
			"Run with --verbose to see which step failed.")
	}
	if password != "" {
		if err := app.Secrets.Save(ctx, updated.Name, updated.Username, password); err != nil {
			return errors.WrapWithCode(err, errors.ErrSecret,
				fmt.Sprintf("Profile '%s' was updated but its password was not saved", updated.Name),
				"Try again with 'vmhop profile update "+updated.Name+" --password'.")
		}
	}

	fmt.Fprintf(out, "%s Updated profile '%s'\n", ui.SymbolSuccess, updated.Name)
	return nil
}

// findProfile looks a profile up in the orchestrator's list by name.
func findProfile(app *App, name string) (profile.Profile, bool) {
	for _, p := range app.Orch.ServerProfiles() {
		if profile.SameName(p.Name, name) {
			return p, true
		}
	}
	return profile.Profile{}, false
}

func sameFields(a, b profile.Profile) bool {
	return a.Name == b.Name && a.ServerAddress == b.ServerAddress && a.Username == b.Username
}

func profileNotFound(name string) error {
	return errors.New(errors.ErrProfile,
		fmt.Sprintf("Profile '%s' not found", name),
		"Run 'vmhop profile list' to see the profiles you have.")
}

func hasSecret(ctx context.Context, app *App, name string) bool {
	v, err := app.Secrets.Get(ctx, name)
	if err != nil {
		app.Log.Debug("could not read credentials for %s: %v", name, err)
		return false
	}
	return v != ""
}

// completeProfileNames completes profile names for positional arguments.
func completeProfileNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	_ = withApp(cmd, func(_ context.Context, app *App) error {
		for _, p := range app.Orch.ServerProfiles() {
			if strings.HasPrefix(strings.ToLower(p.Name), strings.ToLower(toComplete)) {
				names = append(names, fmt.Sprintf("%s\t%s", p.Name, p.ServerAddress))
			}
		}
		return nil
	})
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completeSSHHosts offers the aliases from ~/.ssh/config for --address.
func completeSSHHosts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return sshHostCompletions(sshConfigPath(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

func sshHostCompletions(path, prefix string) []string {
	hosts, err := sshutil.ConfigHosts(path)
	if err != nil {
		return nil
	}
	var out []string
	for _, h := range hosts {
		if !strings.HasPrefix(h.Alias, prefix) {
			continue
		}
		if desc := h.Description(); desc != "" {
			out = append(out, h.Alias+"\t"+desc)
		} else {
			out = append(out, h.Alias)
		}
	}
	return out
}

// sshConfigPath reads ssh.config_file without opening the stores.
func sshConfigPath() string {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return ""
	}
	return cfg.SSH.ConfigFile
}
