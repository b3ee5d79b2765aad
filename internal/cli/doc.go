// Package cli implements the vmhop command-line interface.
//
// Each cobra command parses its flags and hands off to a plain function
// (profileAdd, testProfile, connectProfile, ...) that takes an *App and an
// io.Writer, so the behavior can be exercised without a terminal.
//
// # Command Structure
//
//	vmhop profile add <name>      - Save a profile and its password
//	vmhop profile list            - Show profiles and whether they have a password
//	vmhop profile update <name>   - Rename, re-address, or re-key a profile
//	vmhop profile remove <name>   - Delete a profile and its password
//	vmhop test <profile>          - Test a login, optionally with retries
//	vmhop connect <profile>       - Hold a connection until Ctrl-C
//	vmhop doctor                  - Diagnose config, storage, SSH, and servers
//	vmhop version                 - Print build information
//	vmhop completion <shell>      - Print a completion script
//
// # App Wiring
//
// openApp loads the config (--config, or ~/.config/vmhop/config.yaml, with
// VMHOP_* overrides), validates it, and builds the profile store (YAML or
// SQLite), the secret store (keychain, encrypted file, or keychain with a
// file fallback), the SSH executor and the orchestrator. Tests swap
// openAppFunc for an App over in-memory stores and a scripted executor.
//
// # Flag Handling
//
// Global flags (--config, --verbose, --quiet, --no-color) are defined on
// the root command and available to all subcommands.
package cli
