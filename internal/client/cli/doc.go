// Package cli provides the interactive SecretVault command-line client.
//
// It wires configuration, the selected storage drivers and the session
// manager, then runs a REPL over the vault commands. A persisted remote
// session is resumed on start; otherwise the user picks "local" or signs in
// with "cloud" / "login".
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
