// Package cmd provides the command-line interface for smol.
//
// Configuration System:
//
//	Settings come from several sources, highest priority first:
//	1. Command-line flags (--source, --port, etc.)
//	2. Individual environment variables (SMOL_OUT, SMOL_SERVER_PORT, etc.)
//	3. The configuration file: --config, else SMOL_CONFIG_FILE, else
//	   smol.json, smol.yml or .smol.yml in the working directory
//	4. Defaults
//
// # Available Commands
//
//   - build: Render the site once into the output directory
//   - watch: Build, then rebuild changed pages and their dependents
//   - serve: Build, watch and serve the output with live reload
//   - list: List pages with their output paths and headers
//   - config: Show the effective configuration
//   - version: Show build information
//
// # Command Examples
//
//	// Build site/ into public/
//	smol build --source site --out public
//
//	// Serve on another port
//	smol serve --port 3000
//
//	// List pages as JSON
//	smol list -o json
//
// # Error Handling
//
// A page that fails to build is reported with its file, line and column and
// does not stop the rest of the build. build exits non-zero when any page
// failed; watch and serve keep running and report the failure until a later
// rebuild of the page succeeds.
package cmd
