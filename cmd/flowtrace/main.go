// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowtrace/flowtrace/internal/cli"
	classifycmd "github.com/flowtrace/flowtrace/internal/commands/classify"
	contractscmd "github.com/flowtrace/flowtrace/internal/commands/contracts"
	exportcmd "github.com/flowtrace/flowtrace/internal/commands/export"
	lineagecmd "github.com/flowtrace/flowtrace/internal/commands/lineage"
	"github.com/flowtrace/flowtrace/internal/commands/shared"
	versioncmd "github.com/flowtrace/flowtrace/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(exportcmd.NewCommand())
	rootCmd.AddCommand(lineagecmd.NewCommand())
	rootCmd.AddCommand(contractscmd.NewCommand())
	rootCmd.AddCommand(classifycmd.NewCommand())
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	err := rootCmd.ExecuteContext(ctx)
	if ctx.Err() != nil {
		stop()
		os.Exit(shared.ExitInterrupted)
	}
	if err != nil {
		cli.HandleExitError(err)
	}
}
