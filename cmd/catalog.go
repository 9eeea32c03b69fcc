/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/goptdesign/storage"
)

// CatalogCmd represents the catalog command
var CatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List, show and delete stored design searches",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(func(c *storage.Catalog) error {
			runs, err := c.ListRuns(context.Background())
			if err != nil {
				return err
			}
			printSummaries(os.Stdout, runs)
			return nil
		})
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <run id>",
	Short: "Print a stored design",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return err
		}
		return withCatalog(func(c *storage.Catalog) error {
			run, err := c.LoadRun(context.Background(), id)
			if err != nil {
				return err
			}
			fmt.Printf("%s \"%s\" criterion %s, seed %d, %s\n", run.ID, run.Title,
				criterionLabel(run.Criterion), run.Seed, run.CreatedAt.Format(time.RFC3339))
			run.Result.Print()
			return nil
		})
	},
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete <run id>",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return err
		}
		return withCatalog(func(c *storage.Catalog) error {
			return c.DeleteRun(context.Background(), id)
		})
	},
}

func init() {
	rootCmd.AddCommand(CatalogCmd)
	CatalogCmd.AddCommand(catalogListCmd, catalogShowCmd, catalogDeleteCmd)
}

func withCatalog(f func(c *storage.Catalog) error) error {
	db := viper.GetString("db")
	if len(db) == 0 {
		return fmt.Errorf("no catalog: set --db or db in the config file")
	}
	c, err := storage.Open(db, log.Logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return f(c)
}

func printSummaries(w io.Writer, runs []storage.Summary) {
	for _, s := range runs {
		value := "n/a"
		if s.Available {
			value = fmt.Sprintf("%g", s.Value)
		}
		blocked := ""
		if s.Blocked {
			blocked = " blocked"
		}
		fmt.Fprintf(w, "%s  %s  %-6s %3d trials%s  %-12s %s\n", s.ID, s.CreatedAt.Format(time.RFC3339),
			criterionLabel(s.Criterion), s.Trials, blocked, value, s.Title)
	}
}
