package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/danielpatrickdp/probabilistic-state/internal/archive"
	"github.com/danielpatrickdp/probabilistic-state/internal/scenario"
	"github.com/danielpatrickdp/probabilistic-state/internal/state"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to scenario fixture JSON")
	dbPath := flag.String("db", "", "optional archive database to write results to")
	seed := flag.Int64("seed", 0, "sampling seed (overrides the fixture's; 0 keeps it)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: simulate --fixture path/to/scenario.json [--db archive.db] [--seed N] [--json]")
		os.Exit(2)
	}

	os.Exit(run(*fixturePath, *dbPath, *seed, *jsonOut))
}

// #endregion main

// #region run

func run(fixturePath, dbPath string, seed int64, jsonOut bool) int {
	f, err := scenario.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	if seed == 0 {
		seed = f.Seed
	}
	var store *state.Store
	if seed != 0 {
		store = state.NewStoreWithRand(rand.New(rand.NewSource(seed)))
	} else {
		store = state.NewStore()
	}

	result, err := scenario.Run(store, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run scenario: %v\n", err)
		return 1
	}

	if jsonOut {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal result: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		printResult(result)
	}

	if dbPath != "" {
		if err := archiveRun(store, result, dbPath); err != nil {
			fmt.Fprintf(os.Stderr, "archive: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "archived to %s\n", dbPath)
	}

	if result.Summary.Failures > 0 {
		return 1
	}
	return 0
}

// #endregion run

// #region output

func printResult(result *scenario.RunResult) {
	if result.Description != "" {
		fmt.Printf("scenario: %s\n", result.Description)
	}
	fmt.Printf("run: %s\n", result.RunID)
	for key, id := range result.StateIDs {
		fmt.Printf("  state %-12s %s\n", key, id)
	}
	fmt.Println()

	for _, step := range result.Steps {
		status := "ok"
		detail := ""
		switch {
		case step.Err != "":
			status = "FAIL"
			detail = step.Err
		case step.Outcome != "":
			detail = step.Outcome
		case step.Vector != nil:
			detail = vectorString(*step.Vector)
		case step.Export != nil:
			detail = fmt.Sprintf("collapsed=%v top=%s", step.Export.Collapsed, step.Export.MostLikely)
		case step.Op == "delete":
			detail = fmt.Sprintf("existed=%v", step.Deleted)
		}
		fmt.Printf("%3d  %-12s %-12s %-4s %s\n", step.Index, step.Op, step.StateKey, status, detail)
	}

	sum := result.Summary
	fmt.Printf("\n%d steps: %d collapses, %d updates, %d failures\n",
		sum.TotalSteps, sum.Collapses, sum.Updates, sum.Failures)
}

func vectorString(v state.Vector) string {
	out := ""
	for i, name := range v.Outcomes() {
		if i > 0 {
			out += " "
		}
		w, _ := v.Weight(name)
		out += fmt.Sprintf("%s=%.4f", name, w)
	}
	return out
}

// #endregion output

// #region archive

// archiveRun writes every still-live state the scenario touched to the
// archive database. States deleted during the run have no final object
// to archive and are skipped.
func archiveRun(store *state.Store, result *scenario.RunResult, dbPath string) error {
	a, err := archive.NewArchiver(dbPath)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, id := range result.StateIDs {
		st, err := store.GetState(id)
		if errors.Is(err, state.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := a.ArchiveState(st); err != nil {
			return err
		}
	}
	return nil
}

// #endregion archive
