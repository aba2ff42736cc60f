package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/probabilistic-state/internal/archive"
	"github.com/danielpatrickdp/probabilistic-state/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to archive database")
	stateID := flag.String("state", "", "show single state detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/archive.db [--state id] [--json]")
		os.Exit(2)
	}

	a, err := archive.NewArchiver(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if *stateID != "" {
		err = runDetailMode(a, *stateID, *jsonOut)
	} else {
		err = runListMode(a, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	StateID   string `json:"state_id"`
	Name      string `json:"name"`
	Snapshots int    `json:"snapshots"`
	CreatedAt string `json:"created_at"`
}

func runListMode(a *archive.Archiver, jsonOut bool) error {
	infos, err := a.ListStates()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(os.Stderr, "no states found")
		return nil
	}

	rows := make([]listRow, len(infos))
	for i, info := range infos {
		rows[i] = listRow{
			StateID:   info.ID,
			Name:      info.Name,
			Snapshots: info.Snapshots,
			CreatedAt: info.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-20s  %9s  %s\n", "State", "Name", "Snapshots", "Created")
	for _, r := range rows {
		fmt.Printf("%-12s  %-20s  %9d  %s\n", shortID(r.StateID), r.Name, r.Snapshots, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	StateID string           `json:"state_id"`
	History []state.Snapshot `json:"history"`
	Edges   []archive.Edge   `json:"edges,omitempty"`
}

func runDetailMode(a *archive.Archiver, stateID string, jsonOut bool) error {
	history, err := a.History(stateID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("state %s not found in archive", stateID)
	}
	edges, err := a.Edges(stateID)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(detailOutput{StateID: stateID, History: history, Edges: edges})
	}

	fmt.Printf("state %s: %d snapshots\n\n", stateID, len(history))
	for i, snap := range history {
		tag := ""
		if snap.Trigger != "" {
			tag = "  trigger=" + snap.Trigger
		}
		if snap.CollapsedTo != "" {
			tag += "  collapsed=" + snap.CollapsedTo
		}
		fmt.Printf("%3d  %s%s\n", i, snap.Timestamp.Format("2006-01-02T15:04:05.000Z"), tag)
		for _, name := range snap.Vector.Outcomes() {
			w, _ := snap.Vector.Weight(name)
			fmt.Printf("       %-16s %.6f\n", name, w)
		}
	}

	if len(edges) > 0 {
		fmt.Println("\nentanglements:")
		for _, e := range edges {
			fmt.Printf("  -> %-12s  correlation=%+.2f  type=%s\n", shortID(e.TargetID), e.Correlation, e.Type)
		}
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion helpers
